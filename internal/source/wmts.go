package source

import (
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"imagery-compare/internal/maptiles"
)

const (
	// capabilitiesRetryDelay is the pause before re-fetching a capabilities
	// document that failed to load. The source simply stays unready in the
	// meantime; the layer keeps polling.
	capabilitiesRetryDelay = 10 * time.Second

	wmtsUserAgent = "imagery-compare/1.0"
)

// WMTS XML structures for parsing capabilities.
type wmtsCapabilities struct {
	XMLName  xml.Name     `xml:"Capabilities"`
	Service  wmtsService  `xml:"http://www.opengis.net/ows/1.1 ServiceIdentification"`
	Contents wmtsContents `xml:"Contents"`
}

type wmtsService struct {
	Title string `xml:"Title"`
}

type wmtsContents struct {
	Layers         []wmtsLayer         `xml:"Layer"`
	TileMatrixSets []wmtsTileMatrixSet `xml:"TileMatrixSet"`
}

type wmtsLayer struct {
	Title              string                  `xml:"http://www.opengis.net/ows/1.1 Title"`
	Identifier         string                  `xml:"http://www.opengis.net/ows/1.1 Identifier"`
	TileMatrixSetLinks []wmtsTileMatrixSetLink `xml:"TileMatrixSetLink"`
	ResourceURLs       []wmtsResourceURL       `xml:"ResourceURL"`
}

type wmtsTileMatrixSetLink struct {
	TileMatrixSet string `xml:"TileMatrixSet"`
}

type wmtsResourceURL struct {
	Format       string `xml:"format,attr"`
	ResourceType string `xml:"resourceType,attr"`
	Template     string `xml:"template,attr"`
}

type wmtsTileMatrixSet struct {
	Identifier   string           `xml:"http://www.opengis.net/ows/1.1 Identifier"`
	TileMatrices []wmtsTileMatrix `xml:"TileMatrix"`
}

type wmtsTileMatrix struct {
	Identifier   string `xml:"http://www.opengis.net/ows/1.1 Identifier"`
	MatrixWidth  int    `xml:"MatrixWidth"`
	MatrixHeight int    `xml:"MatrixHeight"`
}

// WMTSSource serves tiles from a WMTS endpoint described by a capabilities
// document. The document is fetched asynchronously; the source reports ready
// once it has been parsed, which the tile layer discovers by polling.
type WMTSSource struct {
	mu sync.RWMutex

	capabilitiesURL string
	layerID         string
	httpClient      *http.Client

	ready    bool
	template string
	scheme   *maptiles.WebMercatorTilingScheme

	serviceCredit *maptiles.Credit
	layerCredit   *maptiles.Credit

	maxLevel    int
	hasMaxLevel bool

	retry *RetryStrategy
}

// NewWMTSSource creates a source for the named layer of a WMTS capabilities
// endpoint and starts fetching the document in the background. An empty
// layerID selects the first layer.
func NewWMTSSource(capabilitiesURL, layerID string) *WMTSSource {
	s := &WMTSSource{
		capabilitiesURL: capabilitiesURL,
		layerID:         layerID,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		scheme: maptiles.NewWebMercatorTilingScheme(),
		retry:  DefaultRetryStrategy(),
	}

	go s.initialize()
	return s
}

// NewWMTSSourceFromCapabilities builds a source directly from a capabilities
// document. The source is ready immediately.
func NewWMTSSourceFromCapabilities(data []byte, layerID string) (*WMTSSource, error) {
	s := &WMTSSource{
		layerID: layerID,
		scheme:  maptiles.NewWebMercatorTilingScheme(),
		retry:   DefaultRetryStrategy(),
	}
	if err := s.applyCapabilities(data); err != nil {
		return nil, err
	}
	return s, nil
}

// initialize fetches and applies the capabilities document, re-arming itself
// on failure.
func (s *WMTSSource) initialize() {
	data, err := s.fetchCapabilities()
	if err == nil {
		err = s.applyCapabilities(data)
	}
	if err != nil {
		log.Printf("[WMTS] capabilities from %s: %v (retrying in %s)", s.capabilitiesURL, err, capabilitiesRetryDelay)
		time.AfterFunc(capabilitiesRetryDelay, s.initialize)
	}
}

func (s *WMTSSource) fetchCapabilities() ([]byte, error) {
	req, err := http.NewRequest("GET", s.capabilitiesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", wmtsUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capabilities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capabilities request failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities: %w", err)
	}
	return data, nil
}

// applyCapabilities parses the document, selects the layer and its matrix
// set, and flips the source to ready.
func (s *WMTSSource) applyCapabilities(data []byte) error {
	var caps wmtsCapabilities
	if err := xml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("failed to parse XML: %w", err)
	}
	if len(caps.Contents.Layers) == 0 {
		return fmt.Errorf("no layers found in capabilities")
	}

	layer := &caps.Contents.Layers[0]
	if s.layerID != "" {
		found := false
		for i := range caps.Contents.Layers {
			if caps.Contents.Layers[i].Identifier == s.layerID {
				layer = &caps.Contents.Layers[i]
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("layer %q not found in capabilities", s.layerID)
		}
	}

	template := ""
	for _, r := range layer.ResourceURLs {
		if r.ResourceType == "tile" {
			template = convertTemplateToXYZ(r.Template)
			break
		}
	}
	if template == "" {
		return fmt.Errorf("layer %q has no tile resource URL", layer.Identifier)
	}

	matrixSet, err := findMatrixSet(&caps, layer)
	if err != nil {
		return err
	}

	root := rootMatrix(matrixSet)
	if root == nil {
		return fmt.Errorf("matrix set %q has no tile matrices", matrixSet.Identifier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.template = template
	s.scheme = &maptiles.WebMercatorTilingScheme{
		RootTilesX: root.MatrixWidth,
		RootTilesY: root.MatrixHeight,
	}
	s.maxLevel = len(matrixSet.TileMatrices) - 1
	s.hasMaxLevel = true

	if caps.Service.Title != "" {
		s.serviceCredit = &maptiles.Credit{HTML: caps.Service.Title}
	}
	if layer.Title != "" {
		s.layerCredit = &maptiles.Credit{HTML: layer.Title}
	}

	s.ready = true
	log.Printf("[WMTS] layer %q ready: root grid %d×%d, %d levels",
		layer.Identifier, root.MatrixWidth, root.MatrixHeight, s.maxLevel+1)
	return nil
}

func findMatrixSet(caps *wmtsCapabilities, layer *wmtsLayer) (*wmtsTileMatrixSet, error) {
	if len(layer.TileMatrixSetLinks) == 0 {
		if len(caps.Contents.TileMatrixSets) == 0 {
			return nil, fmt.Errorf("capabilities declare no tile matrix sets")
		}
		return &caps.Contents.TileMatrixSets[0], nil
	}

	want := layer.TileMatrixSetLinks[0].TileMatrixSet
	for i := range caps.Contents.TileMatrixSets {
		if caps.Contents.TileMatrixSets[i].Identifier == want {
			return &caps.Contents.TileMatrixSets[i], nil
		}
	}
	return nil, fmt.Errorf("tile matrix set %q not found in capabilities", want)
}

// rootMatrix returns the level-0 matrix, preferring the one identified "0".
func rootMatrix(set *wmtsTileMatrixSet) *wmtsTileMatrix {
	for i := range set.TileMatrices {
		if set.TileMatrices[i].Identifier == "0" {
			return &set.TileMatrices[i]
		}
	}
	if len(set.TileMatrices) > 0 {
		return &set.TileMatrices[0]
	}
	return nil
}

// convertTemplateToXYZ rewrites WMTS template placeholders to XYZ form.
func convertTemplateToXYZ(template string) string {
	result := strings.ReplaceAll(template, "{TileMatrix}", "{z}")
	result = strings.ReplaceAll(result, "{TileCol}", "{x}")
	result = strings.ReplaceAll(result, "{TileRow}", "{y}")
	return result
}

// Ready reports whether the capabilities document has been applied.
func (s *WMTSSource) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// ReadyPollInterval slows readiness polling down for WMTS sources, whose
// readiness depends on a network round trip.
func (s *WMTSSource) ReadyPollInterval() time.Duration {
	return 250 * time.Millisecond
}

// TilingScheme returns the scheme derived from the matrix set.
func (s *WMTSSource) TilingScheme() maptiles.TilingScheme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheme
}

// MinimumLevel reports no declared minimum.
func (s *WMTSSource) MinimumLevel() (int, bool) { return 0, false }

// MaximumLevel reports the deepest tile matrix level.
func (s *WMTSSource) MaximumLevel() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxLevel, s.hasMaxLevel
}

// Credit returns the service-level attribution, or nil.
func (s *WMTSSource) Credit() *maptiles.Credit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serviceCredit
}

// TileCredits returns the layer's attribution for any covered tile.
func (s *WMTSSource) TileCredits(col, row, level int) []maptiles.Credit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.layerCredit == nil {
		return nil
	}
	return []maptiles.Credit{*s.layerCredit}
}

// TileURL substitutes the tile coordinate into the layer's resource template.
func (s *WMTSSource) TileURL(col, row, level int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return "", false
	}
	if s.hasMaxLevel && level > s.maxLevel {
		return "", false
	}

	url := s.template
	url = strings.ReplaceAll(url, "{z}", fmt.Sprintf("%d", level))
	url = strings.ReplaceAll(url, "{x}", fmt.Sprintf("%d", col))
	url = strings.ReplaceAll(url, "{y}", fmt.Sprintf("%d", row))
	return url, true
}

// PickFeatures is not supported for WMTS sources.
func (s *WMTSSource) PickFeatures(col, row, level int, lon, lat float64) ([]maptiles.Feature, error) {
	return nil, nil
}

// RetryTile grants retries according to the source's backoff strategy.
func (s *WMTSSource) RetryTile(f *maptiles.TileFailure) <-chan error {
	wait, ok := s.retry.Wait(f.Attempts)
	if !ok {
		return nil
	}

	log.Printf("[WMTS] tile %d/%d/%d failed (attempt %d), retrying in %s",
		f.Tile.Column, f.Tile.Row, f.Tile.Level, f.Attempts, wait)

	ch := make(chan error, 1)
	time.AfterFunc(wait, func() { ch <- nil })
	return ch
}
