package source

import (
	"log"
	"strconv"
	"strings"
	"time"

	"imagery-compare/internal/maptiles"
)

// TemplateSource serves tiles from a {z}/{x}/{y} URL template, optionally
// with {s} subdomain rotation. Template sources are ready immediately.
type TemplateSource struct {
	template   string
	subdomains []string
	scheme     *maptiles.WebMercatorTilingScheme

	minZoom int
	maxZoom int

	credit *maptiles.Credit
	retry  *RetryStrategy
}

// TemplateOptions configure a TemplateSource. Zoom values of 0 mean
// "not declared".
type TemplateOptions struct {
	Subdomains  []string
	MinZoom     int
	MaxZoom     int
	Attribution string
	Retry       *RetryStrategy
}

// NewTemplateSource creates a source for an XYZ tile URL template such as
// https://tile.example.com/{z}/{x}/{y}.png.
func NewTemplateSource(template string, opts TemplateOptions) *TemplateSource {
	retry := opts.Retry
	if retry == nil {
		retry = DefaultRetryStrategy()
	}

	var credit *maptiles.Credit
	if opts.Attribution != "" {
		credit = &maptiles.Credit{HTML: opts.Attribution}
	}

	return &TemplateSource{
		template:   template,
		subdomains: opts.Subdomains,
		scheme:     maptiles.NewWebMercatorTilingScheme(),
		minZoom:    opts.MinZoom,
		maxZoom:    opts.MaxZoom,
		credit:     credit,
		retry:      retry,
	}
}

// Ready always reports true: a template needs no handshake.
func (s *TemplateSource) Ready() bool { return true }

// TilingScheme returns the source's Web Mercator scheme.
func (s *TemplateSource) TilingScheme() maptiles.TilingScheme { return s.scheme }

// MinimumLevel reports the declared minimum zoom, when set.
func (s *TemplateSource) MinimumLevel() (int, bool) { return s.minZoom, s.minZoom > 0 }

// MaximumLevel reports the declared maximum zoom, when set.
func (s *TemplateSource) MaximumLevel() (int, bool) { return s.maxZoom, s.maxZoom > 0 }

// Credit returns the source's attribution, or nil.
func (s *TemplateSource) Credit() *maptiles.Credit { return s.credit }

// TileCredits returns per-tile attribution. Template sources carry only a
// top-level credit.
func (s *TemplateSource) TileCredits(col, row, level int) []maptiles.Credit { return nil }

// TileURL substitutes the tile coordinate into the template.
func (s *TemplateSource) TileURL(col, row, level int) (string, bool) {
	if s.maxZoom > 0 && level > s.maxZoom {
		return "", false
	}
	if level < s.minZoom {
		return "", false
	}

	url := s.template
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(level))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(col))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(row))
	if len(s.subdomains) > 0 {
		url = strings.ReplaceAll(url, "{s}", s.subdomains[(col+row)%len(s.subdomains)])
	}
	return url, true
}

// PickFeatures is not supported by plain template sources.
func (s *TemplateSource) PickFeatures(col, row, level int, lon, lat float64) ([]maptiles.Feature, error) {
	return nil, nil
}

// RetryTile grants retries according to the source's backoff strategy: the
// returned channel resolves after the backoff interval, or nil is returned
// once retries are exhausted.
func (s *TemplateSource) RetryTile(f *maptiles.TileFailure) <-chan error {
	wait, ok := s.retry.Wait(f.Attempts)
	if !ok {
		return nil
	}

	log.Printf("[Source] tile %d/%d/%d failed (attempt %d), retrying in %s",
		f.Tile.Column, f.Tile.Row, f.Tile.Level, f.Attempts, wait)

	ch := make(chan error, 1)
	time.AfterFunc(wait, func() { ch <- nil })
	return ch
}
