// Package tileserver runs a local HTTP server that proxies registered imagery
// sources through the tile cache, so the frontend can load every layer from a
// single same-host origin.
package tileserver

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/maptiles"
)

// Layer is the tile-layer collaborator the server proxies for: it resolves
// surface tile coordinates to upstream URLs with the layer's reconciled zoom
// offset already applied. Requests carry raw surface zoom, so resolving
// through the layer, never the source, is what keeps the offset invariant.
type Layer interface {
	Usable() bool
	ResolveTileURL(tile maptiles.TileCoord) (url string, ok bool)
}

// Server serves tiles for registered imagery layers over loopback HTTP.
type Server struct {
	mu        sync.RWMutex
	layers    map[string]Layer
	tileCache *cache.TileCache
	devMode   bool

	httpClient    *http.Client
	tileServerURL string
	listener      net.Listener
}

// NewServer creates a tile server backed by the given cache. The cache may be
// nil, in which case every request goes upstream.
func NewServer(tileCache *cache.TileCache) *Server {
	return &Server{
		layers:    make(map[string]Layer),
		tileCache: tileCache,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}
}

// SetDevMode toggles the /metrics endpoint. Takes effect on the next Router
// call, so set it before Start.
func (s *Server) SetDevMode(devMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devMode = devMode
}

// RegisterLayer makes a layer reachable at /tiles/{name}/{z}/{x}/{y}.
func (s *Server) RegisterLayer(name string, layer Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[name] = layer
}

// UnregisterLayer removes a layer from the server.
func (s *Server) UnregisterLayer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, name)
}

func (s *Server) layer(name string) (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layer, ok := s.layers[name]
	return layer, ok
}

// GetTileServerURL returns the base URL, empty until Start succeeds.
func (s *Server) GetTileServerURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tileServerURL
}

// corsMiddleware adds CORS headers to allow requests from the Wails frontend.
// On macOS/Linux, Wails uses a wails://wails origin which requires CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router builds the server's HTTP routes.
func (s *Server) Router() http.Handler {
	s.mu.RLock()
	devMode := s.devMode
	s.mu.RUnlock()

	r := mux.NewRouter()
	r.HandleFunc("/tiles/{layer}/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}", s.handleTile)
	if devMode {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return corsMiddleware(r)
}

// Start begins serving on a random loopback port.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start tile server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port

	s.mu.Lock()
	s.listener = listener
	s.tileServerURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	s.mu.Unlock()

	log.Printf("[TileServer] started on %s", s.GetTileServerURL())

	server := &http.Server{Handler: s.Router()}
	go func() {
		if err := server.Serve(listener); err != nil {
			log.Printf("[TileServer] stopped: %v", err)
		}
	}()

	return nil
}

// Stop closes the listener.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["layer"]
	z, _ := strconv.Atoi(vars["z"])
	x, _ := strconv.Atoi(vars["x"])
	y, _ := strconv.Atoi(vars["y"])

	layer, ok := s.layer(name)
	if !ok {
		tileErrorsCounter.WithLabelValues(name, "unknown_layer").Inc()
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}
	if !layer.Usable() {
		tileErrorsCounter.WithLabelValues(name, "not_ready").Inc()
		http.Error(w, "layer not ready", http.StatusServiceUnavailable)
		return
	}

	key := cache.TileKey(name, x, y, z)
	if s.tileCache != nil {
		if data, ok := s.tileCache.Get(key); ok {
			tilesServedCounter.WithLabelValues(name, "cache").Inc()
			s.writeTile(w, data)
			return
		}
	}

	url, ok := layer.ResolveTileURL(maptiles.TileCoord{Column: x, Row: y, Level: z})
	if !ok {
		tileErrorsCounter.WithLabelValues(name, "unresolved").Inc()
		http.Error(w, "tile not available", http.StatusNotFound)
		return
	}

	data, err := s.fetchTile(url)
	if err != nil {
		tileErrorsCounter.WithLabelValues(name, "upstream").Inc()
		log.Printf("[TileServer] fetch %s/%d/%d/%d: %v", name, z, x, y, err)
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	if s.tileCache != nil {
		if err := s.tileCache.Set(key, data); err != nil {
			log.Printf("[TileServer] cache %s: %v", key, err)
		}
	}

	tilesServedCounter.WithLabelValues(name, "upstream").Inc()
	s.writeTile(w, data)
}

func (s *Server) fetchTile(url string) ([]byte, error) {
	resp, err := s.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile request failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile: %w", err)
	}
	return data, nil
}

func (s *Server) writeTile(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}
