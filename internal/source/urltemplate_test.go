package source

import (
	"testing"
	"time"

	"imagery-compare/internal/maptiles"
)

func TestTemplateSourceTileURL(t *testing.T) {
	s := NewTemplateSource("https://tile.example.com/{z}/{x}/{y}.png", TemplateOptions{})

	url, ok := s.TileURL(3, 2, 5)
	if !ok {
		t.Fatal("tile did not resolve")
	}
	want := "https://tile.example.com/5/3/2.png"
	if url != want {
		t.Errorf("URL: got %q, want %q", url, want)
	}
}

func TestTemplateSourceSubdomains(t *testing.T) {
	s := NewTemplateSource("https://{s}.tile.example.com/{z}/{x}/{y}.png", TemplateOptions{
		Subdomains: []string{"a", "b", "c"},
	})

	url, _ := s.TileURL(0, 0, 1)
	if url != "https://a.tile.example.com/1/0/0.png" {
		t.Errorf("subdomain for 0,0: got %q", url)
	}

	url, _ = s.TileURL(1, 0, 1)
	if url != "https://b.tile.example.com/1/1/0.png" {
		t.Errorf("subdomain for 1,0: got %q", url)
	}

	// Rotation is stable for a given tile.
	again, _ := s.TileURL(1, 0, 1)
	if again != url {
		t.Errorf("subdomain rotation not stable: %q vs %q", again, url)
	}
}

func TestTemplateSourceZoomBounds(t *testing.T) {
	s := NewTemplateSource("https://tile.example.com/{z}/{x}/{y}.png", TemplateOptions{
		MinZoom: 2,
		MaxZoom: 10,
	})

	if _, ok := s.TileURL(0, 0, 1); ok {
		t.Error("level below minimum resolved")
	}
	if _, ok := s.TileURL(0, 0, 11); ok {
		t.Error("level above maximum resolved")
	}
	if _, ok := s.TileURL(0, 0, 5); !ok {
		t.Error("level in range did not resolve")
	}

	if min, has := s.MinimumLevel(); !has || min != 2 {
		t.Errorf("minimum level: got %d,%v", min, has)
	}
	if max, has := s.MaximumLevel(); !has || max != 10 {
		t.Errorf("maximum level: got %d,%v", max, has)
	}
}

func TestTemplateSourceAttribution(t *testing.T) {
	s := NewTemplateSource("https://tile.example.com/{z}/{x}/{y}.png", TemplateOptions{
		Attribution: "© Example",
	})

	c := s.Credit()
	if c == nil || c.HTML != "© Example" {
		t.Errorf("credit: got %+v", c)
	}

	if creds := s.TileCredits(0, 0, 0); creds != nil {
		t.Errorf("per-tile credits: got %v, want none", creds)
	}
}

func TestRetryStrategyWait(t *testing.T) {
	s := &RetryStrategy{
		Intervals:  []time.Duration{time.Millisecond, 2 * time.Millisecond},
		MaxRetries: 3,
	}

	if w, ok := s.Wait(1); !ok || w != time.Millisecond {
		t.Errorf("attempt 1: got %v,%v", w, ok)
	}
	if w, ok := s.Wait(2); !ok || w != 2*time.Millisecond {
		t.Errorf("attempt 2: got %v,%v", w, ok)
	}
	// Past the interval table the last interval repeats.
	if w, ok := s.Wait(3); !ok || w != 2*time.Millisecond {
		t.Errorf("attempt 3: got %v,%v", w, ok)
	}
	// Beyond MaxRetries nothing is granted.
	if _, ok := s.Wait(4); ok {
		t.Error("attempt 4 granted, want declined")
	}
}

func TestTemplateSourceRetryTile(t *testing.T) {
	s := NewTemplateSource("https://tile.example.com/{z}/{x}/{y}.png", TemplateOptions{
		Retry: &RetryStrategy{Intervals: []time.Duration{time.Millisecond}, MaxRetries: 1},
	})

	f := &maptiles.TileFailure{Tile: maptiles.TileCoord{Column: 1, Row: 2, Level: 3}, Attempts: 1}
	ch := s.RetryTile(f)
	if ch == nil {
		t.Fatal("first retry declined")
	}
	select {
	case err := <-ch:
		if err != nil {
			t.Errorf("retry wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry wait never resolved")
	}

	f.Attempts = 2
	if ch := s.RetryTile(f); ch != nil {
		t.Error("retry granted past MaxRetries")
	}
}
