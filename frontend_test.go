package main

import (
	"strings"
	"testing"
)

// The frontend shell is a static asset, so the backend protocol it speaks is
// checked here: every bound call and event it must wire has to appear in the
// embedded page.
func TestFrontendWiresBackendProtocol(t *testing.T) {
	data, err := assets.ReadFile("frontend/dist/index.html")
	if err != nil {
		t.Fatalf("read embedded frontend: %v", err)
	}
	page := string(data)

	wired := []string{
		// Bound calls.
		"ReportViewChanged",
		"ReportTileError",
		"ReportEngineCapabilities",
		"SetSplitPosition",
		"GetTileServerURL",
		// Failed tile loads must reach the retry controller.
		"tileerror",
		// Surface events.
		"tile-set-url",
		"tile-error-display",
		"zoom-bounds",
		"clip-changed",
		"force-layout-flush",
		"abort-requests",
		"attribution-add",
		"attribution-remove",
	}
	for _, want := range wired {
		if !strings.Contains(page, want) {
			t.Errorf("frontend does not wire %q", want)
		}
	}
}
