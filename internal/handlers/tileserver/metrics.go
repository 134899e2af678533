package tileserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesServedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Name:      "tiles_served_total",
		Help:      "Tiles served, by layer and origin (cache or upstream).",
	}, []string{"layer", "origin"})

	tileErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Name:      "tile_errors_total",
		Help:      "Tile requests that failed, by layer and reason.",
	}, []string{"layer", "reason"})
)
