package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pagesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mastowatch_scan_pages_total",
	Help: "Number of listing pages fetched and evaluated, by session type",
}, []string{"session"})

var cyclesRun = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mastowatch_scan_cycles_total",
	Help: "Number of scan cycles, by session type and outcome",
}, []string{"session", "result"})
