package resource

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semres",
		Subsystem: "resource",
		Name:      "cache_lookups_total",
		Help:      "Resource handle lookups by whether an existing record was reused",
	}, []string{"result"})

	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semres",
		Subsystem: "resource",
		Name:      "resolutions_total",
		Help:      "Kickoff identifier resolutions by outcome",
	}, []string{"outcome"})

	syncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semres",
		Subsystem: "resource",
		Name:      "syncs_total",
		Help:      "Resource write-backs by result",
	}, []string{"result"})

	loads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "semres",
		Subsystem: "resource",
		Name:      "loads_total",
		Help:      "Remote state loads by whether the store round trip was shared",
	}, []string{"shared"})
)

// Resolution outcomes.
const (
	outcomeMinted     = "minted"
	outcomeURI        = "uri"
	outcomeIdentifier = "identifier"
	outcomeNewURI     = "new_uri"
	outcomeError      = "error"
)

func observeLoad(shared bool) {
	loads.WithLabelValues(strconv.FormatBool(shared)).Inc()
}
