package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var promNodeSuspect = promauto.NewGaugeVec(
	prometheus.GaugeOpts{Name: "hedera_node_suspect", Help: "Whether a node is currently excluded from selection"},
	[]string{"node"},
)
