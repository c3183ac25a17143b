package config

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-common/pkg/config"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

type preset struct {
	ledger entity.LedgerID
	nodes  []presetNode
}

type presetNode struct {
	account string
	url     string
}

var presets = map[string]preset{
	"mainnet": {
		ledger: entity.Mainnet,
		nodes: []presetNode{
			{"0.0.3", "grpc://35.237.200.180:50211?insecure=true"},
			{"0.0.4", "grpc://35.186.191.247:50211?insecure=true"},
			{"0.0.5", "grpc://35.192.2.25:50211?insecure=true"},
			{"0.0.6", "grpc://35.199.161.108:50211?insecure=true"},
			{"0.0.7", "grpc://35.203.82.240:50211?insecure=true"},
			{"0.0.8", "grpc://35.236.5.219:50211?insecure=true"},
			{"0.0.9", "grpc://35.197.192.225:50211?insecure=true"},
		},
	},
	"testnet": {
		ledger: entity.Testnet,
		nodes: []presetNode{
			{"0.0.3", "grpc://0.testnet.hedera.com:50211?insecure=true"},
			{"0.0.4", "grpc://1.testnet.hedera.com:50211?insecure=true"},
			{"0.0.5", "grpc://2.testnet.hedera.com:50211?insecure=true"},
			{"0.0.6", "grpc://3.testnet.hedera.com:50211?insecure=true"},
		},
	},
	"previewnet": {
		ledger: entity.Previewnet,
		nodes: []presetNode{
			{"0.0.3", "grpc://0.previewnet.hedera.com:50211?insecure=true"},
			{"0.0.4", "grpc://1.previewnet.hedera.com:50211?insecure=true"},
			{"0.0.5", "grpc://2.previewnet.hedera.com:50211?insecure=true"},
			{"0.0.6", "grpc://3.previewnet.hedera.com:50211?insecure=true"},
		},
	},
}

// Networks lists the preset network names.
func Networks() []string {
	names := maps.Keys(presets)
	slices.Sort(names)
	return names
}

// PresetNodes returns the node list of a preset network.
func PresetNodes(network string) (NodeConfigs, bool) {
	p, ok := presets[network]
	if !ok {
		return nil, false
	}
	nodes := make(NodeConfigs, 0, len(p.nodes))
	for _, n := range p.nodes {
		nodes = append(nodes, &NodeConfig{
			Name:      ptr(network + "-" + n.account),
			AccountID: ptr(n.account),
			URL:       config.MustParseURL(n.url),
		})
	}
	return nodes, true
}

func ptr[T any](v T) *T { return &v }
