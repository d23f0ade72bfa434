package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespaceChain = "chain"

var (
	blockHeightHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceChain,
		Name:      "block_height_head",
		Help:      "height of the body head",
	})

	blockOrdinalHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceChain,
		Name:      "block_ordinal_head",
		Help:      "block ordinal of the body head",
	})

	headerHeadHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceChain,
		Name:      "header_head_height",
		Help:      "height of the header head",
	})

	finalHeadHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceChain,
		Name:      "final_head_height",
		Help:      "height of the final head",
	})

	shardLayoutVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceChain,
		Name:      "shard_layout_version",
		Help:      "shard layout version of the block after the head",
	})

	shardLayoutNumShards = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceChain,
		Name:      "shard_layout_num_shards",
		Help:      "number of shards of the block after the head",
	})

	challengedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceChain,
		Name:      "challenged_blocks_total",
		Help:      "number of blocks marked as challenged",
	})

	reshardingChildExtras = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceChain,
		Name:      "resharding_child_extras_total",
		Help:      "number of chunk extras staged for child shards",
	})
)
