package onchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Morpho ChainlinkOracleV2 feed getters.
const chainlinkOracleV2ABI = `[
	{"type":"function","name":"BASE_FEED_1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"BASE_FEED_2","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"QUOTE_FEED_1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"QUOTE_FEED_2","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// Chainlink AggregatorV3Interface subset.
const aggregatorV3ABI = `[
	{"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],"outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}
	]}
]`

// AdaptiveCurveIrm target utilization, WAD scaled.
const adaptiveCurveIrmABI = `[
	{"type":"function","name":"TARGET_UTILIZATION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int256"}]}
]`

var (
	oracleABI     = mustParseABI(chainlinkOracleV2ABI)
	aggregatorABI = mustParseABI(aggregatorV3ABI)
	irmABI        = mustParseABI(adaptiveCurveIrmABI)

	// order matters: results are matched back by index
	oracleFeedMethods = []string{"BASE_FEED_1", "BASE_FEED_2", "QUOTE_FEED_1", "QUOTE_FEED_2"}
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("onchain: bad abi: " + err.Error())
	}
	return parsed
}
