package normalize

import (
	"log/slog"
	"strings"
)

// Metric identifies one canonical numeric column of the royalty rows table.
// The aggregation functions consumed by the chat layer take a metric column
// name as input, so Column() values are part of the persisted-state contract.
type Metric int

const (
	MetricValue Metric = iota
	MetricAmountCollected
	MetricRoyaltyPayable
	MetricUnits
)

// Column returns the royalty_rows column name for the metric.
func (m Metric) Column() string {
	switch m {
	case MetricAmountCollected:
		return "amount_collected"
	case MetricRoyaltyPayable:
		return "royalty_payable"
	case MetricUnits:
		return "units"
	default:
		return "value"
	}
}

func (m Metric) String() string { return m.Column() }

// metricSynonyms maps loosely-specified metric names to canonical metrics.
// Lookup is case-insensitive; keys are stored lowercased.
var metricSynonyms = map[string]Metric{
	"amount_collected": MetricAmountCollected,
	"amount collected": MetricAmountCollected,
	"collected":        MetricAmountCollected,
	"gross":            MetricAmountCollected,
	"gross amount":     MetricAmountCollected,
	"revenue":          MetricAmountCollected,
	"income":           MetricAmountCollected,

	"royalty_payable": MetricRoyaltyPayable,
	"royalty payable": MetricRoyaltyPayable,
	"payable":         MetricRoyaltyPayable,
	"royalty":         MetricRoyaltyPayable,
	"royalties":       MetricRoyaltyPayable,
	"net":             MetricRoyaltyPayable,
	"net amount":      MetricRoyaltyPayable,
	"net payable":     MetricRoyaltyPayable,

	"units":    MetricUnits,
	"unit":     MetricUnits,
	"quantity": MetricUnits,
	"plays":    MetricUnits,
	"streams":  MetricUnits,
	"count":    MetricUnits,

	"value":  MetricValue,
	"amount": MetricValue,
	"total":  MetricValue,
}

// MapMetric resolves a requested metric name to a canonical metric. Unknown
// names log a warning and fall back to def; this never fails.
func MapMetric(requested string, def Metric, logger *slog.Logger) Metric {
	key := strings.ToLower(strings.TrimSpace(requested))
	if m, ok := metricSynonyms[key]; ok {
		return m
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("metric.unmapped", "requested", requested, "fallback", def.Column())
	return def
}
