package alerts

import "github.com/opensupply/tradewind/internal/domain"

// BuiltinRules returns the default alert rule set loaded at startup.
// Deployments replace these by reloading the engine.
func BuiltinRules() []*domain.AlertRule {
	return []*domain.AlertRule{
		{
			ID:          "severe-anomaly",
			Name:        "Severe price anomaly",
			Description: "Any anomaly three or more standard deviations from its regional mean",
			Severity:    domain.SeverityCritical,
			Expression:  "abs_z >= 3.0",
			Enabled:     true,
		},
		{
			ID:          "price-spike",
			Name:        "Regional price spike",
			Description: "Price spike more than 50% above the regional mean",
			Severity:    domain.SeverityWarning,
			Expression:  `anomaly_type == "price_spike" && variance_pct > 50.0`,
			Enabled:     true,
		},
		{
			ID:          "vendor-outlier",
			Name:        "Vendor pricing outlier",
			Description: "A single vendor consistently priced away from its market",
			Severity:    domain.SeverityWarning,
			Expression:  `anomaly_type == "vendor_outlier"`,
			Enabled:     false,
		},
	}
}
