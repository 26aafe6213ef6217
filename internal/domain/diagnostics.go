package domain

import "time"

// PluginDiagnostics is the per-plugin health snapshot served by
// /stats/plugin-scores.
type PluginDiagnostics struct {
	Name                string     `json:"name"`
	Mode                string     `json:"mode"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
	ActiveDomain        string     `json:"activeDomain,omitempty"`
	Mirrors             []string   `json:"mirrors,omitempty"`
}

// PluginScore is the scoring summary exposed by /stats/plugin-scores.
type PluginScore struct {
	Name      string  `json:"name"`
	Attempts  int64   `json:"attempts"`
	Successes int64   `json:"successes"`
	Timeouts  int64   `json:"timeouts"`
	Errors    int64   `json:"errors"`
	EWMALatencyMS float64 `json:"ewmaLatencyMs"`
	State     string  `json:"state"`
}
