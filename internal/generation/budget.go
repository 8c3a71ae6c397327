package generation

import (
	"log/slog"
	"math"
	"time"

	"localchat-backend/internal/metrics"
)

// BudgetResult reports how a finished run compares to the time budget.
type BudgetResult struct {
	Elapsed         time.Duration
	Limit           time.Duration
	TokensGenerated int
	Exceeded        bool
}

// BudgetMonitor flags generation runs that took longer than the configured
// limit. It only observes: the run has already finished when Check is called.
type BudgetMonitor struct {
	limit  time.Duration
	logger *slog.Logger
}

// NewBudgetMonitor creates a monitor for the given wall-clock limit.
func NewBudgetMonitor(limit time.Duration, logger *slog.Logger) *BudgetMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetMonitor{limit: limit, logger: logger}
}

// Check compares elapsed to the limit, logging a warning on overrun.
func (m *BudgetMonitor) Check(elapsed time.Duration, tokensGenerated int) BudgetResult {
	res := BudgetResult{
		Elapsed:         elapsed,
		Limit:           m.limit,
		TokensGenerated: tokensGenerated,
		Exceeded:        elapsed > m.limit,
	}
	if !res.Exceeded {
		return res
	}

	metrics.BudgetOverruns.Inc()
	m.logger.Warn("Generation exceeded budget",
		"elapsed_s", roundSeconds(elapsed),
		"limit_s", m.limit.Seconds(),
		"tokens_generated", tokensGenerated,
	)
	return res
}

// roundSeconds renders d in seconds with two decimals.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
