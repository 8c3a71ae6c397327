package generation

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat-backend/internal/metrics"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestBudgetWithinLimit(t *testing.T) {
	logger, buf := bufferLogger()
	before := testutil.ToFloat64(metrics.BudgetOverruns)

	res := NewBudgetMonitor(30*time.Second, logger).Check(5*time.Second, 50)

	assert.False(t, res.Exceeded)
	assert.Equal(t, 50, res.TokensGenerated)
	assert.Empty(t, buf.String())
	assert.Equal(t, before, testutil.ToFloat64(metrics.BudgetOverruns))
}

func TestBudgetExactlyAtLimitIsWithin(t *testing.T) {
	logger, _ := bufferLogger()
	assert.False(t, NewBudgetMonitor(30*time.Second, logger).Check(30*time.Second, 1).Exceeded)
}

func TestBudgetOverrunLogsWarning(t *testing.T) {
	logger, buf := bufferLogger()
	before := testutil.ToFloat64(metrics.BudgetOverruns)

	res := NewBudgetMonitor(30*time.Second, logger).Check(45*time.Second, 80)

	assert.True(t, res.Exceeded)
	assert.Equal(t, 80, res.TokensGenerated)
	assert.Equal(t, 45*time.Second, res.Elapsed)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BudgetOverruns))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Generation exceeded budget", entry["msg"])
	assert.InDelta(t, 45.0, entry["elapsed_s"], 1e-9)
	assert.InDelta(t, 80, entry["tokens_generated"], 0)
}
