package insights

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

func TestCore_BeforeInitialize(t *testing.T) {
	col := &fakeCollector{}
	c, _ := newTestClient(t, col)

	zap.New(c.Core()).Warn("too early")

	require.NoError(t, c.Initialize(context.Background(), Config{ConnectionString: "x"}))
	for _, rec := range col.Records() {
		_, isTrace := rec.(contracts.Trace)
		assert.False(t, isTrace)
	}
}

func TestCore_ForwardsTraces(t *testing.T) {
	c, col := initialized(t)

	logger := zap.New(c.Core()).Named("billing").With(zap.String("tenant", "acme"))
	logger.Warn("quota nearly exhausted", zap.Int("remaining", 3))

	records := col.Records()
	require.Len(t, records, 1)
	tr, ok := records[0].(contracts.Trace)
	require.True(t, ok)
	assert.Equal(t, "quota nearly exhausted", tr.Message)
	assert.Equal(t, contracts.Warning, tr.Severity)
	assert.Equal(t, contracts.Properties{
		"tenant":    "acme",
		"remaining": "3",
		"logger":    "billing",
	}, tr.Properties)
}

func TestCore_Severities(t *testing.T) {
	c, col := initialized(t)
	logger := zap.New(c.Core())

	logger.Debug("d")
	logger.Info("i")
	logger.Error("e")

	var got []contracts.Severity
	for _, rec := range col.Records() {
		got = append(got, rec.(contracts.Trace).Severity)
	}
	assert.Equal(t, []contracts.Severity{
		contracts.Verbose,
		contracts.Information,
		contracts.Error,
	}, got)
}

func TestCore_ConsoleDisabled(t *testing.T) {
	col := &fakeCollector{}
	c, _ := newTestClient(t, col)
	require.NoError(t, c.Initialize(context.Background(), Config{
		ConnectionString:     "x",
		EnableAutoCollection: Bool(false),
	}))

	zap.New(c.Core()).Error("not collected")
	assert.Empty(t, col.Records())
}

func TestCore_AfterClose(t *testing.T) {
	c, col := initialized(t)
	require.NoError(t, c.Close(context.Background()))

	zap.New(c.Core()).Info("late")
	assert.Empty(t, col.Records())
}

func TestCore_NativeBridge(t *testing.T) {
	native, logs := observer.New(zapcore.DebugLevel)
	col := &coreCollector{fakeCollector: &fakeCollector{}, core: native}

	c := New(nil, WithSetup(fakeSetup(col, nil)))
	require.NoError(t, c.Initialize(context.Background(), Config{ConnectionString: "x"}))

	zap.New(c.Core()).With(zap.String("component", "cart")).Info("added item")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "added item", entry.Message)
	assert.Equal(t, "cart", entry.ContextMap()["component"])
	assert.Empty(t, col.Records())
}
