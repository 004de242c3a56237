package insights

import (
	"context"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// Core returns a zap core that forwards log entries as traces while the
// client is initialized with console collection on. Entries logged before
// then are discarded.
//
// Collectors with a native bridge (contracts.CoreProvider) receive entries
// through it; otherwise each entry becomes a Trace whose properties are the
// entry's fields.
//
// The core must not be teed into the logger passed to New.
func (c *Client) Core() zapcore.Core {
	return &traceCore{client: c}
}

type traceCore struct {
	client *Client
	fields []zapcore.Field
}

// Enabled accepts every level; level filtering belongs to the logger the
// core is teed into.
func (tc *traceCore) Enabled(zapcore.Level) bool {
	return true
}

func (tc *traceCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(tc.fields)+len(fields))
	merged = append(merged, tc.fields...)
	merged = append(merged, fields...)
	return &traceCore{client: tc.client, fields: merged}
}

func (tc *traceCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if _, active := tc.client.activeAutoCollection(); !active {
		return ce
	}
	return ce.AddCore(ent, tc)
}

func (tc *traceCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c := tc.client
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != stateInitialized || !c.autoCollect.Console {
		return nil
	}

	if c.nativeCore != nil {
		core := c.nativeCore
		if len(tc.fields) > 0 {
			core = core.With(tc.fields)
		}
		return core.Write(ent, fields)
	}

	c.collector.TrackTrace(context.Background(), contracts.Trace{
		Message:    ent.Message,
		Severity:   contracts.SeverityFromLevel(ent.Level),
		Properties: entryProperties(ent, tc.fields, fields),
	})
	c.metrics.forwarded.WithLabelValues(kindTrace).Inc()
	return nil
}

func (tc *traceCore) Sync() error {
	return nil
}

func entryProperties(ent zapcore.Entry, groups ...[]zapcore.Field) contracts.Properties {
	enc := zapcore.NewMapObjectEncoder()
	for _, fields := range groups {
		for _, f := range fields {
			f.AddTo(enc)
		}
	}

	props := make(contracts.Properties, len(enc.Fields)+2)
	for k, v := range enc.Fields {
		props[k] = fmt.Sprint(v)
	}
	if ent.LoggerName != "" {
		props["logger"] = ent.LoggerName
	}
	if ent.Caller.Defined {
		props["caller"] = ent.Caller.TrimmedPath()
	}
	return props
}
