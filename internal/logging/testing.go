package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// TestLogger records every entry, down to VerboseLevel, for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a TestLogger with the default config.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(VerboseLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// All returns all logged entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// Reset clears all logged entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged verifies an entry at level containing msgContains was logged.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.observed.FilterLevelExact(level).FilterMessageSnippet(msgContains).Len() == 0 {
		tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
	}
}

// AssertNotLogged verifies no entry at level containing msgContains was logged.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if n := t.observed.FilterLevelExact(level).FilterMessageSnippet(msgContains).Len(); n > 0 {
		tb.Errorf("unexpected %d log(s) at %v containing %q", n, level, msgContains)
	}
}

// AssertSeverity verifies the entry with message msg would be forwarded as a
// trace of severity sev.
func (t *TestLogger) AssertSeverity(tb testing.TB, msg string, sev contracts.Severity) {
	tb.Helper()
	entries := t.observed.FilterMessage(msg).All()
	if len(entries) == 0 {
		tb.Errorf("message %q not logged", msg)
		return
	}
	for _, entry := range entries {
		if got := contracts.SeverityFromLevel(entry.Level); got != sev {
			tb.Errorf("message %q maps to severity %v, want %v", msg, got, sev)
		}
	}
}

// AssertField verifies a field with key and value exists on message msg.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		value, ok := entry.ContextMap()[key]
		if ok && reflect.DeepEqual(value, expected) {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertOperationID verifies message msg carries the operation id.
func (t *TestLogger) AssertOperationID(tb testing.TB, msg, operationID string) {
	tb.Helper()
	t.AssertField(tb, msg, "operation.id", operationID)
}

// AssertNoSecrets verifies no entry leaks a value the default redaction
// rules would have removed. Sensitive fields must hold a redaction marker.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	rules := NewDefaultConfig().Redaction
	patterns := make([]*regexp.Regexp, 0, len(rules.Patterns))
	for _, p := range rules.Patterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	leaks := func(s string) bool {
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}

	for _, entry := range t.observed.All() {
		if leaks(entry.Message) {
			tb.Errorf("sensitive pattern in message: %q", entry.Message)
		}
		for _, field := range entry.Context {
			if field.Type != zapcore.StringType {
				continue
			}
			if leaks(field.String) {
				tb.Errorf("sensitive pattern in field %q: %q", field.Key, field.String)
			}
			key := strings.ToLower(field.Key)
			for _, sensitive := range rules.Fields {
				if strings.Contains(key, sensitive) && field.String != "" && !strings.HasPrefix(field.String, "[REDACTED") {
					tb.Errorf("sensitive field %q not redacted: %q", field.Key, field.String)
				}
			}
		}
	}
}
