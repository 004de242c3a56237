package logging

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightkit/internal/config"
	"github.com/fyrsmithlabs/insightkit/internal/connstr"
)

const (
	redacted        = "[REDACTED]"
	maxPatternChars = 200
)

// Secret logs a config.Secret as a redaction marker carrying its length.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as a redaction marker carrying its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// ConnectionString logs where telemetry is sent. The instrumentation key is
// cut down to its first GUID group, which is enough to tell resources apart.
func ConnectionString(key string, cs connstr.ConnectionString) zap.Field {
	return zap.Object(key, connectionString(cs))
}

type connectionString connstr.ConnectionString

func (cs connectionString) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("ingestion_endpoint", cs.IngestionEndpoint)
	if cs.LiveEndpoint != "" {
		enc.AddString("live_endpoint", cs.LiveEndpoint)
	}
	enc.AddString("ikey", keyHint(cs.InstrumentationKey))
	return nil
}

func keyHint(key string) string {
	group, _, ok := strings.Cut(key, "-")
	if !ok || len(group) != 8 {
		return "[REDACTED:" + strconv.Itoa(len(key)) + "]"
	}
	return group + "-" + redacted
}

// redactor holds compiled redaction rules. The nil and zero values redact
// nothing.
type redactor struct {
	fields   map[string]bool
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	if !cfg.Enabled {
		return &redactor{}, nil
	}

	r := &redactor{
		fields:   make(map[string]bool, len(cfg.Fields)),
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
	}
	for _, f := range cfg.Fields {
		r.fields[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternChars {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternChars, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *redactor) sensitive(key string) bool {
	return r != nil && r.fields[strings.ToLower(key)]
}

func (r *redactor) scrub(val string) string {
	if r == nil {
		return val
	}
	for _, re := range r.patterns {
		val = re.ReplaceAllString(val, redacted)
	}
	return val
}

// redactFields never writes to fields: zap hands the same slice to every
// core in a tee. It copies on the first replacement.
func (r *redactor) redactFields(fields []zapcore.Field) []zapcore.Field {
	out, copied := fields, false
	for i, f := range fields {
		var replacement zapcore.Field
		switch {
		case r.sensitive(f.Key):
			replacement = zap.String(f.Key, redacted)
		case f.Type == zapcore.StringType:
			scrubbed := r.scrub(f.String)
			if scrubbed == f.String {
				continue
			}
			replacement = zap.String(f.Key, scrubbed)
		default:
			continue
		}
		if !copied {
			out, copied = slices.Clone(fields), true
		}
		out[i] = replacement
	}
	return out
}

// redactingCore applies the rules in front of a core that does not encode
// through a RedactingEncoder, such as the collector's.
type redactingCore struct {
	zapcore.Core
	rules *redactor
}

func redact(core zapcore.Core, rules *redactor) zapcore.Core {
	return &redactingCore{Core: core, rules: rules}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return redact(c.Core.With(c.rules.redactFields(fields)), c.rules)
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.rules.scrub(ent.Message)
	return c.Core.Write(ent, c.rules.redactFields(fields))
}

// RedactingEncoder wraps a zapcore.Encoder. Fields whose name is listed in
// the redaction config are replaced outright; string values and messages
// have every pattern match replaced.
type RedactingEncoder struct {
	zapcore.Encoder
	*redactor
}

// NewRedactingEncoder wraps base with the rules in cfg.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	rules, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, redactor: rules}, nil
}

// EncodeEntry covers the fields passed at the call site, which the wrapped
// encoder would otherwise add to its own clone.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	ent.Message = e.scrub(ent.Message)
	return e.Encoder.EncodeEntry(ent, e.redactFields(fields))
}

// The Add methods below cover fields attached with Logger.With.

func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddString(key, e.scrub(val))
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddBinary(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone keeps the rules on the copy.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), redactor: e.redactor}
}
