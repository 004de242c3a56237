package logging

import (
	"slices"

	"go.uber.org/zap/zapcore"
)

// newSampledCore gives each level below Error that has a budget in
// cfg.Levels its own sampler. Levels without a budget, and Error and
// above, pass through untouched.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	budgets := make(map[zapcore.Level]LevelSamplingConfig, len(cfg.Levels))
	for lvl, budget := range cfg.Levels {
		if lvl < zapcore.ErrorLevel {
			budgets[lvl] = budget
		}
	}
	if len(budgets) == 0 {
		return core
	}

	cores := []zapcore.Core{
		gate(core, func(lvl zapcore.Level) bool {
			_, sampled := budgets[lvl]
			return !sampled
		}),
	}
	levels := make([]zapcore.Level, 0, len(budgets))
	for lvl := range budgets {
		levels = append(levels, lvl)
	}
	slices.Sort(levels)
	for _, lvl := range levels {
		budget := budgets[lvl]
		cores = append(cores, zapcore.NewSamplerWithOptions(
			gate(core, func(l zapcore.Level) bool { return l == lvl }),
			cfg.Tick.Duration(),
			budget.Initial,
			budget.Thereafter,
		))
	}

	return zapcore.NewTee(cores...)
}

// gateCore restricts a core to the levels allow accepts.
type gateCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func gate(core zapcore.Core, allow func(zapcore.Level) bool) zapcore.Core {
	return &gateCore{Core: core, allow: allow}
}

// atLeast gates core to entries at or above min. The telemetry core has no
// level of its own, so this is where the configured level applies to it.
func atLeast(core zapcore.Core, min zapcore.Level) zapcore.Core {
	return gate(core, func(lvl zapcore.Level) bool { return lvl >= min })
}

func (c *gateCore) Enabled(lvl zapcore.Level) bool {
	return c.allow(lvl) && c.Core.Enabled(lvl)
}

func (c *gateCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With keeps the gate on child loggers.
func (c *gateCore) With(fields []zapcore.Field) zapcore.Core {
	return &gateCore{Core: c.Core.With(fields), allow: c.allow}
}
