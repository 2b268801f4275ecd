// Package stats assembles the observability-only RunStats value (spec.md
// §6): phase timings, and per-tier summaries with no contract on exact
// numeric values, only keys and monotonic relationships.
package stats

import (
	"time"

	"github.com/kontra-dev/kontra/internal/kontralog"
	"github.com/kontra-dev/kontra/internal/preplan"
	"github.com/kontra-dev/kontra/internal/result"
)

// Builder accumulates phase timings and per-tier summaries across a single
// orchestrator run.
type Builder struct {
	phaseStart map[string]time.Time
	phasesMS   map[string]int64
	preplan    result.PreplanStats
	pushdown   result.PushdownStats
	projection result.ProjectionStats
	engineLabel string
	io         map[string]any
}

func NewBuilder() *Builder {
	return &Builder{
		phaseStart: map[string]time.Time{},
		phasesMS:   map[string]int64{},
	}
}

// StartPhase marks the beginning of a named phase (spec.md §6 phases_ms).
func (b *Builder) StartPhase(name string) {
	b.phaseStart[name] = time.Now()
}

// EndPhase records the elapsed time for a phase started with StartPhase and
// logs it as a structured event.
func (b *Builder) EndPhase(name string) {
	start, ok := b.phaseStart[name]
	if !ok {
		return
	}
	elapsed := time.Since(start)
	b.phasesMS[name] = elapsed.Milliseconds()
	kontralog.Phase(name, elapsed)
}

// SetPreplan records the preplan tier's summary from its Output and whether
// it ran at all (spec.md §6 preplan summary).
func (b *Builder) SetPreplan(enabled bool, out *preplan.Output) {
	b.preplan.Enabled = enabled
	if out == nil {
		return
	}
	b.preplan.Effective = out.Effective
	b.preplan.RowGroupsKept = len(out.ManifestRowGroups)
	b.preplan.RowGroupsTotal = out.Stats.RgTotal
	for _, d := range out.RuleDecisions {
		switch d {
		case preplan.PassMeta:
			b.preplan.RulesPassMeta++
		case preplan.FailMeta:
			b.preplan.RulesFailMeta++
		case preplan.Unknown:
			b.preplan.RulesUnknown++
		}
	}
}

// SetPushdown records the SQL pushdown tier's summary (spec.md §6 pushdown
// summary).
func (b *Builder) SetPushdown(enabled, effective bool, executor string, rulesPushed int, breakdown map[string]int64) {
	b.pushdown = result.PushdownStats{
		Enabled: enabled, Effective: effective, Executor: executor,
		RulesPushed: rulesPushed, BreakdownMS: breakdown,
	}
}

// SetProjection records the residual materializer's column-projection
// summary (spec.md §8 P8).
func (b *Builder) SetProjection(required, loaded, available int, effective bool) {
	b.projection = result.ProjectionStats{
		RequiredCount: required, LoadedCount: loaded,
		AvailableCount: available, Effective: effective,
	}
}

// SetEngineLabel records a human-readable summary of which tiers actually
// ran (spec.md §6 engine_label).
func (b *Builder) SetEngineLabel(label string) {
	b.engineLabel = label
}

// SetIO attaches a materializer/executor's io_debug() output, only called
// when KONTRA_IO_DEBUG=1 (spec.md §6).
func (b *Builder) SetIO(io map[string]any) {
	b.io = io
}

// Build finalizes the accumulated stats into the wire-shaped RunStats.
func (b *Builder) Build() *result.RunStats {
	return &result.RunStats{
		PhasesMS:    b.phasesMS,
		Preplan:     b.preplan,
		Pushdown:    b.pushdown,
		Projection:  b.projection,
		EngineLabel: b.engineLabel,
		IO:          b.io,
	}
}
