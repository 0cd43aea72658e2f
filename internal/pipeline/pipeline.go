// Package pipeline is the staged pipeline executor (spec §4.3, component
// C7): runs an ordered list of typed stages over a mutable collection of
// extensions, owns a worker pool shared by Transform stages, and collects
// per-stage statistics. The worker pool is built on
// golang.org/x/sync/errgroup, the fan-out primitive the majority of the
// retrieved pack's manifests depend on, rather than a hand-rolled
// channel/WaitGroup pool — the idiomatic-Go analogue of
// original_source/include/plugify/core/thread_pool.hpp's ThreadPool.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sunholo/extrt/internal/extension"
)

// Kind discriminates how the executor invokes a Stage.
type Kind int

const (
	KindTransform Kind = iota
	KindBarrier
	KindSequential
)

// Ctx is the mutable shared state stages read and write across a single
// pipeline run (load order, dependency graphs, failure tracker, etc. —
// concrete producers live in package stages).
type Ctx struct {
	context.Context
	Shared map[string]any
}

// Get retrieves a shared value, for stages downstream of the one that
// produced it (e.g. ResolutionStage publishing load_order for
// LoadingStage).
func (c *Ctx) Get(key string) (any, bool) {
	v, ok := c.Shared[key]
	return v, ok
}

// Set publishes a shared value.
func (c *Ctx) Set(key string, value any) { c.Shared[key] = value }

// Stage is implemented by every pipeline stage. Kind determines which of
// ProcessItem/ProcessAll the executor calls and how.
type Stage interface {
	Name() string
	Kind() Kind
	// ShouldProcess filters items for Transform/Sequential stages;
	// default true is provided by stages that embed AlwaysProcess.
	ShouldProcess(e *extension.Extension) bool
	// Required stages halt the pipeline on any failure.
	Required() bool
}

// TransformStage processes eligible items in parallel.
type TransformStage interface {
	Stage
	ProcessItem(e *extension.Extension, ctx *Ctx) error
}

// BarrierStage receives ownership of the whole collection and returns a
// possibly reordered/filtered one.
type BarrierStage interface {
	Stage
	ProcessAll(items []*extension.Extension, ctx *Ctx) ([]*extension.Extension, error)
}

// SequentialStage processes items in container order on the calling
// goroutine; ContinueOnError controls whether one item's failure stops the
// stage.
type SequentialStage interface {
	Stage
	ProcessItem(e *extension.Extension, pos, total int, ctx *Ctx) error
	ContinueOnError() bool
}

// AlwaysProcess is embeddable by stages with no filtering.
type AlwaysProcess struct{}

func (AlwaysProcess) ShouldProcess(*extension.Extension) bool { return true }

// StageStatistics is the per-stage report entry (spec §4.3).
type StageStatistics struct {
	Name      string
	ItemsIn   int
	ItemsOut  int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Errors    []ItemError
}

// ItemError names which item failed and why.
type ItemError struct {
	ItemName string
	Message  string
}

// Report is the executor's full output across every stage that ran.
type Report struct {
	Stages  []StageStatistics
	Stopped bool   // true if a required stage's failure halted the pipeline
	StoppedAt string
}

// Executor runs a fixed ordered list of stages. Threads is the shared
// worker-pool size; 0 selects runtime.NumCPU().
type Executor struct {
	Stages  []Stage
	Threads int
}

// NewExecutor builds an Executor with the given stages.
func NewExecutor(threads int, stages ...Stage) *Executor {
	return &Executor{Stages: stages, Threads: threads}
}

// Run executes every stage in order against items, returning the final
// (possibly reordered) collection and a Report.
func (ex *Executor) Run(ctx context.Context, items []*extension.Extension) ([]*extension.Extension, Report) {
	pctx := &Ctx{Context: ctx, Shared: make(map[string]any)}
	var report Report

	for _, stage := range ex.Stages {
		start := time.Now()
		stats := StageStatistics{Name: stage.Name(), ItemsIn: len(items)}

		var err error
		switch s := stage.(type) {
		case TransformStage:
			items, stats, err = ex.runTransform(s, items, pctx, stats)
		case BarrierStage:
			items, stats, err = ex.runBarrier(s, items, pctx, stats)
		case SequentialStage:
			items, stats, err = ex.runSequential(s, items, pctx, stats)
		default:
			err = fmt.Errorf("pipeline: stage %s implements no recognized kind", stage.Name())
		}

		stats.Elapsed = time.Since(start)
		stats.ItemsOut = len(items)
		report.Stages = append(report.Stages, stats)

		if err != nil && stage.Required() {
			report.Stopped = true
			report.StoppedAt = stage.Name()
			break
		}
	}
	return items, report
}

func (ex *Executor) workerCount() int {
	if ex.Threads > 0 {
		return ex.Threads
	}
	return runtime.NumCPU()
}

func (ex *Executor) runTransform(s TransformStage, items []*extension.Extension, ctx *Ctx, stats StageStatistics) ([]*extension.Extension, StageStatistics, error) {
	g, _ := errgroup.WithContext(ctx.Context)
	g.SetLimit(ex.workerCount())

	type result struct {
		name string
		err  error
	}
	results := make([]result, len(items))

	for i, item := range items {
		i, item := i, item
		if !s.ShouldProcess(item) {
			continue
		}
		g.Go(func() error {
			err := s.ProcessItem(item, ctx)
			results[i] = result{name: item.Manifest.Name, err: err}
			return nil // errors are per-item; the stage joins regardless (spec §4.3)
		})
	}
	_ = g.Wait()

	var anyErr error
	for _, r := range results {
		if r.err == nil {
			continue
		}
		stats.Failed++
		stats.Errors = append(stats.Errors, ItemError{ItemName: r.name, Message: r.err.Error()})
		if anyErr == nil {
			anyErr = r.err
		}
	}
	stats.Succeeded = stats.ItemsIn - stats.Failed
	return items, stats, anyErr
}

func (ex *Executor) runBarrier(s BarrierStage, items []*extension.Extension, ctx *Ctx, stats StageStatistics) ([]*extension.Extension, StageStatistics, error) {
	out, err := s.ProcessAll(items, ctx)
	if err != nil {
		stats.Failed = stats.ItemsIn
		stats.Errors = append(stats.Errors, ItemError{ItemName: "*", Message: err.Error()})
		return out, stats, err
	}
	stats.Succeeded = len(out)
	return out, stats, nil
}

func (ex *Executor) runSequential(s SequentialStage, items []*extension.Extension, ctx *Ctx, stats StageStatistics) ([]*extension.Extension, StageStatistics, error) {
	total := len(items)
	var firstErr error
	for pos, item := range items {
		if !s.ShouldProcess(item) {
			continue
		}
		if err := s.ProcessItem(item, pos, total, ctx); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, ItemError{ItemName: item.Manifest.Name, Message: err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			if !s.ContinueOnError() {
				break
			}
			continue
		}
		stats.Succeeded++
	}
	return items, stats, firstErr
}
