package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// FetcherFactory builds the fetcher of one module. It returns a
// *domain.ConfigError when the spec cannot be served; that module is
// skipped and the others still start. Fetchers that implement io.Closer
// are closed when their module stops.
type FetcherFactory func(spec domain.ModuleSpec) (ports.Fetcher, error)

// OrchestratorConfig contains the dependencies of an Orchestrator.
type OrchestratorConfig struct {
	Factory   FetcherFactory
	Logger    log.Logger
	Publisher ports.Publisher
	Events    EventEmitter

	// Hub receives every module update. Sharing one hub across
	// orchestrator generations keeps subscribers attached over a reload.
	Hub *Hub

	Now func() time.Time
}

// Orchestrator owns one Supervisor per configured module and fans their
// updates out to subscribers.
type Orchestrator struct {
	factory   FetcherFactory
	logger    log.Logger
	publisher ports.Publisher
	hub       *Hub
	now       func() time.Time
	lifecycle *Lifecycle

	// runMu serializes Start and Stop.
	runMu sync.Mutex

	mu          sync.RWMutex
	supervisors []*Supervisor
	skipped     []error
}

// NewOrchestrator creates an orchestrator in StateStopped.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Orchestrator{
		factory:   cfg.Factory,
		logger:    logger,
		publisher: cfg.Publisher,
		hub:       hub,
		now:       cfg.Now,
		lifecycle: NewLifecycle(logger, cfg.Events),
	}
}

// Start creates and starts one supervisor per spec, in declaration order.
// Specs the factory rejects are logged and skipped. Start fails with
// domain.ErrNoModules when no module could be started.
func (o *Orchestrator) Start(ctx context.Context, specs []domain.ModuleSpec) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if !o.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := o.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	supervisors := make([]*Supervisor, 0, len(specs))
	var skipped []error
	for _, spec := range specs {
		fetcher, err := o.buildFetcher(spec)
		if err != nil {
			o.logger.Error("module skipped",
				log.String("module", spec.ID),
				log.String("kind", string(spec.Kind)),
				log.Err(err),
			)
			skipped = append(skipped, err)
			continue
		}
		supervisors = append(supervisors, NewSupervisor(SupervisorConfig{
			Spec:      spec,
			Fetcher:   fetcher,
			Logger:    o.logger,
			Publisher: o.publisher,
			Notify:    o.hub.Publish,
			Now:       o.now,
		}))
	}

	o.mu.Lock()
	o.supervisors = supervisors
	o.skipped = skipped
	o.mu.Unlock()

	if len(supervisors) == 0 {
		_ = o.lifecycle.TransitionTo(StateCrashed, "no modules")
		return fmt.Errorf("start: %w", domain.ErrNoModules)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.lifecycle.SetCancel(cancel)

	for _, sup := range supervisors {
		sup.Start(runCtx)

		o.lifecycle.AddWorker()
		go func(sup *Supervisor) {
			defer o.lifecycle.WorkerDone()
			<-runCtx.Done()
			sup.Stop()
			if c, ok := sup.fetcher.(io.Closer); ok {
				if err := c.Close(); err != nil {
					o.logger.Warn("close fetcher", log.String("module", sup.ID()), log.Err(err))
				}
			}
		}(sup)
	}

	o.logger.Info("modules started",
		log.Int("started", len(supervisors)),
		log.Int("skipped", len(skipped)),
	)
	return o.lifecycle.TransitionTo(StateRunning, "modules started")
}

func (o *Orchestrator) buildFetcher(spec domain.ModuleSpec) (ports.Fetcher, error) {
	if o.factory == nil {
		return nil, &domain.ConfigError{
			Module:  spec.Name,
			Index:   spec.Index,
			Kind:    domain.ConfigInvalidValue,
			Field:   "module",
			Message: "no fetcher factory",
		}
	}
	return o.factory(spec)
}

// Stop cancels every timer and in-flight fetch. In-flight fetches are not
// awaited; once Stop returns no buffer changes any more.
func (o *Orchestrator) Stop() error {
	o.runMu.Lock()
	if !o.lifecycle.CanStop() {
		o.runMu.Unlock()
		return domain.ErrNotRunning
	}
	if err := o.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		o.runMu.Unlock()
		return err
	}
	o.lifecycle.Cancel()
	o.runMu.Unlock()

	err := o.lifecycle.WaitWithTimeout(ShutdownTimeout)

	if err != nil {
		_ = o.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
	} else {
		_ = o.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	}
	return err
}

// State returns the orchestrator lifecycle state.
func (o *Orchestrator) State() State {
	return o.lifecycle.State()
}

// Subscribe returns a channel of module updates and a function that
// cancels the subscription. A subscriber that falls behind loses its
// oldest pending update.
func (o *Orchestrator) Subscribe(buffer int) (<-chan domain.Update, func()) {
	return o.hub.Subscribe(buffer)
}

// Supervisor returns the supervisor of the given module instance.
func (o *Orchestrator) Supervisor(id string) (*Supervisor, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, sup := range o.supervisors {
		if sup.ID() == id {
			return sup, true
		}
	}
	return nil, false
}

// Skipped returns the errors of modules that could not be started.
func (o *Orchestrator) Skipped() []error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]error(nil), o.skipped...)
}

// Refresh triggers an immediate fetch on every module that is not already
// fetching. It returns the number of fetches started. The fetches run under
// the modules' own contexts and are canceled by Stop, not by ctx.
func (o *Orchestrator) Refresh(ctx context.Context) int {
	o.mu.RLock()
	sups := append([]*Supervisor(nil), o.supervisors...)
	o.mu.RUnlock()

	n := 0
	for _, sup := range sups {
		if sup.Trigger(ctx) {
			n++
		}
	}
	return n
}

// Snapshots returns the current snapshot of every module in layout order:
// by region, then by declaration order within a region.
func (o *Orchestrator) Snapshots() []domain.Snapshot {
	o.mu.RLock()
	sups := append([]*Supervisor(nil), o.supervisors...)
	o.mu.RUnlock()

	snaps := make([]domain.Snapshot, 0, len(sups))
	for _, sup := range sups {
		snaps = append(snaps, sup.Snapshot())
	}
	SortSnapshots(snaps)
	return snaps
}

// Layout groups the current snapshots by region. Regions without modules
// are omitted.
func (o *Orchestrator) Layout() []domain.Region {
	return GroupByRegion(o.Snapshots())
}

// SortSnapshots orders snapshots by region rank, then declaration index.
func SortSnapshots(snaps []domain.Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		ri, rj := snaps[i].Position.Rank(), snaps[j].Position.Rank()
		if ri != rj {
			return ri < rj
		}
		return snaps[i].Index < snaps[j].Index
	})
}

// GroupByRegion splits layout-ordered snapshots into regions.
func GroupByRegion(snaps []domain.Snapshot) []domain.Region {
	var regions []domain.Region
	for _, snap := range snaps {
		if n := len(regions); n > 0 && regions[n-1].Position == snap.Position {
			regions[n-1].Modules = append(regions[n-1].Modules, snap)
			continue
		}
		regions = append(regions, domain.Region{
			Position: snap.Position,
			Modules:  []domain.Snapshot{snap},
		})
	}
	return regions
}
