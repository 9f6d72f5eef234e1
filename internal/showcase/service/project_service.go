package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivory-showcase/showcase-backend/internal/ledger"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/aggregate"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/cascade"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"go.uber.org/zap"
)

const DefaultFreshness = 5 * time.Minute

// Runner executes the fetch cascade
type Runner interface {
	Run(ctx context.Context, obs cascade.Observer) (*cascade.Result, error)
	Invalidate(ctx context.Context) error
}

// Normalizer turns object details into project records
type Normalizer interface {
	NormalizeAll(details []ledger.ObjectDetail) []domain.ProjectRecord
}

// Loading reports which cascade stages are in flight
type Loading struct {
	Owned   bool
	Fields  bool
	Details bool
}

// Any reports whether any stage is in flight
func (l Loading) Any() bool {
	return l.Owned || l.Fields || l.Details
}

// State is a point-in-time view of the project collection.
// Err is only ever an owned-objects failure.
type State struct {
	Loading   Loading
	Err       error
	Projects  []domain.ProjectRecord
	FetchedAt time.Time
}

// ProjectService holds the normalized project collection and keeps it fresh.
type ProjectService struct {
	runner     Runner
	normalizer Normalizer
	logger     *zap.Logger
	freshness  time.Duration
	now        func() time.Time

	mu          sync.RWMutex
	projects    []domain.ProjectRecord
	err         error
	fetchedAt   time.Time
	attemptedAt time.Time
	applied     uint64
	inflight    map[domain.Stage]int

	generation atomic.Uint64
	refreshing atomic.Bool
	wg         sync.WaitGroup
}

type Option func(*ProjectService)

// WithFreshness sets how long a snapshot is served before a background
// refresh is started.
func WithFreshness(d time.Duration) Option {
	return func(s *ProjectService) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ProjectService) {
		s.now = now
	}
}

// NewProjectService creates a new ProjectService
func NewProjectService(runner Runner, normalizer Normalizer, logger *zap.Logger, opts ...Option) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ProjectService{
		runner:     runner,
		normalizer: normalizer,
		logger:     logger.Named("projects"),
		freshness:  DefaultFreshness,
		now:        time.Now,
		projects:   []domain.ProjectRecord{},
		inflight:   make(map[domain.Stage]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state. When nothing was attempted yet, or the
// last attempt is older than the freshness window, a background refresh is
// started first. At most one background refresh runs at a time.
func (s *ProjectService) Snapshot(ctx context.Context) State {
	if s.stale() && s.refreshing.CompareAndSwap(false, true) {
		obs := s.prime()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.refreshing.Store(false)
			_ = s.load(context.WithoutCancel(ctx), obs)
		}()
	}
	return s.state()
}

// Load runs the cascade and swaps in its result.
func (s *ProjectService) Load(ctx context.Context) error {
	return s.load(ctx, &runObserver{s: s})
}

// Refetch drops the stage cache and reruns the cascade from the owned
// objects. The returned channel receives the run's error, or nil, once it
// completes. In-flight runs are not cancelled; whichever run started last
// wins.
func (s *ProjectService) Refetch(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	obs := s.prime()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg := context.WithoutCancel(ctx)
		if err := s.runner.Invalidate(bg); err != nil {
			s.logger.Warn("stage cache invalidation failed", zap.Error(err))
		}
		done <- s.load(bg, obs)
	}()
	return done
}

// List applies q to the current snapshot.
func (s *ProjectService) List(ctx context.Context, q aggregate.Query) (aggregate.Page, State) {
	st := s.Snapshot(ctx)
	return aggregate.Apply(st.Projects, q), st
}

// Wait blocks until background runs have finished.
func (s *ProjectService) Wait() {
	s.wg.Wait()
}

func (s *ProjectService) load(ctx context.Context, obs *runObserver) error {
	defer obs.release()

	gen := s.generation.Add(1)
	s.mu.Lock()
	s.attemptedAt = s.now()
	s.mu.Unlock()

	res, err := s.runner.Run(ctx, obs)

	var projects []domain.ProjectRecord
	if err == nil {
		projects = s.normalizer.NormalizeAll(res.Details)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.applied {
		s.logger.Debug("discarding superseded run", zap.Uint64("generation", gen), zap.Uint64("applied", s.applied))
		return err
	}
	s.applied = gen

	if err != nil {
		s.err = err
		s.logger.Error("load projects failed", zap.Uint64("generation", gen), zap.Error(err))
		return err
	}
	s.err = nil
	s.projects = projects
	s.fetchedAt = s.now()
	s.logger.Info("projects loaded",
		zap.Uint64("generation", gen),
		zap.Int("owned", len(res.Owned)),
		zap.Int("details", len(res.Details)),
		zap.Int("projects", len(projects)),
	)
	return nil
}

func (s *ProjectService) stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attemptedAt.IsZero() || s.now().Sub(s.attemptedAt) >= s.freshness
}

func (s *ProjectService) state() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Loading: Loading{
			Owned:   s.inflight[domain.StageOwned] > 0,
			Fields:  s.inflight[domain.StageFields] > 0,
			Details: s.inflight[domain.StageDetails] > 0,
		},
		Err:       s.err,
		Projects:  s.projects,
		FetchedAt: s.fetchedAt,
	}
}

func (s *ProjectService) adjust(stage domain.Stage, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[stage] += delta
}

// prime marks the owned stage as loading before the run goroutine starts,
// so the caller's own snapshot already shows it.
func (s *ProjectService) prime() *runObserver {
	s.adjust(domain.StageOwned, 1)
	return &runObserver{s: s, primed: true}
}

// runObserver feeds one run's stage events into the in-flight counters.
type runObserver struct {
	s      *ProjectService
	primed bool
}

func (o *runObserver) StageStarted(stage domain.Stage) {
	if stage == domain.StageOwned && o.primed {
		o.primed = false
		return
	}
	o.s.adjust(stage, 1)
}

func (o *runObserver) StageFinished(stage domain.Stage) {
	o.s.adjust(stage, -1)
}

func (o *runObserver) release() {
	if o.primed {
		o.primed = false
		o.s.adjust(domain.StageOwned, -1)
	}
}
