package cascade

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/ivory-showcase/showcase-backend/internal/ledger"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

// Ledger is the read side of the full node the cascade depends on.
type Ledger interface {
	ListOwnedByType(ctx context.Context, address, typeTag string) ([]ledger.OwnedObject, error)
	ListDynamicFields(ctx context.Context, parentID string) ([]ledger.DynamicField, error)
	GetObject(ctx context.Context, objectID, parentID string) (*ledger.ObjectDetail, error)
}

// Cache stores stage outputs keyed by the identity of their inputs.
type Cache interface {
	Get(ctx context.Context, stage domain.Stage, key string, dst any) (bool, error)
	Put(ctx context.Context, stage domain.Stage, key string, value any) error
	InvalidateAll(ctx context.Context) error
}

// Observer is told when each stage starts and finishes.
type Observer interface {
	StageStarted(stage domain.Stage)
	StageFinished(stage domain.Stage)
}

type nopObserver struct{}

func (nopObserver) StageStarted(domain.Stage)  {}
func (nopObserver) StageFinished(domain.Stage) {}

// Options configures a Pipeline
type Options struct {
	Address     string
	TypeTag     string
	Concurrency int
	Cache       Cache // optional
}

// Result holds every stage's output. Ran lists the stages that executed.
type Result struct {
	Owned   []ledger.OwnedObject
	Fields  [][]ledger.DynamicField
	Details []ledger.ObjectDetail
	Ran     []domain.Stage
}

// Pipeline runs the owned-objects, dynamic-fields and object-details stages
// in order. Each stage drains completely before the next one starts.
type Pipeline struct {
	ledger      Ledger
	cache       Cache
	address     string
	typeTag     string
	concurrency int
	logger      *zap.Logger

	// epoch counts invalidations. A run only caches its stage outputs while
	// the epoch it started in is still current; invalidating holds
	// storeMu exclusively so no write can land behind the purge.
	epoch   atomic.Uint64
	storeMu sync.RWMutex
}

// New creates a new Pipeline
func New(l Ledger, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		ledger:      l,
		cache:       opts.Cache,
		address:     opts.Address,
		typeTag:     opts.TypeTag,
		concurrency: opts.Concurrency,
		logger:      logger.Named("cascade"),
	}
}

// Run executes the cascade. Only an owned-objects failure is returned;
// later stages drop the items they fail on.
func (p *Pipeline) Run(ctx context.Context, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	res := &Result{
		Owned:   []ledger.OwnedObject{},
		Fields:  [][]ledger.DynamicField{},
		Details: []ledger.ObjectDetail{},
	}

	epoch := p.epoch.Load()

	obs.StageStarted(domain.StageOwned)
	owned, err := p.fetchOwned(ctx, epoch)
	obs.StageFinished(domain.StageOwned)
	res.Ran = append(res.Ran, domain.StageOwned)
	if err != nil {
		return res, err
	}
	res.Owned = owned

	if !shouldFetchFields(owned) {
		return res, nil
	}
	obs.StageStarted(domain.StageFields)
	res.Fields = p.fetchFields(ctx, epoch, owned)
	obs.StageFinished(domain.StageFields)
	res.Ran = append(res.Ran, domain.StageFields)

	if !shouldFetchDetails(res.Fields) {
		return res, nil
	}
	obs.StageStarted(domain.StageDetails)
	res.Details = p.fetchDetails(ctx, epoch, res.Fields)
	obs.StageFinished(domain.StageDetails)
	res.Ran = append(res.Ran, domain.StageDetails)

	return res, nil
}

// Invalidate drops the cached output of all three stages, so the next run
// starts over from the owned objects. Runs already in flight keep going but
// no longer write to the cache.
func (p *Pipeline) Invalidate(ctx context.Context) error {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	p.epoch.Add(1)
	if p.cache == nil {
		return nil
	}
	return p.cache.InvalidateAll(ctx)
}

func shouldFetchFields(owned []ledger.OwnedObject) bool {
	return len(usableIDs(owned)) > 0
}

func shouldFetchDetails(groups [][]ledger.DynamicField) bool {
	for _, g := range groups {
		if len(g) > 0 {
			return true
		}
	}
	return false
}

// FetchOwned lists every object of the configured type owned by the
// configured address.
func (p *Pipeline) FetchOwned(ctx context.Context) ([]ledger.OwnedObject, error) {
	return p.fetchOwned(ctx, p.epoch.Load())
}

func (p *Pipeline) fetchOwned(ctx context.Context, epoch uint64) ([]ledger.OwnedObject, error) {
	key := p.address
	var owned []ledger.OwnedObject
	if p.lookup(ctx, domain.StageOwned, key, &owned) {
		return owned, nil
	}

	owned, err := p.ledger.ListOwnedByType(ctx, p.address, p.typeTag)
	if err != nil {
		return nil, fmt.Errorf("fetch owned objects: %w", err)
	}
	p.store(ctx, epoch, domain.StageOwned, key, owned)
	return owned, nil
}

// FetchFields lists the dynamic fields of each owned object, one group per
// object in owned order. Objects whose listing fails are left out.
func (p *Pipeline) FetchFields(ctx context.Context, owned []ledger.OwnedObject) [][]ledger.DynamicField {
	return p.fetchFields(ctx, p.epoch.Load(), owned)
}

func (p *Pipeline) fetchFields(ctx context.Context, epoch uint64, owned []ledger.OwnedObject) [][]ledger.DynamicField {
	parents := usableIDs(owned)
	key := setKey(parents)
	var cached [][]ledger.DynamicField
	if p.lookup(ctx, domain.StageFields, key, &cached) {
		return cached
	}

	groups := make([][]ledger.DynamicField, len(parents))
	errs := make([]error, len(parents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, parent := range parents {
		g.Go(func() error {
			fields, err := p.ledger.ListDynamicFields(gctx, parent)
			if err != nil {
				errs[i] = fmt.Errorf("dynamic fields of %s: %w", parent, err)
				return nil
			}
			groups[i] = fields
			return nil
		})
	}
	_ = g.Wait()

	out := make([][]ledger.DynamicField, 0, len(groups))
	for i, grp := range groups {
		if errs[i] == nil {
			out = append(out, grp)
		}
	}

	if p.report(domain.StageFields, errs) {
		p.store(ctx, epoch, domain.StageFields, key, out)
	}
	return out
}

// FetchDetails fetches the object behind every field of every group,
// carrying each field's parent id. Absent objects and failed fetches are
// left out.
func (p *Pipeline) FetchDetails(ctx context.Context, groups [][]ledger.DynamicField) []ledger.ObjectDetail {
	return p.fetchDetails(ctx, p.epoch.Load(), groups)
}

func (p *Pipeline) fetchDetails(ctx context.Context, epoch uint64, groups [][]ledger.DynamicField) []ledger.ObjectDetail {
	var fields []ledger.DynamicField
	for _, grp := range groups {
		fields = append(fields, grp...)
	}

	fieldIDs := make([]string, len(fields))
	for i, f := range fields {
		fieldIDs[i] = f.ObjectID
	}
	key := setKey(fieldIDs)
	var cached []ledger.ObjectDetail
	if p.lookup(ctx, domain.StageDetails, key, &cached) {
		return cached
	}

	details := make([]*ledger.ObjectDetail, len(fields))
	errs := make([]error, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, field := range fields {
		g.Go(func() error {
			detail, err := p.ledger.GetObject(gctx, field.ObjectID, field.ParentID)
			if err != nil {
				errs[i] = fmt.Errorf("object %s: %w", field.ObjectID, err)
				return nil
			}
			details[i] = detail
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ledger.ObjectDetail, 0, len(details))
	for _, d := range details {
		if d != nil {
			out = append(out, *d)
		}
	}

	if p.report(domain.StageDetails, errs) {
		p.store(ctx, epoch, domain.StageDetails, key, out)
	}
	return out
}

// report logs the item failures of a stage and reports whether there were
// none, in which case the stage output is complete.
func (p *Pipeline) report(stage domain.Stage, errs []error) bool {
	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr == nil {
		return true
	}
	p.logger.Warn("stage dropped items",
		zap.String("stage", string(stage)),
		zap.Int("failed", merr.Len()),
		zap.Error(merr),
	)
	return false
}

func (p *Pipeline) lookup(ctx context.Context, stage domain.Stage, key string, dst any) bool {
	if p.cache == nil {
		return false
	}
	hit, err := p.cache.Get(ctx, stage, key, dst)
	if err != nil {
		p.logger.Warn("stage cache read failed", zap.String("stage", string(stage)), zap.Error(err))
		return false
	}
	return hit
}

func (p *Pipeline) store(ctx context.Context, epoch uint64, stage domain.Stage, key string, value any) {
	if p.cache == nil {
		return
	}
	p.storeMu.RLock()
	defer p.storeMu.RUnlock()
	if p.epoch.Load() != epoch {
		p.logger.Debug("skipping cache write of invalidated run", zap.String("stage", string(stage)))
		return
	}
	if err := p.cache.Put(ctx, stage, key, value); err != nil {
		p.logger.Warn("stage cache write failed", zap.String("stage", string(stage)), zap.Error(err))
	}
}

func usableIDs(owned []ledger.OwnedObject) []string {
	ids := make([]string, 0, len(owned))
	for _, o := range owned {
		if id := o.ID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// setKey identifies a set of ids independent of their order.
func setKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(sorted, ",")), 16)
}
