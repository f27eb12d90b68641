// Package pipeline runs one creator week through every stage, from trigger
// compounding to the signed certificate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schedforge/internal/allocator"
	"schedforge/internal/catalog"
	"schedforge/internal/config"
	"schedforge/internal/followup"
	"schedforge/internal/logging"
	"schedforge/internal/pricing"
	"schedforge/internal/timing"
	"schedforge/internal/triggers"
	"schedforge/internal/types"
	"schedforge/internal/validator"
)

// Persister stores issued certificates keyed by (creator_id, week_start).
type Persister interface {
	Save(ctx context.Context, cert *types.ValidationCertificate, out *types.ScheduleOutput) error
}

// Request is one creator week to generate.
type Request struct {
	Context   types.CreatorContext
	WeekStart string
	// Seed drives jitter and followup sampling. Zero uses the configured seed.
	Seed int64
}

// Report carries the non-fatal findings of a run.
type Report struct {
	Compounds        triggers.Set           `json:"compounds"`
	Conflicts        []string               `json:"conflicts,omitempty"`
	VolumeMultiplier float64                `json:"volume_multiplier"`
	Unschedulable    []timing.Unschedulable `json:"unschedulable,omitempty"`
	DroppedFollowups []followup.Dropped     `json:"dropped_followups,omitempty"`
	Quotes           map[int]pricing.Quote  `json:"quotes,omitempty"`
}

// Result is a complete run: the schedule, its certificate and the report.
type Result struct {
	Seed        int64                        `json:"seed"`
	Output      *types.ScheduleOutput        `json:"schedule"`
	Certificate *types.ValidationCertificate `json:"certificate"`
	Report      Report                       `json:"report"`
}

// Pipeline wires the stages together. It holds no per-run state; one
// Pipeline serves any number of concurrent runs.
type Pipeline struct {
	catalog     *catalog.Catalog
	allocator   *allocator.Allocator
	timing      *timing.Engine
	pricing     *pricing.Engine
	followup    followup.Config
	validator   *validator.Validator
	persister   Persister
	now         func() time.Time
	seed        int64
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPersister stores every issued certificate through p.
func WithPersister(p Persister) Option {
	return func(pl *Pipeline) { pl.persister = p }
}

// WithClock replaces the wall clock used for trigger expiry and certificates.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

// WithConcurrency bounds RunBatch parallelism.
func WithConcurrency(n int) Option {
	return func(pl *Pipeline) { pl.concurrency = n }
}

// New builds a Pipeline from configuration.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	cat := catalog.Default()
	p := &Pipeline{
		catalog:     cat,
		allocator:   allocator.New(cat, allocatorConfig(cfg)),
		timing:      timing.New(timingConfig(cfg)),
		pricing:     pricing.New(cat, pricingConfig(cfg)),
		followup:    followupConfig(cfg),
		now:         time.Now,
		seed:        cfg.Seed,
		concurrency: cfg.Batch.MaxConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.validator = validator.New(cat, validatorConfig(cfg), validator.WithClock(p.now))
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Validator exposes the pipeline's validator for re-validating stored
// schedules.
func (p *Pipeline) Validator() *validator.Validator {
	return p.validator
}

func cancelled(ctx context.Context, stage types.Stage) error {
	if err := ctx.Err(); err != nil {
		return &types.StageError{Stage: stage, Code: types.CodeCancelled, Detail: "run cancelled", Err: err}
	}
	return nil
}

// Run executes every stage in order. The run either returns a schedule with
// its certificate or a *types.StageError naming the failing stage.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	cc := req.Context
	seed := req.Seed
	if seed == 0 {
		seed = p.seed
	}
	audit := logging.AuditFor(cc.CreatorID, req.WeekStart)
	log := logging.Get(logging.CategoryPipeline).With("creator_id", cc.CreatorID, "week_start", req.WeekStart)
	started := time.Now()
	audit.RunStart(seed)
	defer func() {
		if err != nil {
			stage := ""
			var se *types.StageError
			if errors.As(err, &se) {
				stage = string(se.Stage)
			}
			audit.RunError(stage, err)
		}
	}()

	now := p.now()
	if err := types.ValidateContext(cc, now); err != nil {
		return nil, err
	}
	weekStart, err := types.ParseWeekStart(req.WeekStart)
	if err != nil {
		return nil, err
	}
	rng := types.NewRandom(seed)

	compounds := triggers.CompoundAll(triggers.Active(cc.Triggers, now))
	report := Report{Compounds: compounds, Conflicts: compounds.Conflicts()}

	if err := cancelled(ctx, types.StageAllocator); err != nil {
		return nil, err
	}
	plan, err := p.allocator.Allocate(cc, weekStart, compounds)
	if err != nil {
		return nil, err
	}
	report.VolumeMultiplier = plan.VolumeMultiplier
	log.Debug("allocated %s", plan)

	if err := cancelled(ctx, types.StageTiming); err != nil {
		return nil, err
	}
	scheduled := p.timing.Schedule(plan, rng)
	report.Unschedulable = scheduled.Unschedulable
	for _, u := range scheduled.Unschedulable {
		audit.Unschedulable(u.SendTypeKey, u.Date, u.Reason)
	}
	items := p.assemble(scheduled.Placements)

	if err := cancelled(ctx, types.StagePricing); err != nil {
		return nil, err
	}
	quotes, err := p.pricing.Apply(items, cc.Pricing, compounds)
	if err != nil {
		return nil, err
	}
	report.Quotes = quotes

	if err := cancelled(ctx, types.StageFollowup); err != nil {
		return nil, err
	}
	fr, err := followup.Generate(items, p.followup, rng)
	if err != nil {
		return nil, err
	}
	report.DroppedFollowups = fr.Dropped
	for _, d := range fr.Dropped {
		audit.FollowupDropped(d.ParentIndex, string(d.Reason))
	}

	out := &types.ScheduleOutput{
		CreatorID: cc.CreatorID,
		WeekStart: weekStart.Format(types.DateLayout),
		Items:     items,
		Followups: fr.Followups,
	}
	if out.Followups == nil {
		out.Followups = []types.Followup{}
	}

	if err := cancelled(ctx, types.StageValidator); err != nil {
		return nil, err
	}
	cert, err := p.validator.Validate(out, cc)
	if err != nil {
		return nil, err
	}

	if p.persister != nil {
		if err := p.persister.Save(ctx, cert, out); err != nil {
			return nil, &types.StageError{Stage: types.StagePersist, Code: types.CodeOf(err), Detail: "save certificate", Err: err}
		}
	}

	audit.RunComplete(len(out.Items), len(out.Followups), time.Since(started))
	log.Info("week %s: %d items, %d followups, %s %.2f", out.WeekStart, len(out.Items), len(out.Followups), cert.Status, cert.QualityScore)
	return &Result{Seed: seed, Output: out, Certificate: cert, Report: report}, nil
}

// assemble turns placements into wire items.
func (p *Pipeline) assemble(placements []timing.Placement) []types.ScheduleItem {
	items := make([]types.ScheduleItem, 0, len(placements))
	for _, pl := range placements {
		st := pl.Slot.SendType
		date, clock := types.FormatSlot(pl.At)
		flyer := 0
		if p.catalog.FlyerRequired(st.Key) {
			flyer = 1
		}
		items = append(items, types.ScheduleItem{
			SendTypeKey:   st.Key,
			Category:      st.Category,
			ContentType:   pl.Slot.ContentType,
			ScheduledDate: date,
			ScheduledTime: clock,
			FlyerRequired: flyer,
			ChannelKey:    st.Channel,
		})
	}
	return items
}

// String identifies the request in logs.
func (r Request) String() string {
	return fmt.Sprintf("%s/%s", r.Context.CreatorID, r.WeekStart)
}
