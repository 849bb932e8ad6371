package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"citypulse/internal/logging"
	"citypulse/internal/models"
	"citypulse/internal/sim"
)

var (
	ErrInvalidHour  = errors.New("hour must be between 0 and 23")
	ErrInvalidSteps = errors.New("invalid step count")
)

// Recorder persists each completed hour. Failures are logged and never stop the simulation.
type Recorder interface {
	RecordHour(ctx context.Context, runID string, snap models.HistorySnapshot, actions []models.ActionRecord, escalations []models.Escalation) error
}

type Options struct {
	// Seed for the run. Zero picks a time-based seed.
	Seed            int64
	BusUnitsMax     int
	TrainUnitsMax   int
	ReserveFraction float64
	MaxRunSteps     int
	Speed           int

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
	Recorder  Recorder
}

// Engine owns the orchestrator and serializes every access to the city.
type Engine struct {
	mu     sync.Mutex
	orch   *Orchestrator
	rng    *rand.Rand
	seed   int64
	runID  string
	speed  int
	active bool

	maxRunSteps    int
	recordFailures int

	logger    *slog.Logger
	decisions *logging.DecisionLogger
	recorder  Recorder

	ctx    context.Context
	cancel context.CancelFunc
	ticker *time.Ticker
}

func NewEngine(opts Options) *Engine {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.BusUnitsMax <= 0 {
		opts.BusUnitsMax = models.BusUnitsMax
	}
	if opts.TrainUnitsMax <= 0 {
		opts.TrainUnitsMax = models.TrainUnitsMax
	}
	if opts.ReserveFraction <= 0 || opts.ReserveFraction >= 1 {
		opts.ReserveFraction = models.ReserveFraction
	}
	if opts.MaxRunSteps <= 0 {
		opts.MaxRunSteps = 168
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		rng:         rand.New(rand.NewSource(seed)),
		seed:        seed,
		runID:       uuid.NewString(),
		speed:       clampSpeed(opts.Speed),
		maxRunSteps: opts.MaxRunSteps,
		logger:      opts.Logger,
		decisions:   opts.Decisions,
		recorder:    opts.Recorder,
	}
	e.orch = NewOrchestrator(e.rng, opts.BusUnitsMax, opts.TrainUnitsMax, opts.ReserveFraction)
	e.logger.Info("simulation ready", "run_id", e.runID, "seed", seed)
	return e
}

func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

func (e *Engine) Seed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seed
}

func (e *Engine) MaxRunSteps() int { return e.maxRunSteps }

// RecordFailures counts hours the recorder failed to persist.
func (e *Engine) RecordFailures() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordFailures
}

func (e *Engine) State() Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decorateLocked(e.orch.State())
}

// Step advances the simulation one hour.
func (e *Engine) Step(ctx context.Context) Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepLocked(ctx)
}

// Run advances n hours and returns the final payload.
func (e *Engine) Run(ctx context.Context, n int) (Payload, error) {
	if n < 1 || n > e.maxRunSteps {
		return Payload{}, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidSteps, n, e.maxRunSteps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var p Payload
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return e.decorateLocked(e.orch.State()), err
		}
		p = e.stepLocked(ctx)
	}
	return p, nil
}

// JumpTo steps forward until the clock shows hour. It does nothing when already there.
func (e *Engine) JumpTo(ctx context.Context, hour int) (Payload, error) {
	if hour < 0 || hour > 23 {
		return Payload{}, fmt.Errorf("%w: got %d", ErrInvalidHour, hour)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.orch.City().HourOfDay != hour {
		if err := ctx.Err(); err != nil {
			return e.decorateLocked(e.orch.State()), err
		}
		e.stepLocked(ctx)
	}
	return e.decorateLocked(e.orch.State()), nil
}

// Reset rebuilds the initial city under a new run id, reseeding from the engine seed.
func (e *Engine) Reset() Payload {
	e.PauseSim()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Seed(e.seed)
	e.orch.Reset(e.rng)
	e.runID = uuid.NewString()
	e.logger.Info("simulation reset", "run_id", e.runID, "seed", e.seed)
	return e.decorateLocked(e.orch.State())
}

func (e *Engine) Forecast() sim.Forecast {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orch.Forecast()
}

// History returns up to limit of the most recent hourly snapshots.
func (e *Engine) History(limit int) []models.HistorySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.orch.City().History
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	return tail(h, limit)
}

func (e *Engine) stepLocked(ctx context.Context) Payload {
	escalationsBefore := len(e.orch.City().Escalations)
	p, trace := e.orch.Step()
	c := e.orch.City()

	e.logger.Debug("hour simulated",
		"t", c.T, "hour", c.HourOfDay, "actions", len(trace.Executed),
		"events_triggered", len(trace.Environment.Triggered), "cost", c.CostThisHour)
	for _, ev := range trace.Environment.Triggered {
		e.logger.Info("event started", "event", ev.ID, "hours", ev.RemainingHours)
	}
	e.decisions.Log(map[string]any{
		"run_id": e.runID,
		"t":      trace.T,
		"hour":   trace.Hour,
		"trace":  trace,
	})

	if e.recorder != nil && len(c.History) > 0 {
		snap := c.History[len(c.History)-1]
		var escalations []models.Escalation
		if n := len(c.Escalations) - escalationsBefore; n > 0 {
			escalations = tail(c.Escalations, n)
		}
		if err := e.recorder.RecordHour(ctx, e.runID, snap, trace.Executed, escalations); err != nil {
			e.recordFailures++
			e.logger.Warn("recording hour failed", "t", snap.T, "error", err)
		}
	}
	return e.decorateLocked(p)
}

func (e *Engine) decorateLocked(p Payload) Payload {
	p.RunID = e.runID
	p.Autoplay = AutoplayBlock{Running: e.active, Speed: e.speed}
	return p
}

func clampSpeed(speed int) int {
	if speed < 1 {
		return 1
	}
	if speed > 4 {
		return 4
	}
	return speed
}

// SetSpeed changes the autoplay speed, restarting the ticker when it is running.
func (e *Engine) SetSpeed(speed int) {
	speed = clampSpeed(speed)
	e.mu.Lock()
	e.speed = speed
	running := e.active
	e.mu.Unlock()
	if running {
		e.startSim(speed)
	}
}

// StartSim starts the autoplay loop. A non-positive speed keeps the current one.
func (e *Engine) StartSim(speed int) {
	if speed <= 0 {
		e.mu.Lock()
		speed = e.speed
		e.mu.Unlock()
	}
	e.startSim(clampSpeed(speed))
}

func (e *Engine) startSim(speed int) {
	interval := intervalForSpeed(speed)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
	e.active = true

	if e.cancel != nil {
		e.cancel()
	}
	if e.ticker == nil {
		e.ticker = time.NewTicker(interval)
	} else {
		e.ticker.Reset(interval)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.logger.Info("autoplay started", "speed", speed, "interval", interval)

	go func(ctx context.Context, ticks <-chan time.Time) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				e.mu.Lock()
				if ctx.Err() == nil {
					e.stepLocked(ctx)
				}
				e.mu.Unlock()
			}
		}
	}(e.ctx, e.ticker.C)
}

// PauseSim stops the autoplay loop.
func (e *Engine) PauseSim() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		e.logger.Info("autoplay paused", "t", e.orch.City().T)
	}
	e.active = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func intervalForSpeed(speed int) time.Duration {
	switch speed {
	case 1:
		return 2 * time.Second
	case 2:
		return 1 * time.Second
	case 3:
		return 500 * time.Millisecond
	case 4:
		return 250 * time.Millisecond
	default:
		return 2 * time.Second
	}
}

// RunExport is the JSON document written by ExportRun.
type RunExport struct {
	RunID      string            `json:"run_id"`
	Seed       int64             `json:"seed"`
	ExportedAt time.Time         `json:"exported_at"`
	City       *models.CityState `json:"city"`
}

// ExportRun writes the current city to path atomically.
func (e *Engine) ExportRun(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := RunExport{
		RunID:      e.runID,
		Seed:       e.seed,
		ExportedAt: time.Now().UTC(),
		City:       e.orch.City(),
	}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadRun replaces the current city with one written by ExportRun and continues its run id.
func (e *Engine) LoadRun(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc RunExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode run: %w", err)
	}
	if doc.City == nil || len(doc.City.Districts) == 0 {
		return fmt.Errorf("decode run: %s holds no city", path)
	}
	normalizeCity(doc.City)

	e.PauseSim()
	e.mu.Lock()
	defer e.mu.Unlock()
	if doc.Seed != 0 {
		e.seed = doc.Seed
	}
	// reseed per hour so a restored file always replays the same draws
	e.rng.Seed(e.seed + int64(doc.City.T))
	e.orch.Restore(doc.City, e.rng)
	if doc.RunID != "" {
		e.runID = doc.RunID
	}
	e.logger.Info("run restored", "run_id", e.runID, "t", doc.City.T, "path", path)
	return nil
}

func normalizeCity(c *models.CityState) {
	for i := range c.Districts {
		d := &c.Districts[i]
		if d.EventDemandMult <= 0 {
			d.EventDemandMult = 1
		}
		if d.BaseBusCapacity == 0 {
			d.BaseBusCapacity = d.BusCapacity
		}
		if d.BaseRailCapacity == 0 {
			d.BaseRailCapacity = d.RailCapacity
		}
	}
	for i := range c.Lines {
		if c.Lines[i].ActionsThisHour == nil {
			c.Lines[i].ActionsThisHour = []string{}
		}
	}
	if c.DayIndex == 0 {
		c.DayIndex = 1
	}
	if c.CostHistory == nil {
		c.CostHistory = []float64{}
	}
	if c.ActiveEvents == nil {
		c.ActiveEvents = []models.ActiveEvent{}
	}
	if c.EventLog == nil {
		c.EventLog = []models.EventLogEntry{}
	}
	if c.ActionLog == nil {
		c.ActionLog = []models.ActionRecord{}
	}
	if c.History == nil {
		c.History = []models.HistorySnapshot{}
	}
	if c.Escalations == nil {
		c.Escalations = []models.Escalation{}
	}
}

// Close stops autoplay and flushes the decision log.
func (e *Engine) Close() error {
	e.PauseSim()
	return e.decisions.Close()
}
