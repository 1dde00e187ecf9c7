package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/model"
)

// Default delays for the simulated deployment pipeline: a model spends
// 5 seconds "training", then 3 more "deploying", then comes up "active".
const (
	DefaultTrainingDelay  = 5 * time.Second
	DefaultDeployingDelay = 3 * time.Second
)

// endpointPrefix is where "deployed" models pretend to live.
const endpointPrefix = "https://runtime.sagemaker.us-east-1.amazonaws.com/endpoints/"

// LifecycleDelays configures the two automatic pipeline transitions.
// Tests inject millisecond values; production uses the defaults.
type LifecycleDelays struct {
	Training  time.Duration // training → deploying
	Deploying time.Duration // deploying → active
}

// DefaultDelays returns the production pipeline timing.
func DefaultDelays() LifecycleDelays {
	return LifecycleDelays{
		Training:  DefaultTrainingDelay,
		Deploying: DefaultDeployingDelay,
	}
}

// ModelRegistry is the in-memory collection of simulated model
// deployments and the state machine that drives them.
//
// LIFECYCLE SCHEDULING:
// Each Deploy schedules a timer chain: after the training delay the model
// advances to "deploying", after the deploying delay to "active". The old
// dashboard fired bare setTimeout callbacks with no guards, so a timer
// landing after the model was deleted would resurrect a stale status.
// Here every timed transition re-checks, under the lock, that the model
// still exists and is still in the state the timer was scheduled from;
// Delete/Fail also cancel the pending timer outright. A stale timer that
// slips past cancellation (it may already be blocked on the mutex) finds
// the guard and does nothing.
//
// At most one timer is pending per model, keyed by model ID in r.timers.
//
// All exported methods are safe for concurrent use. List and Get return
// copies — callers never hold pointers into the registry's own state.
type ModelRegistry struct {
	mu     sync.Mutex
	models map[string]*model.Model
	timers map[string]*time.Timer
	delays LifecycleDelays
	logger *slog.Logger
	closed bool
}

// NewModelRegistry creates an empty registry with the given pipeline
// delays.
func NewModelRegistry(delays LifecycleDelays, logger *slog.Logger) *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*model.Model),
		timers: make(map[string]*time.Timer),
		delays: delays,
		logger: logger,
	}
}

// Preload inserts existing models without running them through the
// pipeline. Used at startup to seed the demo inventory. Models preloaded
// in an in-flight state are scheduled onto the pipeline as if freshly
// deployed.
func (r *ModelRegistry) Preload(models ...model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range models {
		copied := m
		r.models[m.ID] = &copied
		switch m.Status {
		case model.StatusTraining:
			r.scheduleLocked(m.ID, model.StatusTraining, model.StatusDeploying, r.delays.Training)
		case model.StatusDeploying:
			r.scheduleLocked(m.ID, model.StatusDeploying, model.StatusActive, r.delays.Deploying)
		}
	}
}

// Deploy creates a new model in "training" and starts the simulated
// pipeline. It returns immediately — the transitions happen on timers.
func (r *ModelRegistry) Deploy(name string, typ model.ModelType) (model.Model, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Model{}, apperror.ValidationFailed("name", "model name is required")
	}
	if !typ.IsValid() {
		return model.Model{}, apperror.ValidationFailed("type",
			fmt.Sprintf("model type must be one of %q, %q, %q",
				model.TypeLinearRegression, model.TypeXGBoost, model.TypeLLM))
	}

	m := &model.Model{
		ID:        xid.New().String(),
		Name:      name,
		Type:      typ,
		Status:    model.StatusTraining,
		Cost:      model.NewCostBreakdown(0, 0, 0),
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.Model{}, fmt.Errorf("registry: deploy after close")
	}

	r.models[m.ID] = m
	r.scheduleLocked(m.ID, model.StatusTraining, model.StatusDeploying, r.delays.Training)

	r.logger.Info("model deployment started",
		slog.String("id", m.ID),
		slog.String("name", m.Name),
		slog.String("type", string(m.Type)),
	)

	return *m, nil
}

// Get returns a copy of the model with the given ID.
func (r *ModelRegistry) Get(id string) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return model.Model{}, apperror.NotFound("model", id)
	}
	return *m, nil
}

// List returns copies of all models ordered by creation time.
func (r *ModelRegistry) List() []model.Model {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stop halts an active model. Only "active" models can be stopped —
// stopping an in-flight, failed, or already-stopped model is rejected
// with a conflict error rather than silently ignored.
func (r *ModelRegistry) Stop(id string) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return model.Model{}, apperror.NotFound("model", id)
	}
	if m.Status != model.StatusActive {
		return model.Model{}, apperror.Conflict(
			fmt.Sprintf("model is %s; only active models can be stopped", m.Status))
	}

	m.Status = model.StatusStopped
	r.logger.Info("model stopped", slog.String("id", id))
	return *m, nil
}

// Restart puts a stopped model back through the deployment pipeline.
// The endpoint is cleared until the model reaches "active" again; the
// accrued cost is kept.
func (r *ModelRegistry) Restart(id string) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return model.Model{}, apperror.NotFound("model", id)
	}
	if m.Status != model.StatusStopped {
		return model.Model{}, apperror.Conflict(
			fmt.Sprintf("model is %s; only stopped models can be restarted", m.Status))
	}

	m.Status = model.StatusTraining
	m.Endpoint = ""
	m.FailureReason = ""
	r.scheduleLocked(id, model.StatusTraining, model.StatusDeploying, r.delays.Training)

	r.logger.Info("model restarted", slog.String("id", id))
	return *m, nil
}

// Delete removes a model in any state. Pending pipeline timers are
// cancelled so nothing fires for a model that no longer exists.
func (r *ModelRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[id]; !ok {
		return apperror.NotFound("model", id)
	}

	r.cancelTimerLocked(id)
	delete(r.models, id)

	r.logger.Info("model deleted", slog.String("id", id))
	return nil
}

// Fail marks an in-flight model as failed. This is the explicit error
// signal from a deployment step — there is no random failure injection.
// Models that already finished the pipeline (active/stopped) can't fail
// retroactively.
func (r *ModelRegistry) Fail(id, reason string) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return model.Model{}, apperror.NotFound("model", id)
	}
	if !m.Status.InFlight() {
		return model.Model{}, apperror.Conflict(
			fmt.Sprintf("model is %s; only in-flight deployments can fail", m.Status))
	}

	r.cancelTimerLocked(id)
	m.Status = model.StatusFailed
	m.FailureReason = reason

	r.logger.Warn("model deployment failed",
		slog.String("id", id),
		slog.String("reason", reason),
	)
	return *m, nil
}

// SetCost replaces a model's cost breakdown. Cost is externally-settable
// data — it is never derived from the lifecycle. The total is computed
// as the sum of the components, so the breakdown invariant holds by
// construction.
func (r *ModelRegistry) SetCost(id string, sagemaker, s3, ses float64) (model.Model, error) {
	if sagemaker < 0 || s3 < 0 || ses < 0 {
		return model.Model{}, apperror.ValidationFailed("cost", "cost components must be non-negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return model.Model{}, apperror.NotFound("model", id)
	}

	m.Cost = model.NewCostBreakdown(sagemaker, s3, ses)
	return *m, nil
}

// Close cancels all pending timers. Called on server shutdown; after
// Close no new deployments are accepted.
func (r *ModelRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// scheduleLocked arms the timer for one pipeline edge. Caller holds r.mu.
func (r *ModelRegistry) scheduleLocked(id string, from, to model.Status, delay time.Duration) {
	r.cancelTimerLocked(id)
	r.timers[id] = time.AfterFunc(delay, func() {
		r.advance(id, from, to)
	})
}

// advance performs a timed transition, if it is still valid.
//
// The guard is the whole point: the model must still exist AND still be
// in the state the timer was scheduled from. Otherwise the timer is
// stale (model deleted, failed, or restarted since) and is dropped.
func (r *ModelRegistry) advance(id string, from, to model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.timers, id)

	if r.closed {
		return
	}
	m, ok := r.models[id]
	if !ok || m.Status != from {
		return // stale timer
	}

	m.Status = to
	switch to {
	case model.StatusDeploying:
		r.scheduleLocked(id, model.StatusDeploying, model.StatusActive, r.delays.Deploying)
	case model.StatusActive:
		m.Endpoint = endpointPrefix + endpointSlug(m.Name)
	}

	r.logger.Info("model status advanced",
		slog.String("id", id),
		slog.String("status", string(to)),
	)
}

// cancelTimerLocked stops and forgets the pending timer for id, if any.
// Caller holds r.mu. If the timer already fired and its callback is
// waiting on the mutex, Stop is a no-op — the state guard in advance
// catches that case.
func (r *ModelRegistry) cancelTimerLocked(id string) {
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}

// endpointSlug derives the endpoint identifier from a model name:
// lowercased, runs of whitespace collapsed to a single dash.
// "Sales Model" → "sales-model".
func endpointSlug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
