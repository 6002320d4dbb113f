// Package host is a reference host for wait steps: it parks runs, mints
// single-use callback tokens, routes callbacks back into the parked step and
// wakes steps whose deadline has passed.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/internal/store"
	"github.com/rendis/actionwait/internal/streaming"
	"github.com/rendis/actionwait/internal/wait"
	"github.com/rendis/actionwait/pkg/schema"
)

// Resumer re-enters a parked wait step. *wait.Step satisfies it.
type Resumer interface {
	Resume(ctx context.Context, path string, signal schema.ResumeSignal) (wait.Result, error)
}

// ResumerFunc adapts a function to Resumer.
type ResumerFunc func(ctx context.Context, path string, signal schema.ResumeSignal) (wait.Result, error)

func (f ResumerFunc) Resume(ctx context.Context, path string, signal schema.ResumeSignal) (wait.Result, error) {
	return f(ctx, path, signal)
}

// Config holds the optional collaborators of a Host.
type Config struct {
	// BaseURL is the externally reachable root callback URLs are built on.
	BaseURL string
	Hub     streaming.EventHub
	Logger  *slog.Logger
	// NewID mints correlation ids. Defaults to uuid v4.
	NewID func() string
	// OnResolved, if set, is called after a wait leaves the parked state.
	OnResolved func(sp *store.Suspension)
}

// Host parks and resumes wait steps on top of a Store.
type Host struct {
	store  store.Store
	hub    streaming.EventHub
	base   *url.URL
	logger *slog.Logger
	newID  func() string
	locks  *keyedMutex

	onResolved func(sp *store.Suspension)

	mu       sync.Mutex
	resumers map[waitRef]Resumer
}

type waitRef struct {
	runID string
	path  string
}

func (w waitRef) key() string { return w.runID + "\x00" + w.path }

// New creates a Host.
func New(s store.Store, cfg Config) (*Host, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	return &Host{
		store:    s,
		hub:      cfg.Hub,
		base:     base,
		logger:   logging.Default(cfg.Logger),
		newID:      cfg.NewID,
		locks:      newKeyedMutex(),
		onResolved: cfg.OnResolved,
		resumers:   make(map[waitRef]Resumer),
	}, nil
}

// Register routes callbacks for the wait at path in runID to r.
func (h *Host) Register(runID, path string, r Resumer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resumers[waitRef{runID, path}] = r
}

func (h *Host) unregister(runID, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.resumers, waitRef{runID, path})
}

func (h *Host) resumer(runID, path string) Resumer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resumers[waitRef{runID, path}]
}

// Engine returns the suspend control a wait step of runID talks to.
func (h *Host) Engine(runID string) *RunEngine {
	return &RunEngine{host: h, runID: runID}
}

// BeginStep registers step for path and takes its first entry.
func (h *Host) BeginStep(ctx context.Context, runID, path string, step *wait.Step, now time.Time) (wait.Result, error) {
	h.Register(runID, path, step)
	res, err := step.Begin(logging.WithRunID(ctx, runID), path, now)
	if err != nil {
		h.unregister(runID, path)
		return wait.Result{}, err
	}
	return res, nil
}

// RunEngine is the wait.SuspendControl of one run.
type RunEngine struct {
	host  *Host
	runID string
}

var _ wait.SuspendControl = (*RunEngine)(nil)

// MintCorrelationID returns a fresh callback token.
func (e *RunEngine) MintCorrelationID() string {
	return e.host.newID()
}

// Suspend parks the run at ins.Record.Path. Re-issuing a known correlation id
// is a re-park and leaves the suspension untouched.
func (e *RunEngine) Suspend(ctx context.Context, ins schema.SuspendInstruction) error {
	rec := ins.Record
	eventType := schema.EventWaitParked

	existing, err := e.host.store.GetSuspension(ctx, rec.CorrelationID)
	switch {
	case err == nil:
		if existing.RunID != e.runID || existing.Path != rec.Path {
			return schema.NewErrorf(schema.ErrCodeConflict,
				"correlation id %q belongs to run %s path %s", rec.CorrelationID, existing.RunID, existing.Path).
				WithPath(rec.Path)
		}
		eventType = schema.EventWaitReparked
	case schema.IsCode(err, schema.ErrCodeNotFound):
		err = e.host.store.UpsertSuspension(ctx, &store.Suspension{
			CorrelationID: rec.CorrelationID,
			RunID:         e.runID,
			Path:          rec.Path,
			Deadline:      rec.Deadline,
			Status:        schema.SuspensionParked,
		})
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "upsert suspension: %s", err.Error()).WithCause(err)
		}
	default:
		return schema.NewErrorf(schema.ErrCodeStore, "get suspension: %s", err.Error()).WithCause(err)
	}

	e.host.emit(ctx, e.runID, rec.Path, rec.CorrelationID, eventType, map[string]any{
		"deadline": rec.Deadline.UTC().Format(time.RFC3339),
	})
	return nil
}

// CallbackURL builds the capability URL a third party calls when action is
// clicked on the wait at path. The caller appends actorName.
func (h *Host) CallbackURL(correlationID, path, action string) string {
	u := h.base.JoinPath("callbacks", correlationID)
	q := url.Values{}
	q.Set("path", path)
	q.Set("actionClicked", action)
	u.RawQuery = q.Encode()
	return u.String()
}

// Delivery is the outcome of routing one signal to a parked wait.
type Delivery struct {
	Suspension *store.Suspension `json:"suspension"`
	Result     wait.Result       `json:"result"`
}

// Deliver presents signal with the callback token correlationID. Unknown tokens
// are NOT_FOUND and consumed tokens are CONFLICT. Deliveries to the same wait
// are serialized.
func (h *Host) Deliver(ctx context.Context, correlationID string, signal schema.ResumeSignal) (*Delivery, error) {
	sp, err := h.store.GetSuspension(ctx, correlationID)
	if err != nil {
		return nil, err
	}

	ref := waitRef{sp.RunID, sp.Path}
	unlock := h.locks.Lock(ref.key())
	defer unlock()

	// Re-read under the lock: a concurrent delivery may have consumed it.
	sp, err = h.store.GetSuspension(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if sp.Status != schema.SuspensionParked {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "callback token %q already consumed", correlationID).
			WithPath(sp.Path)
	}

	return h.resume(logging.WithIDs(ctx, sp.RunID, sp.Path, sp.CorrelationID), sp, signal)
}

func (h *Host) resume(ctx context.Context, sp *store.Suspension, signal schema.ResumeSignal) (*Delivery, error) {
	r := h.resumer(sp.RunID, sp.Path)
	if r == nil {
		if signal.IsClick() {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no step registered for run %s", sp.RunID).
				WithPath(sp.Path)
		}
		// The step is gone, typically across a restart. Nothing can rewrite
		// its artifact any more, but the wait itself still has to end.
		h.logger.WarnContext(ctx, "expiring wait with no registered step")
		return h.settle(ctx, sp, wait.Result{Outcome: wait.Expired{}}, map[string]any{"orphaned": true})
	}

	res, err := r.Resume(ctx, sp.Path, signal)
	if err != nil {
		if schema.IsCode(err, schema.ErrCodeConsistency) {
			h.fault(ctx, sp, err)
		}
		return nil, err
	}
	if !res.Outcome.Terminal() {
		return &Delivery{Suspension: sp, Result: res}, nil
	}
	return h.settle(ctx, sp, res, nil)
}

// settle records a terminal result, retires the token and announces it.
func (h *Host) settle(ctx context.Context, sp *store.Suspension, res wait.Result, extra map[string]any) (*Delivery, error) {
	outcome, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}
	if err := h.store.ResolveSuspension(ctx, sp.CorrelationID, schema.SuspensionResolved, outcome); err != nil {
		return nil, err
	}
	h.unregister(sp.RunID, sp.Path)

	eventType := schema.EventWaitActioned
	if _, ok := res.Outcome.(wait.Expired); ok {
		eventType = schema.EventWaitExpired
	}
	payload := map[string]any{
		"action": res.Action(),
		"actor":  res.Actor(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	h.emit(ctx, sp.RunID, sp.Path, sp.CorrelationID, eventType, payload)

	sp.Status = schema.SuspensionResolved
	sp.Outcome = outcome
	h.resolved(sp)
	return &Delivery{Suspension: sp, Result: res}, nil
}

func (h *Host) resolved(sp *store.Suspension) {
	if h.onResolved != nil {
		h.onResolved(sp)
	}
}

// fault takes a wait whose state is inconsistent out of circulation.
func (h *Host) fault(ctx context.Context, sp *store.Suspension, cause error) {
	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := h.store.ResolveSuspension(ctx, sp.CorrelationID, schema.SuspensionFaulted, payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to mark suspension faulted", slog.String("error", err.Error()))
	}
	h.unregister(sp.RunID, sp.Path)
	h.emit(ctx, sp.RunID, sp.Path, sp.CorrelationID, schema.EventWaitFaulted, map[string]any{"error": cause.Error()})

	sp.Status = schema.SuspensionFaulted
	h.resolved(sp)
}

// Broadcast presents signal to every parked wait of runID, the way engines
// that wake a whole run do. Waits the signal is not meant for re-park.
func (h *Host) Broadcast(ctx context.Context, runID string, signal schema.ResumeSignal) ([]*Delivery, error) {
	parked, err := h.store.ListSuspensions(ctx, store.SuspensionFilter{RunID: runID, Status: schema.SuspensionParked})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list suspensions: %s", err.Error()).WithCause(err)
	}

	var out []*Delivery
	var errs []error
	for _, sp := range parked {
		d, err := h.Deliver(ctx, sp.CorrelationID, signal)
		if schema.IsCode(err, schema.ErrCodeConflict) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	return out, errors.Join(errs...)
}

// Sweep wakes every parked wait whose deadline is at or before now with an
// empty signal, which expires it. It returns how many waits it expired.
func (h *Host) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := h.store.ListSuspensions(ctx, store.SuspensionFilter{
		Status:    schema.SuspensionParked,
		DueBefore: &now,
	})
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "list due suspensions: %s", err.Error()).WithCause(err)
	}

	expired := 0
	var errs []error
	for _, sp := range due {
		d, err := h.Deliver(ctx, sp.CorrelationID, schema.ResumeSignal{})
		if schema.IsCode(err, schema.ErrCodeConflict) {
			continue // resolved by a click in the meantime
		}
		if err != nil {
			h.logger.WarnContext(ctx, "sweep failed to expire wait",
				slog.String("correlation_id", sp.CorrelationID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		if d.Result.Outcome.Terminal() {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

// ForgetRun deletes every stored trace of runID. A run that still has parked
// waits is CONFLICT.
func (h *Host) ForgetRun(ctx context.Context, runID string) error {
	parked, err := h.store.ListSuspensions(ctx, store.SuspensionFilter{
		RunID:  runID,
		Status: schema.SuspensionParked,
		Limit:  1,
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "list suspensions: %s", err.Error()).WithCause(err)
	}
	if len(parked) > 0 {
		return schema.NewErrorf(schema.ErrCodeConflict, "run %s still has parked waits", runID).
			WithPath(parked[0].Path)
	}
	if err := h.store.DeleteRun(ctx, runID); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete run: %s", err.Error()).WithCause(err)
	}
	h.logger.InfoContext(logging.WithRunID(ctx, runID), "run forgotten")
	return nil
}

// List returns suspensions matching filter.
func (h *Host) List(ctx context.Context, filter store.SuspensionFilter) ([]*store.Suspension, error) {
	return h.store.ListSuspensions(ctx, filter)
}

// History reconstructs the waits of runID from the event log.
func (h *Host) History(ctx context.Context, runID string) (map[string]*store.WaitHistory, error) {
	return store.ReplayWaits(ctx, h.store, runID)
}

// emit records a lifecycle event in the log and on the hub. Both are
// best-effort: the protocol outcome has already been decided.
func (h *Host) emit(ctx context.Context, runID, path, correlationID, eventType string, payload map[string]any) {
	payload["correlation_id"] = correlationID
	data, _ := json.Marshal(payload)
	now := time.Now().UTC()

	if err := h.store.AppendEvent(ctx, &store.Event{
		RunID:     runID,
		Path:      path,
		Type:      eventType,
		Payload:   data,
		Timestamp: now,
	}); err != nil {
		h.logger.WarnContext(ctx, "failed to append wait event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}

	if h.hub == nil {
		return
	}
	if err := h.hub.Publish(ctx, streaming.WaitEvent{
		RunID:         runID,
		Path:          path,
		CorrelationID: correlationID,
		EventType:     eventType,
		Payload:       payload,
		At:            now,
	}); err != nil {
		h.logger.WarnContext(ctx, "failed to publish wait event", slog.String("error", err.Error()))
	}
}
