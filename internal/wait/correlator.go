package wait

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/internal/catalog"
	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/pkg/schema"
)

// Correlator decides, on every re-entry of a parked step, whether the wake-up
// resolves this wait, belongs to another wait, or signals expiry.
//
//	PENDING --no click--------------------------> EXPIRED
//	PENDING --click for another path or label---> PENDING (re-park)
//	PENDING --click on an offered label here----> ACTIONED
type Correlator struct {
	store    RecordStore
	engine   SuspendControl
	artifact artifact.Handle
	logger   *slog.Logger
}

// NewCorrelator creates a Correlator for the wait attached to artifact h.
func NewCorrelator(store RecordStore, engine SuspendControl, h artifact.Handle, logger *slog.Logger) *Correlator {
	return &Correlator{store: store, engine: engine, artifact: h, logger: logging.Default(logger)}
}

// OnResume handles one re-entry of the wait at path. The only error that is
// not an I/O failure is CONSISTENCY_ERROR: a click for another wait arrived
// but this wait has no stored record to re-park with.
func (c *Correlator) OnResume(ctx context.Context, path string, allowed catalog.AllowedSet, signal schema.ResumeSignal) (Result, error) {
	ctx = logging.WithPath(ctx, path)

	// A wake-up without a click is the deadline firing, whatever its path.
	if !signal.IsClick() {
		return c.resolve(ctx, path, Expired{}, artifact.Expired())
	}

	if signal.Path == nil || *signal.Path != path {
		return c.repark(ctx, path, signal, "click for another wait")
	}
	if err := allowed.Validate(*signal.ActionClicked); err != nil {
		return c.repark(ctx, path, signal, err.Error())
	}

	accepted := Accepted{Actor: signal.Actor(), Action: signal.Action()}
	return c.resolve(ctx, path, accepted, artifact.Accepted(accepted.Actor, accepted.Action))
}

func (c *Correlator) repark(ctx context.Context, path string, signal schema.ResumeSignal, reason string) (Result, error) {
	rec, err := c.store.Get(ctx, WaitKey(path))
	if err != nil && !schema.IsCode(err, schema.ErrCodeNotFound) {
		return Result{}, schema.NewErrorf(schema.ErrCodeStore, "read wait record: %s", err.Error()).
			WithPath(path).WithCause(err)
	}
	if rec == nil {
		c.logger.ErrorContext(ctx, "no wait record to re-park", slog.String("signal_path", signal.PathValue()))
		return Result{}, schema.NewErrorf(schema.ErrCodeConsistency,
			"no wait record stored for path %q", path).
			WithPath(path).
			WithCause(err).
			WithDetails(map[string]any{"signal_path": signal.PathValue(), "action": signal.Action()})
	}

	ctx = logging.WithCorrelationID(ctx, rec.CorrelationID)
	ins := schema.SuspendInstruction{Record: *rec}
	if err := c.engine.Suspend(ctx, ins); err != nil {
		return Result{}, schema.NewErrorf(schema.ErrCodeSuspend, "re-suspend: %s", err.Error()).
			WithPath(path).WithCause(err)
	}

	c.logger.DebugContext(ctx, "click not for this wait, re-parked",
		slog.String("reason", reason),
		slog.String("signal_path", signal.PathValue()),
		slog.String("action", signal.Action()),
	)
	return pending(ins), nil
}

func (c *Correlator) resolve(ctx context.Context, path string, outcome Outcome, t artifact.Terminal) (Result, error) {
	body, err := artifact.Resolve(ctx, c.artifact, t)
	if err != nil {
		return Result{}, withPath(err, path)
	}

	if t.Expired {
		c.logger.InfoContext(ctx, "wait expired")
	} else {
		c.logger.InfoContext(ctx, "wait actioned", slog.String("action", t.Action), slog.String("actor", t.Actor))
	}
	return Result{Outcome: outcome, Artifact: body}, nil
}

// withPath returns a copy of the OpcodeError in err's chain with path attached.
// err itself is left untouched; errors that already carry a path keep it.
func withPath(err error, path string) error {
	var oe *schema.OpcodeError
	if !errors.As(err, &oe) || oe.Path != "" {
		return err
	}
	cp := *oe
	cp.Path = path
	return &cp
}
