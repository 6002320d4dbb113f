package wait

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/internal/catalog"
	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/pkg/schema"
)

// DefaultTimeout is used when a step configures no timeout.
const DefaultTimeout = 24 * time.Hour

// StepConfig is the configuration of one "wait for action" step.
type StepConfig struct {
	// Blocks is the body of the message the step sent; its buttons are the
	// offered actions.
	Blocks  []schema.Block
	Timeout time.Duration
}

// BodyValidator checks an artifact body before a wait begins on it.
type BodyValidator interface {
	Validate(body []schema.Block) error
}

// StepDeps holds the collaborators of a Step.
type StepDeps struct {
	Store     RecordStore
	Engine    SuspendControl
	Artifact  artifact.Handle
	Extractor *catalog.Extractor
	Validator BodyValidator // optional
	Logger    *slog.Logger
}

// Step wires a Coordinator and a Correlator to one configured wait step.
type Step struct {
	cfg         StepConfig
	extractor   *catalog.Extractor
	validator   BodyValidator
	coordinator *Coordinator
	correlator  *Correlator
}

// NewStep creates a Step.
func NewStep(cfg StepConfig, deps StepDeps) *Step {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if deps.Extractor == nil {
		deps.Extractor = catalog.NewExtractor()
	}
	logger := logging.Default(deps.Logger)
	return &Step{
		cfg:         cfg,
		extractor:   deps.Extractor,
		validator:   deps.Validator,
		coordinator: NewCoordinator(deps.Store, deps.Engine, logger),
		correlator:  NewCorrelator(deps.Store, deps.Engine, deps.Artifact, logger),
	}
}

// Begin is the first entry of the step: it parks the run until now+Timeout.
func (s *Step) Begin(ctx context.Context, path string, now time.Time) (Result, error) {
	if s.validator != nil {
		if err := s.validator.Validate(s.cfg.Blocks); err != nil {
			return Result{}, withPath(err, path)
		}
	}
	return s.coordinator.BeginWait(ctx, path, now.Add(s.cfg.Timeout))
}

// Resume is every later entry of the step.
func (s *Step) Resume(ctx context.Context, path string, signal schema.ResumeSignal) (Result, error) {
	allowed, err := s.Allowed(ctx)
	if err != nil {
		return Result{}, withPath(err, path)
	}
	return s.correlator.OnResume(ctx, path, allowed, signal)
}

// Allowed re-derives the offered action labels from the step configuration.
func (s *Step) Allowed(ctx context.Context) (catalog.AllowedSet, error) {
	actions, err := s.extractor.Extract(ctx, s.cfg.Blocks)
	if err != nil {
		return catalog.AllowedSet{}, err
	}
	return catalog.NewAllowedSet(actions), nil
}
