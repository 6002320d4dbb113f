package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/actionwait/internal/logging"
)

// DefaultSweepSchedule is used when no schedule is configured.
const DefaultSweepSchedule = "@every 30s"

// sweepTarget is the part of Host the sweeper drives.
type sweepTarget interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Sweeper expires overdue waits on a cron schedule.
type Sweeper struct {
	target   sweepTarget
	schedule cron.Schedule
	spec     string
	logger   *slog.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewSweeper creates a Sweeper. spec is a standard five-field cron expression
// or a descriptor such as "@every 30s".
func NewSweeper(target sweepTarget, spec string, logger *slog.Logger) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSweepSchedule
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		target:   target,
		schedule: schedule,
		spec:     spec,
		logger:   logging.Default(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// ParseSchedule parses a sweep schedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Start launches the background sweep loop. It sweeps once immediately so
// waits that expired while the host was down are resolved on boot.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already started")
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(sweepCtx)
	s.logger.Info("sweeper started", slog.String("schedule", s.spec))
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	s.tick(ctx)

	for {
		now := s.now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	expired, err := s.target.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Error("sweep failed", slog.String("error", err.Error()))
	}
	if expired > 0 {
		s.logger.Info("expired overdue waits", slog.Int("count", expired))
	}
}

// Stop shuts the sweeper down and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("sweeper stopped")
	return nil
}
