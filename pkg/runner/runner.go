package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrShutdownTimeout is returned by Run when the services did not stop within
// the shutdown timeout.
var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

const (
	defaultStartupTimeout  = time.Minute
	defaultShutdownTimeout = 30 * time.Second
)

// Runner manages the lifecycle of the services around a gateway: brokers,
// command consumers and the like. Services start in registration order and
// stop in reverse order.
type Runner struct {
	services        []Service
	logger          *slog.Logger
	startupTimeout  time.Duration
	shutdownTimeout time.Duration
	signals         bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithShutdownTimeout bounds the time all services get to stop. Default 30s.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.shutdownTimeout = timeout }
}

// WithStartupTimeout bounds each service's Start. Default 1m.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.startupTimeout = timeout }
}

// WithoutSignals disables stopping on SIGINT/SIGTERM. Run then only returns
// when its context is cancelled.
func WithoutSignals() Option {
	return func(r *Runner) { r.signals = false }
}

// New returns a runner for services.
func New(services []Service, opts ...Option) *Runner {
	r := &Runner{
		services:        services,
		logger:          slog.Default(),
		startupTimeout:  defaultStartupTimeout,
		shutdownTimeout: defaultShutdownTimeout,
		signals:         true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts every service, blocks until ctx is done or a shutdown signal
// arrives, then stops the started services. A failed Start stops the services
// already running and returns the failure.
func (r *Runner) Run(ctx context.Context) error {
	if r.signals {
		var stop context.CancelFunc
		ctx, stop = NotifyShutdown(ctx)
		defer stop()
	}

	running := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		if err := r.start(ctx, svc); err != nil {
			return errors.Join(fmt.Errorf("start service %s: %w", svc.Name(), err), r.stopAll(running))
		}
		running = append(running, svc)
	}
	r.logger.Info("Services running", slog.Int("count", len(running)))

	<-ctx.Done()

	r.logger.Info("Stopping services", slog.Duration("timeout", r.shutdownTimeout))
	return r.stopAll(running)
}

func (r *Runner) start(ctx context.Context, svc Service) error {
	ctx, cancel := context.WithTimeout(ctx, r.startupTimeout)
	defer cancel()

	begin := time.Now()
	if err := svc.Start(ctx); err != nil {
		r.logger.Error("Service failed to start", slog.String("service", svc.Name()), slog.Any("error", err))
		return err
	}
	r.logger.Debug("Service started",
		slog.String("service", svc.Name()),
		slog.Int64("duration_ms", time.Since(begin).Milliseconds()),
	)
	return nil
}

// stopAll stops services one at a time, last started first, so consumers drain
// before the brokers they read from go away.
func (r *Runner) stopAll(services []Service) error {
	if len(services) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(services) - 1; i >= 0; i-- {
			svc := services[i]
			if err := svc.Stop(ctx); err != nil {
				r.logger.Error("Service failed to stop", slog.String("service", svc.Name()), slog.Any("error", err))
				errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
				continue
			}
			r.logger.Debug("Service stopped", slog.String("service", svc.Name()))
		}
		result <- errors.Join(errs...)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		r.logger.Error("Services did not stop in time", slog.Duration("timeout", r.shutdownTimeout))
		return ErrShutdownTimeout
	}
}

// HealthCheck returns the first failure reported by a service implementing
// HealthChecker.
func (r *Runner) HealthCheck(ctx context.Context) error {
	for _, svc := range r.services {
		hc, ok := svc.(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("service %s unhealthy: %w", svc.Name(), err)
		}
	}
	return nil
}
