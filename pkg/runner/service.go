package runner

import "context"

// Service is a long-running component managed by the Runner, such as the
// command bus or a queue consumer. Services start in order and stop in
// reverse order.
type Service interface {
	// Name identifies the service in logs and errors.
	Name() string

	// Start returns once the service is ready. A gateway handing commands
	// to the service may be called right after Start returns.
	Start(ctx context.Context) error

	// Stop releases the service's resources within the context deadline.
	// It must be safe to call on a service that failed to start.
	Stop(ctx context.Context) error
}

// HealthChecker is implemented by services that can report their health.
type HealthChecker interface {
	Service

	HealthCheck(ctx context.Context) error
}

// ServiceFunc adapts a pair of functions to a Service.
type ServiceFunc struct {
	ServiceName string
	StartFunc   func(ctx context.Context) error
	StopFunc    func(ctx context.Context) error
}

func (s ServiceFunc) Name() string {
	return s.ServiceName
}

func (s ServiceFunc) Start(ctx context.Context) error {
	if s.StartFunc == nil {
		return nil
	}
	return s.StartFunc(ctx)
}

func (s ServiceFunc) Stop(ctx context.Context) error {
	if s.StopFunc == nil {
		return nil
	}
	return s.StopFunc(ctx)
}
