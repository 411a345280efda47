package runner_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/plaenen/commandgateway/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name     string
	startErr error
	events   *[]string
	mu       *sync.Mutex
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(context.Context) error {
	s.record("start " + s.name)
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	s.record("stop " + s.name)
	return nil
}

func (s *fakeService) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.events = append(*s.events, event)
}

func TestRunnerOrdering(t *testing.T) {
	var (
		events []string
		mu     sync.Mutex
	)
	services := []runner.Service{
		&fakeService{name: "nats", events: &events, mu: &mu},
		&fakeService{name: "consumer", events: &events, mu: &mu},
	}
	r := runner.New(services, runner.WithoutSignals(), runner.WithLogger(slog.New(slog.DiscardHandler)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []string{"start nats", "start consumer", "stop consumer", "stop nats"}, events)
}

func TestRunnerStartFailure(t *testing.T) {
	var (
		events []string
		mu     sync.Mutex
	)
	boom := errors.New("boom")
	services := []runner.Service{
		&fakeService{name: "nats", events: &events, mu: &mu},
		&fakeService{name: "consumer", startErr: boom, events: &events, mu: &mu},
	}
	r := runner.New(services, runner.WithoutSignals(), runner.WithLogger(slog.New(slog.DiscardHandler)))

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start nats", "start consumer", "stop nats"}, events)
}

func TestServiceFunc(t *testing.T) {
	var started, stopped bool
	svc := runner.ServiceFunc{
		ServiceName: "demo",
		StartFunc:   func(context.Context) error { started = true; return nil },
		StopFunc:    func(context.Context) error { stopped = true; return nil },
	}

	assert.Equal(t, "demo", svc.Name())
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop(context.Background()))
	assert.True(t, started)
	assert.True(t, stopped)

	assert.NoError(t, runner.ServiceFunc{ServiceName: "empty"}.Start(context.Background()))
}

type checkedService struct {
	runner.ServiceFunc
	healthErr error
}

func (s checkedService) HealthCheck(context.Context) error { return s.healthErr }

func TestRunnerShutdownTimeout(t *testing.T) {
	slow := checkedService{ServiceFunc: runner.ServiceFunc{
		ServiceName: "slow",
		StopFunc: func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			return ctx.Err()
		},
	}}
	r := runner.New([]runner.Service{slow},
		runner.WithoutSignals(),
		runner.WithShutdownTimeout(10*time.Millisecond),
		runner.WithLogger(slog.New(slog.DiscardHandler)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), runner.ErrShutdownTimeout)
}

func TestRunnerHealthCheck(t *testing.T) {
	unhealthy := errors.New("disconnected")
	r := runner.New([]runner.Service{
		checkedService{ServiceFunc: runner.ServiceFunc{ServiceName: "healthy"}},
		runner.ServiceFunc{ServiceName: "plain"},
		checkedService{ServiceFunc: runner.ServiceFunc{ServiceName: "bus"}, healthErr: unhealthy},
	})

	err := r.HealthCheck(context.Background())
	assert.ErrorIs(t, err, unhealthy)
	assert.Contains(t, err.Error(), "service bus unhealthy")
}
