// Package nats hosts an embedded NATS server with JetStream, used as the
// command broker in development, examples and tests.
package nats

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const (
	readyTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type config struct {
	host     string
	port     int
	storeDir string
	debug    bool
	logger   *slog.Logger
}

// Option configures the embedded server.
type Option func(*config)

// WithHost sets the listen host. Defaults to 127.0.0.1.
func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

// WithPort sets the client port. Defaults to a random free port.
func WithPort(port int) Option {
	return func(c *config) {
		c.port = port
	}
}

// WithStoreDir sets the JetStream storage directory. Defaults to a temp directory.
func WithStoreDir(dir string) Option {
	return func(c *config) {
		c.storeDir = dir
	}
}

// WithDebug enables server debug logging.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.debug = debug
	}
}

// WithLogger sets the logger used for lifecycle warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// EmbeddedServer wraps an embedded NATS server.
type EmbeddedServer struct {
	server       *server.Server
	url          string
	logger       *slog.Logger
	shutdownOnce sync.Once
}

// StartEmbeddedServer starts an embedded NATS server with JetStream enabled.
func StartEmbeddedServer(opts ...Option) (*EmbeddedServer, error) {
	cfg := &config{
		host:   "127.0.0.1",
		port:   server.RANDOM_PORT,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s, err := server.NewServer(&server.Options{
		Host:      cfg.host,
		Port:      cfg.port,
		JetStream: true,
		StoreDir:  cfg.storeDir,
		Debug:     cfg.debug,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded server: %w", err)
	}

	go s.Start()

	if !s.ReadyForConnections(readyTimeout) {
		s.Shutdown()
		return nil, fmt.Errorf("server not ready after %s", readyTimeout)
	}

	return &EmbeddedServer{
		server: s,
		url:    s.ClientURL(),
		logger: cfg.logger,
	}, nil
}

// URL returns the connection URL for the embedded server.
func (e *EmbeddedServer) URL() string {
	return e.url
}

// Shutdown stops the server. Safe to call multiple times.
func (e *EmbeddedServer) Shutdown() {
	e.shutdownOnce.Do(func() {
		if e.server == nil {
			return
		}

		e.server.Shutdown()

		done := make(chan struct{})
		go func() {
			e.server.WaitForShutdown()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			if e.logger != nil {
				e.logger.Warn("NATS server shutdown timed out", "timeout", shutdownTimeout)
			}
		}
	})
}

// ConnectToEmbedded connects a client to srv.
func ConnectToEmbedded(srv *EmbeddedServer, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(srv.URL(), opts...)
}
