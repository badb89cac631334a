package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

const (
	postgresImage = "postgres:17-alpine"
	redisImage    = "redis:7-alpine"
	mailpitImage  = "axllent/mailpit:v1.21"

	startupTimeout = 60 * time.Second
)

// Stack is the set of backing services the integration suite runs against:
// Postgres for storage, Redis for shared rate limiting and Mailpit as the
// SMTP sink.
type Stack struct {
	PostgresURL string
	RedisAddr   string
	SMTPHost    string
	SMTPPort    int
	// MailpitURL is the base URL of Mailpit's REST API.
	MailpitURL string

	mu         sync.Mutex
	containers []testcontainers.Container
}

// StartStack starts every service concurrently. On failure the services that
// did come up are terminated before returning.
func StartStack(ctx context.Context) (*Stack, error) {
	s := &Stack{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.startPostgres(gctx) })
	g.Go(func() error { return s.startRedis(gctx) })
	g.Go(func() error { return s.startMailpit(gctx) })

	if err := g.Wait(); err != nil {
		return nil, errors.Join(err, s.Terminate(context.Background()))
	}
	return s, nil
}

// Terminate stops every started container.
func (s *Stack) Terminate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, c := range s.containers {
		if err := testcontainers.TerminateContainer(c, testcontainers.StopContext(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	s.containers = nil
	return errors.Join(errs...)
}

func (s *Stack) track(c testcontainers.Container) {
	s.mu.Lock()
	s.containers = append(s.containers, c)
	s.mu.Unlock()
}

func (s *Stack) startPostgres(ctx context.Context) error {
	c, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("onestop"),
		postgres.WithUsername("onestop"),
		postgres.WithPassword("onestop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	s.track(c)
	if err != nil {
		return fmt.Errorf("start postgres: %w", err)
	}

	s.PostgresURL, err = c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("postgres connection string: %w", err)
	}
	return nil
}

func (s *Stack) startRedis(ctx context.Context) error {
	c, err := start(ctx, s, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(startupTimeout),
	})
	if err != nil {
		return fmt.Errorf("start redis: %w", err)
	}

	s.RedisAddr, err = c.Endpoint(ctx, "")
	if err != nil {
		return fmt.Errorf("redis endpoint: %w", err)
	}
	return nil
}

func (s *Stack) startMailpit(ctx context.Context) error {
	c, err := start(ctx, s, testcontainers.ContainerRequest{
		Image:        mailpitImage,
		ExposedPorts: []string{"1025/tcp", "8025/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("1025/tcp"),
			wait.ForHTTP("/api/v1/info").WithPort("8025/tcp"),
		).WithDeadline(startupTimeout),
	})
	if err != nil {
		return fmt.Errorf("start mailpit: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		return fmt.Errorf("mailpit host: %w", err)
	}
	smtpPort, err := c.MappedPort(ctx, "1025/tcp")
	if err != nil {
		return fmt.Errorf("mailpit smtp port: %w", err)
	}
	apiPort, err := c.MappedPort(ctx, "8025/tcp")
	if err != nil {
		return fmt.Errorf("mailpit api port: %w", err)
	}

	s.SMTPHost = host
	s.SMTPPort = smtpPort.Int()
	s.MailpitURL = fmt.Sprintf("http://%s:%d", host, apiPort.Int())
	return nil
}

func start(ctx context.Context, s *Stack, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.track(c)
	return c, err
}
