//go:build integration

package integration

import (
	"context"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bissquit/onestop-itsm/internal/app"
	"github.com/bissquit/onestop-itsm/internal/config"
	"github.com/bissquit/onestop-itsm/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	testServer    *httptest.Server
	testValidator *testutil.OpenAPIValidator
	testDB        *pgxpool.Pool
	postgresURL   string
	mailbox       *testutil.Mailbox
)

// newTestClient returns a client whose API responses are checked against
// the OpenAPI document.
func newTestClient(t *testing.T) *testutil.Client {
	t.Helper()
	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)
	return client
}

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	stack, err := testutil.StartStack(ctx)
	if err != nil {
		log.Printf("start test stack: %v", err)
		return 1
	}
	defer func() {
		if err := stack.Terminate(context.Background()); err != nil {
			log.Printf("terminate test stack: %v", err)
		}
	}()
	mailbox = testutil.NewMailbox(stack.MailpitURL)
	postgresURL = stack.PostgresURL

	cfg := testConfig(stack)
	application, err := app.New(ctx, &cfg)
	if err != nil {
		log.Printf("create app: %v", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown app: %v", err)
		}
	}()

	testDB, err = pgxpool.New(ctx, stack.PostgresURL)
	if err != nil {
		log.Printf("create test db pool: %v", err)
		return 1
	}
	defer testDB.Close()

	testValidator, err = testutil.LoadOpenAPIValidator()
	if err != nil {
		log.Printf("load openapi validator: %v", err)
		return 1
	}

	testServer = httptest.NewServer(application.Router())
	defer testServer.Close()

	return m.Run()
}

func testConfig(stack *testutil.Stack) config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}

	cfg.Storage.Driver = config.DriverPostgres
	cfg.Database.URL = stack.PostgresURL
	cfg.Database.MaxOpenConns = 5
	cfg.Database.MaxIdleConns = 2
	cfg.Database.ConnectTimeout = 30 * time.Second
	cfg.Database.AutoMigrate = true

	cfg.JWT.SecretKey = "integration-secret-key-0123456789abcdef"

	cfg.RateLimit.RedisAddr = stack.RedisAddr
	cfg.RateLimit.LoginPerMinute = 60
	cfg.RateLimit.LoginBurst = loginBurst

	cfg.Notifications.Enabled = true
	cfg.Notifications.BaseURL = "http://console.onestop.test"
	cfg.Notifications.Email = config.EmailConfig{
		Enabled:     true,
		SMTPHost:    stack.SMTPHost,
		SMTPPort:    stack.SMTPPort,
		FromAddress: "OneStop ITSM <itsm@onestop.test>",
	}
	cfg.Notifications.Retry.InitialBackoff = 100 * time.Millisecond
	return cfg
}
