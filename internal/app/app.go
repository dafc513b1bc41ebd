// Package app wires the onboarding components together and runs a single
// batch pass: optional peer preflight, the orchestration loop, and the
// final token persist.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auctionledger/onboard/internal/batch"
	"github.com/auctionledger/onboard/internal/config"
	"github.com/auctionledger/onboard/internal/identity"
	"github.com/auctionledger/onboard/internal/ledger"
	"github.com/auctionledger/onboard/internal/logging"
	"github.com/auctionledger/onboard/internal/onboarding"
	"github.com/auctionledger/onboard/internal/outcomes"
	"github.com/auctionledger/onboard/internal/token"
	"github.com/auctionledger/onboard/internal/tokenstore"
	"golang.org/x/term"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	orchestrator *onboarding.Orchestrator
	health       *ledger.PeerHealth
	db           *sql.DB
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	if cfg.SecretKey == "" {
		secret, err := promptSecret()
		if err != nil {
			return nil, err
		}
		cfg.SecretKey = secret
	}

	var rec outcomes.Recorder = outcomes.NoopRecorder{}
	var db *sql.DB
	if cfg.OutcomesDSN != "" {
		var err error
		db, err = outcomes.Open(ctx, cfg.OutcomesDSN)
		if err != nil {
			return nil, fmt.Errorf("outcomes db init error: %w", err)
		}
		rec = outcomes.NewPostgresRecorder(db)
	}

	registrar := identity.NewCAClient(cfg.CAEndpoint, cfg.CAAdminUser, cfg.CAAdminSecret,
		cfg.RetryAttempts, cfg.RetryBackoff, logger)
	recorder := ledger.NewGatewayClient(cfg.GatewayEndpoint, cfg.Peers, cfg.Channel, cfg.Chaincode,
		cfg.RetryAttempts, cfg.RetryBackoff, logger)
	issuer := token.NewIssuer([]byte(cfg.SecretKey), cfg.TokenTTL)

	var store tokenstore.Store = tokenstore.NewFileStore(cfg.TokenFile, logger)
	if cfg.S3Bucket != "" {
		s3cfg := tokenstore.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
		}
		store = tokenstore.NewDistributingStore(store, tokenstore.NewS3Store(s3cfg, "", logger), logger)
	}

	orch := onboarding.New(registrar, recorder, issuer, store, rec,
		cfg.AttributeWhitelist, cfg.Workers, logger)

	var health *ledger.PeerHealth
	if cfg.PeerHealthCheck {
		health = ledger.NewPeerHealth(5*time.Second, logger)
	}

	return &App{config: cfg, logger: logger, orchestrator: orch, health: health, db: db}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes one batch pass. It returns an error only for the two
// run-level failures: an unreadable batch source or a failed token persist.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	if app.db != nil {
		defer app.db.Close()
	}

	app.logger.Info(ctx, "starting onboarding", "users_file", app.config.UsersFile, "token_file", app.config.TokenFile)

	if app.health != nil {
		healthy := app.health.CheckAll(ctx, app.config.Peers)
		app.logger.Info(ctx, "peer preflight done", "healthy", healthy, "total", len(app.config.Peers))
	}

	users, err := batch.Load(app.config.UsersFile)
	if err != nil {
		return fmt.Errorf("loading batch: %w", err)
	}

	if _, err := app.orchestrator.Run(ctx, users); err != nil {
		return err
	}

	return nil
}

// promptSecret reads the signing secret from the terminal. There is
// deliberately no built-in default secret.
func promptSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("signing secret is not configured and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Signing secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}

	return string(secret), nil
}
