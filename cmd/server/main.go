// Package main is the entry point for the CollabGrow API server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (.env and environment)
//  2. Create the long-lived dependencies (logger, store, verifier, mailer)
//  3. Start the server
//
// STARTUP GATE:
// The store is connected and pinged before the router exists. If it cannot
// be reached the process exits with status 1 and never opens a listener,
// so no request is ever served against a store that isn't there.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/collabgrow/collabgrow/internal/auth"
	"github.com/collabgrow/collabgrow/internal/config"
	"github.com/collabgrow/collabgrow/internal/mail"
	"github.com/collabgrow/collabgrow/internal/repository"
	"github.com/collabgrow/collabgrow/internal/repository/mongo"
	"github.com/collabgrow/collabgrow/internal/repository/sqlite"
	"github.com/collabgrow/collabgrow/internal/server"
)

const startupTimeout = 20 * time.Second

func main() {
	// === 1. CONFIGURATION AND LOGGING ===
	// Load logs a missing .env before the real logger exists, so it gets a
	// plain stdout logger.
	cfg := config.Load(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	logger := cfg.NewLogger()

	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// === 2. IDENTITY ===
	// The service-account file is required even though token verification
	// only needs public keys: it pins the project the tokens must belong to.
	account, err := auth.LoadServiceAccount(ctx, cfg.CredentialsFile)
	if err != nil {
		fatal(logger, "failed to load service account", err)
	}
	projectID := account.ProjectID
	if cfg.FirebaseProjectID != "" {
		projectID = cfg.FirebaseProjectID
	}

	keys := auth.NewCertKeySource(auth.GoogleCertsURL, &http.Client{Timeout: 10 * time.Second})
	verifier, err := auth.NewFirebaseVerifier(projectID, keys)
	if err != nil {
		fatal(logger, "failed to create token verifier", err)
	}

	// === 3. STORE (startup gate) ===
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "failed to connect to store", err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close(context.Background())
		fatal(logger, "store is not reachable", err)
	}
	logger.Info("store connected", slog.String("driver", cfg.StoreDriver))

	// === 4. MAIL ===
	var mailer mail.Mailer = mail.Disabled{}
	if cfg.Mail.Enabled() {
		smtpMailer, err := mail.NewSMTPMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, logger)
		if err != nil {
			_ = store.Close(context.Background())
			fatal(logger, "invalid mail relay configuration", err)
		}
		mailer = smtpMailer
	} else {
		logger.Warn("MAIL_USER/MAIL_PASS not set, join requests will fail")
	}

	// === 5. SERVE ===
	srv, err := server.New(cfg, server.Deps{Store: store, Verifier: verifier, Mailer: mailer}, logger)
	if err != nil {
		_ = store.Close(context.Background())
		fatal(logger, "failed to create server", err)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		fatal(logger, "server error", err)
	}
}

// openStore connects the configured document store backend.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	case config.DriverSQLite:
		// os.MkdirAll is `mkdir -p`: the data directory may not exist yet.
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return sqlite.New(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
