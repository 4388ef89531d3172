// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/spf13/cobra"
)

// serveCmd starts the passkey server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the passkey server",
	Long: `Start the HTTP server hosting the passkey registration and
authentication ceremony endpoints, health check, JWKS, and metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	path := configFile
	if path == "" {
		if envPath := os.Getenv("PASSKEY_CONFIG"); envPath != "" {
			path = envPath
		} else if _, err := os.Stat("/etc/passkey/config.yaml"); err == nil {
			path = "/etc/passkey/config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfg.Logging.NewLogger()
	logger.Info("configuration loaded",
		"config", path,
		"rp_id", cfg.Passkey.RPID,
		"port", cfg.Server.Port)

	var issuer *passkey.JWTIssuer
	if cfg.Session.SigningKeyFile != "" {
		signingKey, err := config.LoadSigningKey(cfg.Session.SigningKeyFile)
		if err != nil {
			return err
		}
		issuer, err = passkey.NewJWTIssuer(&passkey.JWTIssuerConfig{
			PrivateKey: signingKey,
			Issuer:     cfg.Session.Issuer,
			Audience:   cfg.Session.Audience,
			ExpiresIn:  cfg.Session.ExpiresIn,
			KeyID:      cfg.Session.KeyID,
		})
		if err != nil {
			return fmt.Errorf("failed to create session issuer: %w", err)
		}
	} else {
		logger.Warn("no session signing key configured, login will not mint tokens")
	}

	challenges := passkey.NewMemoryChallengeStore()
	stopSweep := challenges.StartCleanupRoutine(context.Background(), cfg.Passkey.ChallengeTTL)
	defer stopSweep()

	params := passkey.ServiceParams{
		Config:     &cfg.Passkey,
		Identities: passkey.NewMemoryIdentityStore(),
		Challenges: challenges,
		Registry:   passkey.NewMemoryCredentialRegistry(),
		Logger:     logger,
	}
	if issuer != nil {
		params.Sessions = issuer
	}
	svc, err := passkey.NewService(params)
	if err != nil {
		return fmt.Errorf("failed to create passkey service: %w", err)
	}

	srv, err := rest.NewServer(rest.ServerParams{
		Config:  cfg,
		Service: svc,
		Issuer:  issuer,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	metrics.SetEnabled(cfg.Metrics.Enabled)
	stopCollector := make(chan struct{})
	if cfg.Metrics.Enabled {
		metrics.StartResourceCollector(15*time.Second, stopCollector)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		close(stopCollector)
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	close(stopCollector)
	if err := srv.Stop(context.Background()); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
