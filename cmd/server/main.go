package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kylejeon/testflow/internal/api"
	"github.com/kylejeon/testflow/internal/app"
	"github.com/kylejeon/testflow/internal/app/maintenance"
	"github.com/kylejeon/testflow/internal/auth"
	"github.com/kylejeon/testflow/internal/database"
	"github.com/kylejeon/testflow/internal/realtime"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/internal/storage"
	"github.com/kylejeon/testflow/pkg/logger"
	"github.com/kylejeon/testflow/pkg/mail"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "testflow:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return err
	}
	sessionService, err := auth.NewSessionService(db, jwtService, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return err
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return err
	}

	store, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		return err
	}

	userService, err := services.NewUserService(db)
	if err != nil {
		return err
	}
	projectService, err := services.NewProjectService(db)
	if err != nil {
		return err
	}
	membershipService, err := services.NewMembershipService(db)
	if err != nil {
		return err
	}
	invitationService, err := services.NewInvitationService(db, mailer,
		services.WithInviteBaseURL(cfg.Server.BaseURL),
		services.WithInviteExpiry(cfg.Invites.Expiry),
	)
	if err != nil {
		return err
	}
	caseService, err := services.NewTestCaseService(db)
	if err != nil {
		return err
	}
	folderService, err := services.NewFolderService(db)
	if err != nil {
		return err
	}
	milestoneService, err := services.NewMilestoneService(db)
	if err != nil {
		return err
	}
	runService, err := services.NewRunService(db, caseService)
	if err != nil {
		return err
	}
	testSessionService, err := services.NewTestSessionService(db)
	if err != nil {
		return err
	}
	documentService, err := services.NewDocumentService(db)
	if err != nil {
		return err
	}

	cleaner, err := maintenance.NewCleaner(db, sessionService)
	if err != nil {
		return err
	}
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}
	defer cleaner.Stop()

	router := api.NewRouter(api.Dependencies{
		DB:          db,
		JWT:         jwtService,
		Sessions:    sessionService,
		Users:       userService,
		Projects:    projectService,
		Members:     membershipService,
		Invitations: invitationService,
		Cases:       caseService,
		Folders:     folderService,
		Milestones:  milestoneService,
		Runs:        runService,
		TestSess:    testSessionService,
		Documents:   documentService,
		Store:       store,
		Hub:         realtime.NewHub(cfg.Server.AllowedOrigins...),

		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
