package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"ocpi/internal/broadcast"
	"ocpi/internal/bus"
	"ocpi/internal/cache"
	"ocpi/internal/commands"
	"ocpi/internal/db"
	"ocpi/internal/dispatch"
	"ocpi/internal/gatewayclient"
	"ocpi/internal/httpapi"
	"ocpi/internal/logging"
	"ocpi/internal/partnerclient"
	"ocpi/internal/repo"
	"ocpi/internal/services"
	"ocpi/internal/tokens"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var runMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the partner API and the change-event broadcaster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runMigrations {
				if err := migrateUp(a.cfg.Database, a.log); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply migrations before starting")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	d, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer d.Close()

	c, err := cache.Open(ctx, cfg.Redis.URL, cfg.Redis.Namespace)
	if err != nil {
		return err
	}
	defer c.Close()

	nc, err := bus.Connect(cfg.NATS, log)
	if err != nil {
		return err
	}
	defer nc.Close()

	var (
		authorizations = repo.NewAuthorizationsRepo(d.Pool)
		partners       = repo.NewPartnersRepo(d.Pool)
		stations       = repo.NewChargersRepo(d.Pool)
		state          = repo.NewStateRepo(d.Pool)
		events         = repo.NewEventsRepo(d.Pool)
		sessions       = repo.NewSessionsRepo(d.Pool)
		sites          = repo.NewSitesRepo(d.Pool)
		tariffs        = repo.NewTariffsRepo(d.Pool)
		cdrs           = repo.NewCdrsRepo(d.Pool)
		commandLog     = repo.NewCommandsRepo(d.Pool)
	)

	tokenService := tokens.NewService(authorizations, log.With("component", "tokens"))
	authRefs := cache.NewAuthReferences(c, cfg.Commands.AuthReferenceTTL)
	pusher := partnerclient.New(cfg.Partner.PushTimeout, log.With("component", "partnerclient"))
	gateway := gatewayclient.New(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)

	runner := commands.NewRunner(log.With("component", "commands"), cfg.Commands.ExecutionTimeout)
	pipeline := &commands.Pipeline{
		Stations:     stations,
		Evses:        sites,
		Connectors:   state,
		Transactions: sessions,
		Tokens:       tokenService,
		References:   authRefs,
		Executor:     commands.NewGatewayExecutor(commandLog, gateway, pusher, log.With("component", "executor")),
		Runner:       runner,
		Timeout:      cfg.Commands.ResponseTimeout,
		Log:          log.With("component", "commands"),
	}

	costs := services.NewCostCalculator(tariffs, events, state, log.With("component", "pricing"))
	orchestrator := &broadcast.Orchestrator{
		Transactions:   sessions,
		References:     authRefs,
		Authorizations: tokenService,
		Partners:       partners,
		Sites:          sites,
		Stations:       stations,
		Connectors:     state,
		Tariffs:        tariffs,
		Cdrs:           services.NewCdrService(cdrs, costs),
		Pusher:         pusher,
		Log:            log.With("component", "broadcast"),
	}
	registry := dispatch.NewRegistry()
	orchestrator.Register(registry)
	dispatcher := dispatch.NewDispatcher(registry, log.With("component", "dispatch"))

	sub := bus.NewSubscriber(nc, cfg.NATS.Subject, cfg.NATS.Queue, dispatcher, log.With("component", "bus"))
	if err := sub.Start(ctx); err != nil {
		return err
	}

	api := httpapi.NewServer(partners, pipeline, tokenService, cdrs, log.With("component", "httpapi"))
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ocpi listening", "addr", cfg.Server.ListenAddr, "registered_handlers", registry.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", logging.Error(err))
	}
	if err := sub.Stop(); err != nil {
		log.Error("drain subscription", logging.Error(err))
	}
	runner.Wait()
	log.Info("shutdown complete")
	return nil
}
