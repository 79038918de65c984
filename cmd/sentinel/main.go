// Sentinel ingests device telemetry over MQTT, evaluates threshold rules,
// and serves the resulting alerts over a REST API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sentinel-iot/sentinel/internal/alerts"
	"github.com/sentinel-iot/sentinel/internal/api"
	"github.com/sentinel-iot/sentinel/internal/conf"
	"github.com/sentinel-iot/sentinel/internal/datastore"
	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
	"github.com/sentinel-iot/sentinel/internal/ingest"
	"github.com/sentinel-iot/sentinel/internal/logger"
	"github.com/sentinel-iot/sentinel/internal/monitor"
	"github.com/sentinel-iot/sentinel/internal/rules"
	"github.com/sentinel-iot/sentinel/internal/telemetry"
)

const shutdownGrace = 10 * time.Second

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Multi-tenant IoT telemetry and alerting service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("sentinel exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(settings.Log.Level, settings.Log.Pretty)
	log := logger.WithComponent("main")

	db, err := datastore.Open(settings.Database)
	if err != nil {
		return err
	}

	tenantRepo := repository.NewTenantRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	eventRepo := repository.NewTelemetryEventRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	if err := seedTenants(ctx, tenantRepo, settings.Tenants); err != nil {
		return err
	}

	store := alerts.NewStore(alertRepo)
	ruleset := rules.FromConfig(settings.Rules)
	log.Info().Int("rules", ruleset.Len()).Int("tenants", len(settings.Tenants)).Msg("configuration loaded")

	coordinator := ingest.NewCoordinator(
		ingest.NewMQTTTransport(settings.MQTT),
		telemetry.NewDecoder(settings.MQTT.TopicPrefix, settings.Ingest.MaxClockSkew.Std()),
		ruleset,
		deviceRepo,
		eventRepo,
		store,
		settings.MQTT.TopicPrefix,
	)
	settings.OnRuleChange(func(fresh *conf.Settings) {
		coordinator.ReplaceRules(rules.FromConfig(fresh.Rules))
	})

	controller := api.NewController(store, tenantRepo, deviceRepo)

	group, groupCtx := errgroup.WithContext(ctx)

	if err := coordinator.Start(groupCtx); err != nil {
		return err
	}

	group.Go(func() error {
		return controller.Start(settings.HTTP.Addr)
	})

	if settings.Monitor.Enabled {
		mon := monitor.New(deviceRepo, store, settings.Monitor)
		group.Go(func() error {
			err := mon.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info().Msg("shutting down")

		coordinator.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return controller.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func seedTenants(ctx context.Context, repo repository.TenantRepository, seeds []conf.TenantSeed) error {
	if len(seeds) == 0 {
		return nil
	}
	tenants := make([]entities.Tenant, 0, len(seeds))
	for _, seed := range seeds {
		tenants = append(tenants, entities.Tenant{
			ID:     seed.ID,
			Name:   seed.Name,
			APIKey: seed.APIKey,
			Active: true,
		})
	}
	return repo.Seed(ctx, tenants)
}
