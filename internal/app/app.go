// Package app assembles the analysis pipeline and its optional history store
// from configuration. Both the HTTP server and the CLI start from here.
package app

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/database"
	"github.com/stwalsh4118/parcelbrief/internal/geocoder"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/registry"
	"github.com/stwalsh4118/parcelbrief/internal/report"
	"github.com/stwalsh4118/parcelbrief/internal/repository"
	"github.com/stwalsh4118/parcelbrief/internal/services"
)

// App holds the wired services. History and DB are nil when analysis
// history is disabled.
type App struct {
	Analysis services.AnalysisService
	History  services.HistoryService
	DB       *database.Database
}

// New wires the pipeline. With history enabled it connects to PostgreSQL
// and ensures the schema exists; a connection failure is returned.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{}

	var history repository.AnalysisRepository
	if cfg.History.Enabled {
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to history database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}

		log.Info("Analysis history enabled", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		history = repository.NewAnalysisRepository(db)
		a.DB = db
		a.History = services.NewHistoryService(history, log)
	}

	warnMissingKeys(cfg, log)

	sources := services.Sources{
		Land:     registry.NewLandLedger(cfg.Registry, log),
		Building: registry.NewBuildingLedger(cfg.Registry, log),
		Feature:  registry.NewFeatureService(cfg.Feature, log),
	}

	a.Analysis = services.NewAnalysisService(
		geocoder.NewKakaoGeocoder(cfg.Geocoder, log),
		sources,
		report.NewRequesterFromConfig(ctx, cfg.Report, log),
		history,
		log,
	)

	return a, nil
}

// Close releases the history database pool, if any.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// warnMissingKeys logs each unset upstream credential once at startup.
// The affected sources still run and degrade to placeholders.
func warnMissingKeys(cfg *config.Config, log *logger.Logger) {
	keys := map[string]string{
		"KAKAO_REST_API_KEY":  cfg.Geocoder.APIKey,
		"LAND_LEDGER_KEY":     cfg.Registry.LandKey,
		"BUILDING_LEDGER_KEY": cfg.Registry.BuildingKey,
		"VWORLD_KEY":          cfg.Feature.APIKey,
	}
	for name, value := range keys {
		if value == "" {
			log.Warn("Credential not configured", map[string]interface{}{"env": name})
		}
	}
}
