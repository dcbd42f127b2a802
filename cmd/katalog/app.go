package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/classification"
	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/config"
	"github.com/Veraticus/katalog/internal/engine"
	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/pattern"
	"github.com/Veraticus/katalog/internal/similarity"
	"github.com/Veraticus/katalog/internal/storage"
	"github.com/Veraticus/katalog/internal/websearch"
)

// app holds the components a command works with.
type app struct {
	settings *config.Settings
	provider *catalog.Provider
	store    *storage.SQLiteStorage
	cache    *learning.Cache
	rules    *pattern.RuleEngine
	engine   *engine.Engine
}

type appOptions struct {
	// withStore opens the learned mapping database.
	withStore bool
}

func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration", err)
	}
	return settings, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	scorer := similarity.NewScorer(settings.Scoring)
	provider := catalog.NewProvider(
		fileSource(settings.Catalog.Path),
		fileSource(settings.Taxonomy.Path),
		scorer,
	)
	if settings.Catalog.Path == "" {
		slog.Warn("no catalog configured, local search will find nothing", "hint", "set catalog.path or --catalog")
	}

	rules, err := pattern.NewFromFile(settings.Rules.Path)
	if err != nil {
		return nil, common.NewUserError("Failed to load companion rules", err)
	}

	a := &app{
		settings: settings,
		provider: provider,
		rules:    rules,
	}

	deps := engine.Dependencies{
		Catalog: provider,
		Router:  classification.NewRouter(provider, scorer, classification.DefaultOptions()),
		Rules:   rules,
	}

	if settings.ExternalEnabled() {
		client, err := websearch.NewClient(settings.External)
		if err != nil {
			return nil, common.NewUserError("Failed to configure web search", err)
		}
		deps.External = client
	}

	if opts.withStore {
		store, err := initStorage(ctx, settings)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.cache = learning.New(store, settings.Learning)
		deps.Cache = a.cache
	}

	a.engine = engine.New(deps, settings.Matching)
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// warnMode logs when the requested mode cannot be served as asked.
func (a *app) warnMode(mode model.MatchMode) {
	if mode == "" {
		mode = a.engine.Config().Mode
	}
	if !a.settings.ExternalEnabled() && mode != model.ModeLocal && mode != model.ModeAuto {
		slog.Warn("web search is not configured, external candidates will be missing",
			"mode", mode,
			"hint", "set external.api_key or KATALOG_EXTERNAL_API_KEY")
	}
}

func fileSource(path string) catalog.Source {
	if path == "" {
		return nil
	}
	return catalog.FileSource{Path: path}
}

func initStorage(ctx context.Context, settings *config.Settings) (*storage.SQLiteStorage, error) {
	dbPath := settings.Database.Path
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// addContextFlags registers the project context flags used to scope learned
// mappings.
func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().String("project-type", "", "project type (e.g. novostavba, rekonstrukce)")
	cmd.Flags().String("building-type", "", "building type (e.g. rodinný dům)")
	cmd.Flags().String("building-system", "", "building system (e.g. zděný)")
	cmd.Flags().String("structural-system", "", "structural system (e.g. stěnový)")
	cmd.Flags().Int("storeys", 0, "number of above-ground storeys")
}

func projectContext(cmd *cobra.Command) model.ProjectContext {
	var pc model.ProjectContext
	pc.ProjectType, _ = cmd.Flags().GetString("project-type")
	pc.BuildingType, _ = cmd.Flags().GetString("building-type")
	pc.BuildingSystem, _ = cmd.Flags().GetString("building-system")
	pc.StructuralSystem, _ = cmd.Flags().GetString("structural-system")
	pc.Storeys, _ = cmd.Flags().GetInt("storeys")
	return pc
}

// addMatchFlags registers the per-request match overrides.
func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "match mode (auto, local, external, both)")
	cmd.Flags().Int("top", 0, "maximum number of candidates (default from config)")
	cmd.Flags().Float64("min-confidence", -1, "minimum candidate confidence (default from config)")
	cmd.Flags().Bool("no-classify", false, "skip taxonomy classification")
	cmd.Flags().Bool("no-cache", false, "ignore learned mappings")
}

// matchRequest builds a request from the match flags.
func matchRequest(cmd *cobra.Command, text, sectionHint string) (model.MatchRequest, error) {
	req := model.MatchRequest{
		Text:        text,
		SectionHint: sectionHint,
		Context:     projectContext(cmd),
	}

	mode, _ := cmd.Flags().GetString("mode")
	req.Mode = model.MatchMode(strings.ToLower(strings.TrimSpace(mode)))
	if req.Mode != "" && !req.Mode.Valid() {
		return req, common.NewUserError(
			fmt.Sprintf("Unknown mode %q, use auto, local, external or both", mode),
			common.ErrInvalidConfig)
	}

	req.TopN, _ = cmd.Flags().GetInt("top")
	if cmd.Flags().Changed("min-confidence") {
		minConf, _ := cmd.Flags().GetFloat64("min-confidence")
		if minConf <= 0 || minConf > 1 {
			return req, common.NewUserError("--min-confidence must be greater than 0 and at most 1", common.ErrInvalidConfig)
		}
		req.MinConfidence = minConf
	}
	if noClassify, _ := cmd.Flags().GetBool("no-classify"); noClassify {
		classify := false
		req.ClassifyFirst = &classify
	}
	req.SkipCache, _ = cmd.Flags().GetBool("no-cache")
	return req, nil
}

// requireCatalog fails when a command needs catalog data that did not load.
func (a *app) requireCatalog() error {
	if a.settings.Catalog.Path == "" {
		return common.NewUserError("No catalog configured; set catalog.path or pass --catalog", common.ErrCatalogNotLoaded)
	}
	a.provider.Load(context.Background())
	if catalogErr, _ := a.provider.Err(); catalogErr != nil {
		return common.NewUserError("Failed to load the catalog", errors.Join(common.ErrCatalogNotLoaded, catalogErr))
	}
	return nil
}
