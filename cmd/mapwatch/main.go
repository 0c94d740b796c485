// Command mapwatch drives the marker sync engine against a running API. It
// pans a simulated viewport, lets the engine fetch and reconcile, and
// reports what ends up on the map.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crimemap/internal/auth"
	"crimemap/internal/client"
	"crimemap/internal/config"
	"crimemap/internal/logger"
	"crimemap/internal/markersync"
	"crimemap/internal/models"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

type globals struct {
	cfg  *config.Config
	logr *logger.Logger
}

type cli struct {
	Watch watchCmd `cmd:"" help:"Pan a simulated viewport and keep markers in sync."`
	Token tokenCmd `cmd:"" help:"Sign an importer token for the import endpoint."`
}

type watchCmd struct {
	API     string        `help:"API base URL. Defaults to API_BASE_URL."`
	Lat     float64       `help:"Initial viewport centre latitude." default:"-23.55"`
	Lng     float64       `help:"Initial viewport centre longitude." default:"-46.63"`
	Span    float64       `help:"Viewport height and width in degrees." default:"0.1"`
	Steps   int           `help:"Number of pans." default:"5"`
	StepLat float64       `help:"Latitude moved per pan." default:"0.02"`
	StepLng float64       `help:"Longitude moved per pan." default:"0.02"`
	Pause   time.Duration `help:"Pause between pans." default:"500ms"`
	From    string        `help:"First day of the date filter (YYYY-MM-DD)." default:"2000-01-01"`
	To      string        `help:"Last day of the date filter (YYYY-MM-DD). Defaults to today."`
	Refetch bool          `help:"Fetch again after every filter change."`
	Level   int           `help:"s2 level used to cluster markers." default:"11"`
	Top     int           `help:"Number of clusters to log." default:"5"`
	GeoJSON string        `name:"geojson" help:"Write the final markers as GeoJSON to this file." type:"path"`
}

func (w *watchCmd) Run(g *globals) error {
	logr := g.logr.Component("mapwatch")

	start, end, err := w.dateRange()
	if err != nil {
		return err
	}

	baseURL := w.API
	if baseURL == "" {
		baseURL = g.cfg.APIBaseURL
	}
	api := client.New(baseURL, g.cfg.FetchTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	categories, err := api.Categories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	logr.Info("loaded taxonomy",
		zap.Int("categories", len(categories)),
		zap.Int("subcategories", len(models.SubcategoryIDs(categories))))

	filters := markersync.NewFilterState(markersync.NewFilter(models.SubcategoryIDs(categories), start, end))

	layer := markersync.NewClusterLayer()
	if err := layer.SetView(w.viewport(0)); err != nil {
		return err
	}

	engine, err := markersync.New(markersync.Options{
		Fetcher:               api,
		Surface:               layer,
		Filters:               filters,
		Logger:                g.logr.Component("markersync"),
		SettleInterval:        g.cfg.SettleInterval,
		FetchTimeout:          g.cfg.FetchTimeout,
		RefetchOnFilterChange: w.Refetch,
	})
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Close()

	for step := 1; step <= w.Steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.Pause):
		}
		if err := layer.SetView(w.viewport(step)); err != nil {
			return err
		}
		st := engine.Stats()
		logr.Info("panned",
			zap.Int("step", step),
			zap.Int("cached", st.Cached),
			zap.Int("markers", layer.Stats().Markers),
			zap.Int("visible", len(layer.Visible())))
	}

	// Let the last move settle before reporting.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.cfg.SettleInterval + 50*time.Millisecond):
	}
	engine.Wait()

	w.report(logr, engine, layer)

	if w.GeoJSON != "" {
		raw, err := layer.FeatureCollection().MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode geojson: %w", err)
		}
		if err := os.WriteFile(w.GeoJSON, raw, 0o644); err != nil {
			return fmt.Errorf("write geojson: %w", err)
		}
		logr.Info("wrote geojson", zap.String("path", w.GeoJSON))
	}
	return nil
}

func (w *watchCmd) dateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(models.DateLayout, w.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
	}
	end := time.Now().UTC()
	if w.To != "" {
		if end, err = time.Parse(models.DateLayout, w.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", w.To, w.From)
	}
	return start, end, nil
}

func (w *watchCmd) viewport(step int) models.Bounds {
	lat := w.Lat + float64(step)*w.StepLat
	lng := w.Lng + float64(step)*w.StepLng
	half := w.Span / 2
	return models.Bounds{
		North: lat + half,
		South: lat - half,
		East:  lng + half,
		West:  lng - half,
	}
}

func (w *watchCmd) report(logr *zap.Logger, engine *markersync.Engine, layer *markersync.ClusterLayer) {
	st := engine.Stats()
	ls := layer.Stats()
	logr.Info("sync finished",
		zap.Stringer("state", st.State),
		zap.Int("cached", st.Cached),
		zap.Int64("fetches", st.Fetches),
		zap.Int64("fetch_failures", st.FetchFailures),
		zap.Int64("reconciles", st.Reconciles),
		zap.Int("markers", ls.Markers),
		zap.Int("add_batches", ls.AddBatches),
		zap.Int("remove_batches", ls.RemoveBatches))

	clusters := layer.Clusters(w.Level)
	if len(clusters) > w.Top {
		clusters = clusters[:w.Top]
	}
	for _, c := range clusters {
		logr.Info("cluster",
			zap.String("cell", c.Cell.ToToken()),
			zap.Int("count", c.Count),
			zap.Float64("lat", c.Latitude),
			zap.Float64("lng", c.Longitude))
	}
}

type tokenCmd struct {
	Subject string        `help:"Token subject." default:"importer"`
	TTL     time.Duration `help:"Token lifetime. Defaults to ACCESS_TOKEN_MINUTES."`
}

func (t *tokenCmd) Run(g *globals) error {
	mgr, err := auth.NewJWTManager(g.cfg.JWTPrivateKeyPath, g.cfg.JWTPublicKeyPath, auth.Issuer)
	if err != nil {
		return err
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = g.cfg.AccessTokenTTL
	}
	token, exp, err := mgr.IssueToken(t.Subject, []string{auth.RoleImporter}, ttl)
	if err != nil {
		return err
	}
	g.logr.Component("mapwatch").Info("issued token",
		zap.String("subject", t.Subject), zap.Time("expires_at", exp))
	fmt.Println(token)
	return nil
}

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("mapwatch"),
		kong.Description("Keep crime map markers in sync with a moving viewport."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(&globals{cfg: cfg, logr: logr}); err != nil {
		logr.Error("command failed", zap.Error(err))
		logr.Sync()
		os.Exit(1)
	}
}
