package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nerrad567/gray-logic-rulewalk/internal/audit"
	"github.com/nerrad567/gray-logic-rulewalk/internal/host"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rulewalk/internal/openhab"
	"github.com/nerrad567/gray-logic-rulewalk/internal/rules"
	"github.com/nerrad567/gray-logic-rulewalk/internal/walker"
)

// errLocalOnly is returned by commands that manage the local registry when
// the openhab backend is configured.
var errLocalOnly = errors.New("command requires registry.backend: local")

// app holds the wired components for one CLI invocation.
type app struct {
	cfg *config.Config
	log *logging.Logger

	db      *database.DB
	locator *host.Locator
	audit   *audit.SQLiteRepository

	// local is set for the local backend only.
	local *rules.LocalRegistry

	// bus and metrics are nil when disabled or unreachable.
	bus     *mqtt.Client
	metrics *influxdb.Client
}

// loadConfig resolves the configuration path and loads it. A missing file at
// the default path falls back to built-in defaults; an explicit path must exist.
func loadConfig(path string) (*config.Config, string, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("RULEWALK_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
		explicit = false
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
		if err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}

// newApp opens the database, connects the optional bus and metrics clients
// and registers the rule registry provider with the locator.
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = db

	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	a.audit = audit.NewSQLiteRepository(db.DB)

	a.connectBus()
	a.connectMetrics()

	a.locator = host.NewLocator()
	a.locator.SetLogger(log)
	switch cfg.Registry.Backend {
	case config.BackendLocal:
		a.local = a.newLocalRegistry()
		a.locator.Register(cfg.Registry.Service, func(ctx context.Context) (any, error) {
			if err := a.local.RefreshCache(ctx); err != nil {
				return nil, err
			}
			return a.local, nil
		})
	default:
		a.locator.Register(cfg.Registry.Service, a.openHABProvider)
	}

	return a, nil
}

func (a *app) connectBus() {
	client, err := mqtt.Connect(a.cfg.MQTT)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		return
	case err != nil:
		a.log.Warn("mqtt unavailable, bus events disabled", "error", err)
		return
	}
	client.SetLogger(a.log)
	a.bus = client
	a.log.Info("mqtt connected", "broker", a.cfg.MQTT.Broker.Host)
}

func (a *app) connectMetrics() {
	client, err := influxdb.Connect(a.cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		return
	case err != nil:
		a.log.Warn("influxdb unavailable, step metrics disabled", "error", err)
		return
	}
	client.SetOnError(func(err error) {
		a.log.Warn("influxdb write failed", "error", err)
	})
	a.metrics = client
	a.log.Info("influxdb connected", "url", a.cfg.InfluxDB.URL, "bucket", a.cfg.InfluxDB.Bucket)
}

func (a *app) newLocalRegistry() *rules.LocalRegistry {
	var dispatcher rules.Dispatcher
	if a.bus != nil {
		dispatcher = rules.NewMQTTDispatcher(a.bus, mqtt.Topics{}.RuleRun)
	}
	reg := rules.NewLocalRegistry(rules.NewSQLiteRepository(a.db.DB), dispatcher)
	reg.SetLogger(a.log)
	return reg
}

func (a *app) openHABProvider(ctx context.Context) (any, error) {
	client, err := openhab.NewClient(a.cfg.OpenHAB)
	if err != nil {
		return nil, err
	}
	client.SetLogger(a.log)
	if err := client.WaitReady(ctx, a.cfg.OpenHAB.ReadyTimeout); err != nil {
		return nil, err
	}
	return client, nil
}

// registry resolves the rule registry through the locator.
func (a *app) registry(ctx context.Context) (rules.Registry, error) {
	reg, err := host.LookupAs[rules.Registry](ctx, a.locator, a.cfg.Registry.Service)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// newWalker builds a walker with every available observer attached.
func (a *app) newWalker(opts walker.Options, userID string) *walker.Walker {
	w := walker.New(a.locator, a.cfg.Registry.Service, opts)
	w.SetLogger(a.log)

	observers := walker.Observers{
		walker.NewLogObserver(a.log),
		audit.NewObserver(a.audit, userID, a.log),
	}
	if a.bus != nil {
		observers = append(observers, walker.NewBusObserver(a.bus, mqtt.Topics{}.WalkEvent, a.log))
	}
	if a.metrics != nil {
		observers = append(observers, walker.NewMetricsObserver(a.metrics))
	}
	w.SetObserver(observers)
	return w
}

// Health states reported by healthCheck.
const (
	healthUp       = "up"
	healthDown     = "down"
	healthDisabled = "disabled"
)

type healthResult struct {
	Component string `json:"component"`
	State     string `json:"state"`
	Detail    string `json:"detail,omitempty"`
}

// healthCheck probes every wired component. Optional services that are
// disabled in config are reported but never count as down.
func (a *app) healthCheck(ctx context.Context) []healthResult {
	check := func(name string, err error) healthResult {
		if err != nil {
			return healthResult{Component: name, State: healthDown, Detail: err.Error()}
		}
		return healthResult{Component: name, State: healthUp}
	}

	results := []healthResult{check("database", a.db.HealthCheck(ctx))}

	_, err := a.registry(ctx)
	registry := check("registry", err)
	if err == nil {
		registry.Detail = a.cfg.Registry.Backend
	}
	results = append(results, registry)

	switch {
	case !a.cfg.MQTT.Enabled:
		results = append(results, healthResult{Component: "mqtt", State: healthDisabled})
	case a.bus == nil:
		results = append(results, check("mqtt", mqtt.ErrNotConnected))
	default:
		results = append(results, check("mqtt", a.bus.HealthCheck(ctx)))
	}

	switch {
	case !a.cfg.InfluxDB.Enabled:
		results = append(results, healthResult{Component: "influxdb", State: healthDisabled})
	case a.metrics == nil:
		results = append(results, check("influxdb", influxdb.ErrNotConnected))
	default:
		results = append(results, check("influxdb", a.metrics.HealthCheck(ctx)))
	}

	return results
}

// recordAction writes an audit row for a single-rule command.
func (a *app) recordAction(ctx context.Context, action, uid, userID string, details map[string]any) {
	entry := &audit.Entry{
		Action:     action,
		EntityType: audit.EntityTypeRule,
		EntityID:   uid,
		UserID:     userID,
		Source:     audit.SourceRulewalk,
		Details:    details,
	}
	if err := a.audit.Create(context.WithoutCancel(ctx), entry); err != nil {
		a.log.Warn("writing audit entry failed", "action", action, "rule_uid", uid, "error", err)
	}
}

// Close releases every connection, logging failures.
func (a *app) Close() {
	if a.metrics != nil {
		a.metrics.Close() //nolint:errcheck // flush-and-close, never fails
	}
	if a.bus != nil {
		a.bus.Close() //nolint:errcheck // graceful disconnect, never fails
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("error closing database", "error", err)
		}
	}
}
