package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/metrics"
	"github.com/slemay/globedash/internal/notifications"
	"github.com/slemay/globedash/internal/poller"
	"github.com/slemay/globedash/internal/scheduler"
	"github.com/slemay/globedash/internal/store"
	"github.com/slemay/globedash/internal/util"
	"github.com/slemay/globedash/internal/view"
	"github.com/slemay/globedash/internal/web"
)

// Dashboard wires the components together and owns their lifecycle: the
// credential store, the regional poller, the tick scheduler, the metrics
// aggregator, the web server and the notification manager.
type Dashboard struct {
	config   *config.Config
	settings view.Settings

	db            *store.Store
	poller        *poller.Poller
	aggregator    *metrics.Aggregator
	scheduler     *scheduler.Scheduler
	webServer     *web.Server
	notifications *notifications.Manager

	sessionID string
	cancel    context.CancelFunc
	startedAt time.Time
	running   bool

	mu sync.RWMutex
}

func New(cfg *config.Config, settings view.Settings) *Dashboard {
	return &Dashboard{
		config:    cfg,
		settings:  settings,
		sessionID: util.RandomHex(8),
	}
}

func (d *Dashboard) Run() error {
	if err := d.initialize(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	d.setupComponents()

	d.start()

	d.waitForShutdown()

	return nil
}

func (d *Dashboard) initialize() error {
	slog.Info("Initializing globe dashboard",
		"session", d.sessionID,
		"environment", d.config.Environment,
		"regions", len(d.config.ActiveRegions()),
	)

	db, err := store.Open(d.config.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	d.db = db

	credential, err := d.db.Credential()
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	if credential == "" {
		slog.Warn("No access credential stored; upstream polls may be rejected. Set one with -set-password")
	}

	return nil
}

func (d *Dashboard) setupComponents() {
	timeout := time.Duration(d.config.RequestTimeoutSeconds) * time.Second

	d.poller = poller.New(d.config.ActiveRegions(), timeout, func() string {
		credential, err := d.db.Credential()
		if err != nil {
			slog.Error("Failed to read credential from store", "error", err)
			return ""
		}
		return credential
	}, nil)

	d.aggregator = metrics.NewAggregator(metrics.NewHolidayCache(), nil)

	if d.config.Discord.Enabled {
		d.notifications = notifications.NewManager(d.config.Discord)
		if err := d.notifications.Start(context.Background()); err != nil {
			slog.Error("Failed to start notification manager", "error", err)
			d.notifications = nil
		}
	}

	feed := web.NewFeedHub()

	var notifier scheduler.Notifier
	if d.notifications != nil {
		notifier = d.notifications
	}

	d.scheduler = scheduler.New(scheduler.Options{
		Poller:           d.poller,
		Settings:         d.settings,
		Aggregator:       d.aggregator,
		MetricsRefresh:   time.Duration(d.config.MetricsRefreshSeconds) * time.Second,
		FailureThreshold: d.config.RegionFailureThreshold,
		Notifier:         notifier,
		OnBatch:          feed.BroadcastBatch,
	})

	d.webServer = web.NewServer(d.config.Web, d.settings, d.scheduler, feed)
}

func (d *Dashboard) start() {
	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.cancel = cancel
	d.running = true
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.webServer.Start()
	d.webServer.GetStatusBroadcaster().SetStatus(web.StatusPolling, "Starting region polls...")

	d.scheduler.Start(ctx)

	d.webServer.GetStatusBroadcaster().SetStatus(web.StatusRunning,
		fmt.Sprintf("Polling %d regions every %s",
			len(d.config.ActiveRegions()),
			util.FormatDuration(d.scheduler.TickSpeed()),
		),
	)

	slog.Info("Dashboard running",
		"tickSpeed", d.scheduler.TickSpeed(),
		"flightTime", d.scheduler.FlightTime(),
		"metricsRefresh", d.config.MetricsRefreshSeconds,
	)
}

func (d *Dashboard) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutting down...")

	d.stop()
}

func (d *Dashboard) stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	startedAt := d.startedAt
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	d.scheduler.Stop()
	d.webServer.Stop()

	if d.notifications != nil {
		d.notifications.Stop()
	}

	if d.db != nil {
		_ = d.db.Close()
	}

	d.printSessionReport(startedAt)
}

func (d *Dashboard) printSessionReport(startedAt time.Time) {
	current, _ := d.aggregator.Snapshot()

	slog.Info("=== Session Report ===")
	slog.Info("Session stats",
		"uptime", util.FormatDuration(time.Since(startedAt)),
		"purchasesToday", util.FormatNumber(current.Daily.Purchases),
		"addToCartToday", util.FormatNumber(current.Daily.AddToCart),
		"revenueToday", current.Daily.Revenue.StringFixed(2),
	)
	if current.PromoActive {
		slog.Info("Promotional window stats",
			"windowRevenue", current.PromoRevenue.StringFixed(2),
		)
	}
}
