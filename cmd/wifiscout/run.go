package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wifiscout/internal/config"
	"wifiscout/internal/connect"
	"wifiscout/internal/discovery"
	"wifiscout/internal/handler"
	"wifiscout/internal/hub"
	"wifiscout/internal/loader"
	"wifiscout/internal/netif"
	"wifiscout/internal/orchestrator"
	"wifiscout/internal/preflight"
	"wifiscout/internal/repository/sqlite"
	"wifiscout/internal/scan"
	"wifiscout/internal/service"
	"wifiscout/internal/status"
	"wifiscout/internal/watcher"
)

type runFlags struct {
	iface         string
	addr          string
	noWeb         bool
	feedURL       string
	markPolicy    string
	joinFailure   string
	legacySlash24 bool
	artifactDir   string
	dataDir       string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scan daemon and file browser",
	Long: `Start polling the discovery feed, join candidate networks one at a
time, scan them, and serve the file browser. Flags override the config file
and the environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunFlags(cmd, cfg, runOpts); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, cfg, rootLogger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runOpts.iface, "interface", "i", "", "wireless interface used for joining and scanning")
	f.StringVar(&runOpts.addr, "addr", "", "file browser listen address")
	f.BoolVar(&runOpts.noWeb, "no-web", false, "do not start the file browser")
	f.StringVar(&runOpts.feedURL, "feed-url", "", "bettercap REST API base URL")
	f.StringVar(&runOpts.markPolicy, "mark-policy", "", "mark-always or mark-on-success")
	f.StringVar(&runOpts.joinFailure, "join-failure", "", "retry or mark")
	f.BoolVar(&runOpts.legacySlash24, "legacy-slash24", false, "always scan the /24 around the address")
	f.StringVar(&runOpts.artifactDir, "artifact-dir", "", "directory for scan artifacts")
	f.StringVar(&runOpts.dataDir, "data-dir", "", "directory for the skip list and known networks")
}

// applyRunFlags copies explicitly set flags over the loaded config
func applyRunFlags(cmd *cobra.Command, c *config.Config, o runFlags) error {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("interface") {
		c.Interface = o.iface
	}
	if set("addr") {
		c.Web.Addr = o.addr
	}
	if set("no-web") {
		c.Web.Disabled = o.noWeb
	}
	if set("feed-url") {
		c.Discovery.URL = o.feedURL
	}
	if set("mark-policy") {
		c.Policy.MarkPolicy = o.markPolicy
	}
	if set("join-failure") {
		c.Policy.JoinFailurePolicy = o.joinFailure
	}
	if set("legacy-slash24") {
		c.Policy.LegacySlash24 = o.legacySlash24
	}
	if set("artifact-dir") {
		c.Paths.ArtifactDir = o.artifactDir
	}
	if set("data-dir") {
		c.Paths.DataDir = o.dataDir
	}
	return c.Validate()
}

// runDaemon wires every component and blocks until ctx is cancelled
func runDaemon(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	log.Info("Starting wifiscout...")
	if cfgPath != "" {
		log.WithField("path", cfgPath).Info("Config loaded")
	}
	log.Debug(cfg.Summary())

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	log.WithField("path", cfg.Database.Path).Info("Database opened")

	eventBus := service.NewEventBus()
	history := service.NewHistoryService(repo, eventBus, log)
	reporter := status.NewReporter(eventBus)

	sseHub := hub.New(log)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go sseHub.Run(hubCtx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go sseHub.Forward(hubCtx, eventChan)
	reporter.Set(status.Searching)

	creds := loader.LoadCredentials(loader.Paths{
		SkipList:      cfg.SkipListPath(),
		KnownNetworks: cfg.KnownNetworksPath(),
	}, log)

	monitor := netif.NewMonitor(cfg.Paths.SysClassNet)
	report := preflight.New(monitor.Present).Run(ctx, preflightInput(cfg), log)
	if failed := report.Failed(); len(failed) > 0 {
		log.WithField("failed", len(failed)).Warn("Preflight found problems; joins or scans may fail")
	}

	runner := netif.NewExecRunner(cfg.Timing.CommandTimeout.Duration())

	connector := connect.NewManager(runner, monitor, log,
		connect.WithTools(connect.Tools{
			WPASupplicant: cfg.Tools.WPASupplicant,
			DHClient:      cfg.Tools.DHClient,
			IP:            cfg.Tools.IP,
			Pkill:         cfg.Tools.Pkill,
		}),
		connect.WithRuntimeDir(cfg.Paths.RuntimeDir),
		connect.WithSettle(cfg.Timing.Settle.Duration(), cfg.Timing.SettlePoll.Duration()),
		connect.WithLinkCyclePause(cfg.Timing.LinkCyclePause.Duration()),
	)

	scanner := scan.NewRunner(monitor, scan.NewNmapEngine(cfg.Tools.Nmap, log), cfg.Paths.ArtifactDir, log,
		scan.WithTimeout(cfg.Timing.ScanTimeout.Duration()),
		scan.WithLegacySlash24(cfg.Policy.LegacySlash24),
	)

	orch, err := orchestrator.New(orchestrator.Config{
		Interface:         cfg.Interface,
		MarkPolicy:        cfg.MarkPolicy(),
		JoinFailurePolicy: cfg.JoinFailurePolicy(),
		CleanupTimeout:    cfg.Timing.CommandTimeout.Duration() * 3,
	}, orchestrator.Deps{
		Credentials: creds,
		Presence:    monitor,
		Connector:   connector,
		Scanner:     scanner,
		Status:      reporter,
		History:     history,
		Events:      eventBus,
	}, log)
	if err != nil {
		return err
	}
	orch.Start(ctx)

	source := discovery.NewBettercapSource(cfg.Discovery.URL, cfg.Discovery.Username, cfg.Discovery.Password, 0)
	poller := discovery.NewPoller(source, orch.HandleAccessPoints, cfg.Discovery.PollInterval.Duration(), log)
	poller.Start(ctx)

	folders := []handler.Folder{
		{Name: "files", Dir: cfg.Paths.DataDir},
		{Name: "scans", Dir: cfg.Paths.ArtifactDir},
		{Name: "handshakes", Dir: cfg.Paths.HandshakesDir},
	}

	var wg sync.WaitGroup
	watched := make(map[string]string, len(folders))
	for _, f := range folders {
		watched[f.Name] = f.Dir
	}
	w := watcher.New(watched, func(folder, path string) {
		eventBus.Publish(service.Event{
			Type:    service.EventArtifactCreated,
			Payload: map[string]string{"folder": folder, "path": path},
		})
	}, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("Watcher stopped")
		}
	}()

	var server *http.Server
	if !cfg.Web.Disabled {
		browser := handler.NewBrowser(folders, reporter, log)
		api := handler.NewAPIHandler(cfg.Interface, reporter, orch, history, log)
		server = &http.Server{
			Addr:         cfg.Web.Addr,
			Handler:      handler.Chain(handler.NewMux(browser, api, sseHub), handler.Recover(log), handler.Logger(log)),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // SSE and zip downloads stream
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.WithField("addr", cfg.Web.Addr).Info("File browser listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("File browser failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	poller.Stop()
	orch.Close()
	reporter.Set(status.Searching)
	wg.Wait()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hubCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("File browser shutdown error")
		}
	}

	log.WithField("scanned", len(orch.Snapshot().Scanned)).Info("Stopped")
	return nil
}
