package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/tugtainer/pkg/config"
	"github.com/cuemby/tugtainer/pkg/engine"
	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/hostregistry"
	"github.com/cuemby/tugtainer/pkg/leader"
	"github.com/cuemby/tugtainer/pkg/log"
	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/notifier"
	"github.com/cuemby/tugtainer/pkg/operator"
	"github.com/cuemby/tugtainer/pkg/progress"
	"github.com/cuemby/tugtainer/pkg/schedule"
	"github.com/cuemby/tugtainer/pkg/store"
	"github.com/cuemby/tugtainer/pkg/types"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tugtainer-controller",
	Short: "tugtainer controller: scheduled container update checks across fleets of hosts",
	Long: `tugtainer-controller runs the periodic check/update cycle against every
enabled host, tracks progress and policy in a local store, and dispatches
notifications on completion. Pair it with tugtainer-agent running on each
monitored host.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("tugtainer-controller version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller: scheduler, leader election, operator surface, and metrics endpoint",
	RunE:  runController,
}

func init() {
	runCmd.Flags().String("config", "", "Path to the settings YAML file (optional; env vars can supply everything)")
	runCmd.Flags().String("data-dir", "/var/lib/tugtainer", "Directory for the bolt store and raft state")
	runCmd.Flags().String("node-id", "", "Cluster node id for raft leader election (required unless --standalone)")
	runCmd.Flags().String("raft-bind-addr", "127.0.0.1:7946", "Raft transport bind address")
	runCmd.Flags().Bool("standalone", true, "Run without raft leader election (single controller replica)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus metrics / health HTTP bind address")
	runCmd.Flags().String("operator-addr", "127.0.0.1:9443", "Operator HTTP surface bind address")
	runCmd.Flags().String("operator-secret", "", "Shared HMAC secret for the operator surface; empty disables signing")
	runCmd.Flags().String("self-host-id", "", "Host id of the host the controller's own container runs on, if monitored")
	runCmd.Flags().String("self-name", "", "Container name the controller runs as, if monitored")
}

func runController(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	nodeID, _ := cmd.Flags().GetString("node-id")
	raftBindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
	standalone, _ := cmd.Flags().GetBool("standalone")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	operatorAddr, _ := cmd.Flags().GetString("operator-addr")
	operatorSecret, _ := cmd.Flags().GetString("operator-secret")
	selfHostID, _ := cmd.Flags().GetString("self-host-id")
	selfName, _ := cmd.Flags().GetString("self-name")

	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	st, err := store.NewBoltStore(dataDir, store.Config{SelfHostID: selfHostID, SelfName: selfName})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	for _, hs := range settings.Hosts {
		if err := st.PutHost(cmd.Context(), hs.ToHost()); err != nil {
			return fmt.Errorf("registering host %s: %w", hs.ID, err)
		}
	}

	registry := hostregistry.New(func(h types.Host) hostclient.HostClient {
		return hostclient.NewClient(hostclient.Config{
			HostID:  h.ID,
			BaseURL: h.URL,
			Secret:  h.Secret,
			Timeout: h.Timeout,
		})
	})

	bridge, err := notifier.NewBridge(settings.NotificationTitleTemplate, settings.NotificationBodyTemplate, buildNotifier(settings))
	if err != nil {
		return fmt.Errorf("compiling notification templates: %w", err)
	}

	eng := &engine.Engine{
		Registry: registry,
		Store:    st,
		Progress: progress.New(),
		Notifier: bridge,
		IsSelf: func(c types.ContainerInspect) bool {
			return selfName != "" && c.Name == selfName
		},
	}

	elect, err := newElector(nodeID, raftBindAddr, dataDir, standalone)
	if err != nil {
		return fmt.Errorf("starting leader election: %w", err)
	}
	defer elect.Shutdown()

	runnerLogger := log.WithComponent("scheduler")
	sched, err := schedule.New(settings.CrontabExpr, settings.Timezone, func(ctx context.Context) {
		if !elect.IsLeader() {
			runnerLogger.Debug().Msg("skipping scheduled run: not the raft leader")
			return
		}
		eng.CheckAll(ctx)
	}, runnerLogger)
	if err != nil {
		return fmt.Errorf("scheduling check_all: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	go trackLeadership(elect)

	collectCtx, cancelCollect := context.WithCancel(context.Background())
	defer cancelCollect()
	go metrics.RunHostCountCollector(collectCtx, st, 15*time.Second)

	opSrv := operator.NewServer(eng, operator.Config{Secret: operatorSecret})
	operatorHTTP := &http.Server{Addr: operatorAddr, Handler: opSrv, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := operatorHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("operator HTTP server stopped")
		}
	}()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("store", true, "open")
	metrics.RegisterComponent("scheduler", true, "running")
	metrics.SetCriticalComponents("store", "scheduler")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.Handle("/health", metrics.HealthHandler())
	metricsMux.Handle("/ready", metrics.ReadyHandler())
	metricsMux.Handle("/live", metrics.LivenessHandler())
	metricsHTTP := &http.Server{Addr: metricsAddr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics HTTP server stopped")
		}
	}()

	log.Logger.Info().
		Str("metrics_addr", metricsAddr).
		Str("operator_addr", operatorAddr).
		Str("crontab", settings.CrontabExpr).
		Msg("controller started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Logger.Info().Msg("shutting down")
	return nil
}

func buildNotifier(settings config.Settings) notifier.Notifier {
	if len(settings.NotificationURLs) == 0 {
		return notifier.LogNotifier{Logger: log.WithComponent("notifier")}
	}

	var multi notifier.MultiNotifier
	for _, url := range settings.NotificationURLs {
		multi = append(multi, notifier.WebhookNotifier{URL: url})
	}
	return multi
}

// elector is the subset of leader.Elector / leader.Standalone the
// controller's scheduler and leadership gauge depend on.
type elector interface {
	IsLeader() bool
	Shutdown() error
}

func newElector(nodeID, bindAddr, dataDir string, standalone bool) (elector, error) {
	if standalone {
		return leader.Standalone{}, nil
	}
	if nodeID == "" {
		return nil, fmt.Errorf("--node-id is required unless --standalone")
	}

	e, err := leader.New(leader.Config{NodeID: nodeID, BindAddr: bindAddr, DataDir: dataDir + "/raft"})
	if err != nil {
		return nil, err
	}
	if err := e.Bootstrap(); err != nil {
		return nil, err
	}
	return e, nil
}

func trackLeadership(e elector) {
	for range time.Tick(5 * time.Second) {
		if e.IsLeader() {
			metrics.RaftLeader.Set(1)
		} else {
			metrics.RaftLeader.Set(0)
		}
	}
}
