package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/retentiond/internal/config"
	"git.home.luguber.info/inful/retentiond/internal/daemon"
	"git.home.luguber.info/inful/retentiond/internal/events"
	"git.home.luguber.info/inful/retentiond/internal/logfields"
	"git.home.luguber.info/inful/retentiond/internal/metrics"
	"git.home.luguber.info/inful/retentiond/internal/retention"
	"git.home.luguber.info/inful/retentiond/internal/retry"
	"git.home.luguber.info/inful/retentiond/internal/store"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Keys struct {
		Pattern string `short:"p" help:"Key glob pattern" default:"*"`
	} `cmd:"" help:"List retention keys currently in the store"`

	Show struct {
		Key string `arg:"" help:"Store key to inspect (e.g. HOST-web01)"`
	} `cmd:"" help:"Decode and print one stored retention entry"`

	Save struct{} `cmd:"" help:"Run one save pass, writing an entry for every identity in the configured inventory"`

	Load struct{} `cmd:"" help:"Run one load pass over the configured inventory and print a summary"`

	Reconcile struct{} `cmd:"" help:"Delete store entries for identities missing from the configured inventory"`

	Run struct{} `cmd:"" help:"Run a standalone retention daemon over the configured inventory"`
}

func main() {
	ctx := kong.Parse(&CLI)

	if err := run(ctx.Command()); err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func run(command string) error {
	if command == "init" {
		return runInit()
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	switch command {
	case "keys":
		return runKeys(cfg)
	case "show <key>":
		return runShow(cfg)
	case "save":
		return runSave(cfg)
	case "load":
		return runLoad(cfg)
	case "reconcile":
		return runReconcile(cfg)
	case "run":
		return runDaemon(cfg)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if CLI.Verbose || cfg.Logging.Level == string(config.LogLevelDebug) {
		level = slog.LevelDebug
	} else if cfg.Logging.Level == string(config.LogLevelWarn) {
		level = slog.LevelWarn
	} else if cfg.Logging.Level == string(config.LogLevelError) {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == string(config.LogFormatJSON) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openStore builds the configured backend and, for networked stores,
// verifies reachability with the configured retry policy.
func openStore(ctx context.Context, cfg *config.Config) (store.KV, error) {
	kv, err := store.Open(store.Options{
		Backend: cfg.Store.Backend,
		Addr:    cfg.Store.Addr,
		DB:      cfg.Store.DB,
		Path:    cfg.Store.Path,
	})
	if err != nil {
		return nil, err
	}

	if r, ok := kv.(*store.RedisStore); ok {
		policy := retry.FromConfig(cfg.Retry)
		if err := policy.Validate(); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("retry policy: %w", err)
		}
		if err := policy.Do(ctx, func() error { return r.Ping(ctx) }); err != nil {
			_ = kv.Close()
			return nil, err
		}
	}
	return kv, nil
}

func runInit() error {
	const starter = `store:
  backend: redis
  addr: localhost:6379
  db: 0
checkpoint:
  interval: 15m
  reconcile: true
logging:
  level: info
  format: text
metrics:
  enabled: false
  listen: ":9464"
events:
  enabled: false
  url: nats://localhost:4222
  subject: retention.passes
inventory:
  hosts: []
  services: []
`
	if _, err := os.Stat(CLI.Config); err == nil && !CLI.Init.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", CLI.Config)
	}
	if err := os.WriteFile(CLI.Config, []byte(starter), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	slog.Info("Wrote starter configuration", "path", CLI.Config)
	return nil
}

func runKeys(cfg *config.Config) error {
	ctx := context.Background()
	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	keys, err := kv.Keys(ctx, CLI.Keys.Pattern)
	if err != nil {
		return err
	}
	for _, key := range keys {
		kind, host, desc := retention.DecodeKey(key)
		switch kind {
		case retention.KindHost:
			fmt.Printf("%s\thost\t%s\n", key, host)
		case retention.KindService:
			fmt.Printf("%s\tservice\t%s/%s\n", key, host, desc)
		default:
			fmt.Printf("%s\tunrecognized\n", key)
		}
	}
	slog.Info("Listed store keys", "count", len(keys), "pattern", CLI.Keys.Pattern)
	return nil
}

func runShow(cfg *config.Config) error {
	ctx := context.Background()
	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	payload, err := kv.Get(ctx, CLI.Show.Key)
	if err != nil {
		return err
	}
	state, err := retention.DecodePayload(payload)
	if err != nil {
		return err
	}

	kind, host, desc := retention.DecodeKey(CLI.Show.Key)
	switch kind {
	case retention.KindHost:
		fmt.Printf("host: %s\n", host)
	case retention.KindService:
		fmt.Printf("service: %s/%s\n", host, desc)
	default:
		fmt.Println("unrecognized key shape")
	}
	fmt.Printf("state (%d bytes):\n%s\n", len(state), state)
	return nil
}

func runSave(cfg *config.Config) error {
	ctx := context.Background()
	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	d := daemon.NewStaticDaemon(cfg.Inventory)
	known, err := d.KnownIdentities()
	if err != nil {
		return err
	}
	if known.Len() == 0 {
		return fmt.Errorf("refusing to save with an empty inventory: nothing to write")
	}

	// No live scheduler is attached, so every identity gets an empty
	// state entry. This seeds the store's key layout for a fresh setup.
	for _, h := range known.Hosts() {
		d.SetState(h, nil)
	}
	for _, id := range known.Services() {
		d.SetServiceState(id.Host, id.Description, nil)
	}
	snap, err := d.RetentionSnapshot()
	if err != nil {
		return err
	}

	sync := retention.NewSynchronizer(kv, slog.Default(), nil)
	stats, err := sync.Save(ctx, snap)
	if err != nil {
		return err
	}
	slog.Info("Save pass finished",
		"written", stats.Written(), "hosts", stats.Hosts, "services", stats.Services)
	return nil
}

func runLoad(cfg *config.Config) error {
	ctx := context.Background()
	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	d := daemon.NewStaticDaemon(cfg.Inventory)
	known, err := d.KnownIdentities()
	if err != nil {
		return err
	}
	if known.Len() == 0 {
		return fmt.Errorf("refusing to load with an empty inventory: nothing to read")
	}

	sync := retention.NewSynchronizer(kv, slog.Default(), nil)
	snap, stats, err := sync.Load(ctx, known)
	if err != nil {
		return err
	}
	if err := d.RestoreRetention(snap); err != nil {
		return err
	}

	for name, state := range snap.Hosts {
		fmt.Printf("%s\thost\t%d bytes\n", retention.HostKey(name), len(state))
	}
	for id, state := range snap.Services {
		fmt.Printf("%s\tservice\t%d bytes\n", retention.ServiceKey(id.Host, id.Description), len(state))
	}
	slog.Info("Load pass finished",
		"read", stats.Read(), "hosts", stats.Hosts, "services", stats.Services, "missing", stats.Missing)
	return nil
}

func runReconcile(cfg *config.Config) error {
	ctx := context.Background()
	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	d := daemon.NewStaticDaemon(cfg.Inventory)
	known, err := d.KnownIdentities()
	if err != nil {
		return err
	}
	if known.Len() == 0 {
		return fmt.Errorf("refusing to reconcile with an empty inventory: every retention key would be deleted")
	}

	sync := retention.NewSynchronizer(kv, slog.Default(), nil)
	stats, err := sync.Reconcile(ctx, known)
	if err != nil {
		return err
	}
	slog.Info("Reconciliation finished",
		"scanned", stats.Scanned, "deleted", stats.Deleted, "skipped", stats.Skipped)
	return nil
}

func runDaemon(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go func() {
			slog.Info("Serving Prometheus metrics", "listen", cfg.Metrics.Listen)
			if err := http.ListenAndServe(cfg.Metrics.Listen, metrics.HTTPHandler(reg)); err != nil {
				slog.Error("Metrics listener failed", logfields.Error(err))
			}
		}()
	}

	var sink daemon.EventSink
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			return err
		}
		defer pub.Close()
		sink = pub
	}

	d := daemon.NewStaticDaemon(cfg.Inventory)
	sync := retention.NewSynchronizer(kv, slog.Default(), recorder)
	cp, err := daemon.NewCheckpointer(d, sync, daemon.Options{
		Interval:  cfg.Checkpoint.IntervalDuration(),
		Reconcile: cfg.Checkpoint.ReconcileEnabled(),
		Events:    sink,
	})
	if err != nil {
		return err
	}

	if err := cp.RunStartup(ctx); err != nil {
		return err
	}
	if err := cp.Start(ctx); err != nil {
		return err
	}

	slog.Info("Retention daemon running", logfields.Backend(cfg.Store.Backend))
	<-ctx.Done()

	// Use a fresh context for the final save: the signal context is done.
	return cp.Stop(context.Background())
}
