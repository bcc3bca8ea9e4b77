// Command easycms runs the surveillance media control hub.
//
// The hub accepts long-lived connections from cameras and NVRs,
// tracks which devices are online, brokers live streams onto media
// relay servers, and stores device-posted snapshots. Clients talk to
// it with the same JSON protocol the devices use, or through the
// GET-based REST endpoints.
//
// Usage:
//
//	easycms [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-listen string      Listen address (overrides config)
//	-redis string       Redis address; empty uses the in-memory store
//	-event-log string   CBOR protocol event capture file
//	-log-level string   Log level: debug, info, warn, error
//	-mdns               Advertise the hub over mDNS
//
// Examples:
//
//	# Start with defaults (listens on :10000, in-memory store)
//	easycms
//
//	# Start from a config file with Redis-backed metadata
//	easycms -config /etc/easycms/easycms.yaml -redis 127.0.0.1:6379
//
//	# Capture protocol events for offline analysis
//	easycms -event-log /var/log/easycms/events.cborlog -log-level debug
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/easydarwin/easycms-go/pkg/config"
	"github.com/easydarwin/easycms-go/pkg/discovery"
	"github.com/easydarwin/easycms-go/pkg/log"
	"github.com/easydarwin/easycms-go/pkg/metastore"
	"github.com/easydarwin/easycms-go/pkg/service"
	"github.com/easydarwin/easycms-go/pkg/snapshot"
)

var flags struct {
	configFile string
	listen     string
	redis      string
	eventLog   string
	logLevel   string
	mdns       bool
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.listen, "listen", "", "Listen address (overrides config)")
	flag.StringVar(&flags.redis, "redis", "", "Redis address; empty uses the in-memory store")
	flag.StringVar(&flags.eventLog, "event-log", "", "CBOR protocol event capture file")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.mdns, "mdns", false, "Advertise the hub over mDNS")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}
	applyFlagOverrides(cfg)

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	plog, closePlog, err := newProtocolLogger(cfg, logger)
	if err != nil {
		stdlog.Fatalf("Failed to open event log: %v", err)
	}
	defer closePlog()

	store, err := newStore(cfg)
	if err != nil {
		stdlog.Fatalf("Failed to connect metadata store: %v", err)
	}
	defer store.Close()

	snaps := snapshot.NewStore(cfg.Snapshot.LocalRoot, cfg.Snapshot.WebRoot)

	svc := service.New(cfg, store, snaps, plog, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start hub: %v", err)
	}

	var advertiser *discovery.Advertiser
	if cfg.Discovery.Enabled {
		advertiser = discovery.NewAdvertiser(discovery.Config{
			InstanceName: cfg.Discovery.InstanceName,
			Port:         listenPort(svc.Addr()),
		})
		if err := advertiser.Start(); err != nil {
			logger.Warn("mDNS advertising unavailable", "err", err)
			advertiser = nil
		} else {
			logger.Info("advertising over mDNS",
				"instance", cfg.Discovery.InstanceName, "service", discovery.ServiceType)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if advertiser != nil {
		advertiser.Stop()
	}
	if err := svc.Stop(); err != nil {
		logger.Error("error stopping hub", "err", err)
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if flags.listen != "" {
		cfg.Server.Listen = flags.listen
	}
	if flags.redis != "" {
		cfg.Redis.Addr = flags.redis
	}
	if flags.eventLog != "" {
		cfg.Logging.EventFile = flags.eventLog
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.mdns {
		cfg.Discovery.Enabled = true
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newProtocolLogger assembles the protocol event sinks: the CBOR
// capture file when configured, plus console mirroring at debug
// level.
func newProtocolLogger(cfg *config.Config, logger *slog.Logger) (log.Logger, func(), error) {
	var sinks []log.Logger

	closeFn := func() {}
	if cfg.Logging.EventFile != "" {
		fl, err := log.NewFileLogger(cfg.Logging.EventFile)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fl)
		closeFn = func() { fl.Close() }
	}
	if cfg.Logging.Level == "debug" {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}

	switch len(sinks) {
	case 0:
		return log.NoopLogger{}, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	default:
		return log.NewMultiLogger(sinks...), closeFn, nil
	}
}

func newStore(cfg *config.Config) (metastore.Store, error) {
	if cfg.Redis.Addr == "" {
		return metastore.NewMemoryStore(), nil
	}
	return metastore.NewRedisStore(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
}

func listenPort(addr net.Addr) int {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
