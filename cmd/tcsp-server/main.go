package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shannmu/tcsp-server/internal/application"
	"github.com/shannmu/tcsp-server/internal/bus"
	"github.com/shannmu/tcsp-server/internal/chanadaptor"
	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/fallback"
	"github.com/shannmu/tcsp-server/internal/tcspmetrics"
	"github.com/shannmu/tcsp-server/internal/tycan"
	"github.com/shannmu/tcsp-server/internal/tyuart"
)

// version, commit, and date are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("tcsp-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adaptor, adaptorCleanup, err := initAdaptor(ctx, cfg, l)
	if err != nil {
		l.Error("adaptor_init_error", "error", err)
		return
	}
	defer adaptorCleanup()

	fb := initFallback(ctx, cfg, l)

	apps := []dispatch.Application{
		application.Telemetry{},
		application.NewTimeSync(fb),
		application.Echo{},
		application.NewReboot(),
		application.NewUpload(),
		application.NewResetNetwork(),
		application.NewUDPBackup(fb),
		application.NewDownload(os.DirFS("/")),
	}
	srv, err := dispatch.NewServer(adaptor, apps, dispatch.WithLogger(l))
	if err != nil {
		l.Error("dispatch_init_error", "error", err)
		return
	}

	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("dispatch_serve_error", "error", err)
			cancel()
		}
	}()

	var metricsPort int
	if cfg.metricsAddr != "" {
		tcspmetrics.InitBuildInfo(version, commit, date)
		srvHTTP := tcspmetrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
		metricsPort = portFromAddr(cfg.metricsAddr)
	}

	tcspmetrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, metricsPort)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", metricsPort)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		l.Error("dispatch_shutdown_error", "error", err)
	}
}

// initAdaptor constructs the bus.Adaptor selected by cfg.adaptor.
func initAdaptor(ctx context.Context, cfg *appConfig, l *slog.Logger) (bus.Adaptor, func(), error) {
	switch cfg.adaptor {
	case "can":
		a, err := tycan.New(ctx, tycan.Config{
			SelfID:      cfg.canSelfID,
			PrimaryIf:   cfg.canPrimaryIf,
			SecondaryIf: cfg.canSecondaryIf,
			Bitrate:     cfg.canBitrate,
			Logger:      l,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return a, func() { _ = a.Close() }, nil
	case "uart":
		a, err := tyuart.New(ctx, tyuart.Config{
			Device:      cfg.uartDevice,
			Baud:        cfg.uartBaud,
			ReadTimeout: cfg.uartReadTO,
			PlatformID:  cfg.uartPlatform,
			VerifyCRC:   cfg.uartVerifyCRC,
			Logger:      l,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return a, func() { _ = a.Close() }, nil
	case "channel":
		ch := chanadaptor.NewLoopback()
		return ch, func() { ch.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown adaptor %q (use can|uart|channel)", cfg.adaptor)
	}
}

// initFallback constructs the fallback side-channel client: a real Redis
// client when an address is configured, otherwise an in-process loopback.
func initFallback(ctx context.Context, cfg *appConfig, l *slog.Logger) fallback.Client {
	if cfg.fallbackAddr == "" {
		return fallback.Dummy{}
	}
	rc, err := fallback.NewRedisClient(ctx, cfg.fallbackAddr, "", cfg.fallbackDB)
	if err != nil {
		l.Warn("fallback_redis_unavailable", "error", err, "addr", cfg.fallbackAddr)
		return fallback.Dummy{}
	}
	return rc
}

func portFromAddr(addr string) int {
	if _, p, err := net.SplitHostPort(addr); err == nil {
		if pn, perr := strconv.Atoi(p); perr == nil {
			return pn
		}
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		if pn, perr := strconv.Atoi(addr[i+1:]); perr == nil {
			return pn
		}
	}
	return 0
}
