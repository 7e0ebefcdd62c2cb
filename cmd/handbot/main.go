// Command handbot sits in one IRC channel, keeps a transcript of it and
// answers a few commands: ping, nextmeeting and s/old/new/ corrections.
//
// Usage:
//
//	handbot [-c config.yaml] [-d] <channel> <logfile> [nickname]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/outofthemadness/handbot/internal/calendar"
	"github.com/outofthemadness/handbot/internal/config"
	"github.com/outofthemadness/handbot/internal/irc"
	"github.com/outofthemadness/handbot/internal/storage"
	"github.com/outofthemadness/handbot/internal/telemetry"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

const daemonEnv = "HANDBOT_DAEMON"

func main() {
	// Command line flags
	configPath := flag.String("c", "", "Path to optional YAML configuration file")
	daemon := flag.Bool("d", false, "Run in the background and write handbot.pid")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	showVersionLong := flag.Bool("version", false, "Show version information and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <channel> <logfile> [nickname]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Show version and exit
	if *showVersion || *showVersionLong {
		fmt.Printf("handbot version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Set version info in irc package
	irc.Version = version
	irc.BuildDate = buildDate
	irc.GitCommit = gitCommit

	// Local dev convenience; production relies on real env
	_ = godotenv.Load()

	setupLogging()

	if *daemon && os.Getenv(daemonEnv) != "1" {
		daemonize()
		return
	}
	if os.Getenv(daemonEnv) == "1" {
		if err := writePIDFile(); err != nil {
			slog.Warn("could not write PID file", slog.Any("err", err))
		}
	}

	cfg, err := config.Load(*configPath, flag.Args())
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("err", err))
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(cfg))
}

// setupLogging configures slog from LOG_LEVEL (debug|info|warn|error) and
// LOG_FORMAT (text|json).
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}

// daemonize re-executes the binary detached from the terminal and exits
func daemonize() {
	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonEnv+"=1")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		slog.Error("failed to start daemon", slog.Any("err", err))
		os.Exit(1)
	}
	fmt.Printf("Now becoming a daemon\nMy pid is %d, this has been written to handbot.pid\n", cmd.Process.Pid)
	os.Exit(0)
}

func writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile("handbot.pid", []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

func run(cfg *config.Config) int {
	// The transcript must be writable before we ever connect
	logFile, err := storage.OpenMessageLog(cfg.LogFile)
	if err != nil {
		slog.Error("cannot open log file", slog.String("path", cfg.LogFile), slog.Any("err", err))
		return 1
	}
	_ = logFile.Close()

	feed, err := calendar.NewFeed(cfg.CalendarURL, cfg.Timezone)
	if err != nil {
		slog.Error("invalid calendar settings", slog.Any("err", err))
		return 1
	}

	telemetry.Init()
	metricsSrv := startMetrics(cfg.MetricsAddr)

	client := irc.NewClient(cfg, feed)

	var (
		fatalMu  sync.Mutex
		fatalErr error
	)
	client.OnFatal = func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		client.Quit("Fatal error")
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("received shutdown signal")
			client.Quit("Received shutdown signal")
		case <-done:
		}
	}()

	// Connect and run; the first connection is not retried
	slog.Info("connecting", slog.String("server", cfg.Address()), slog.String("channel", cfg.Channel), slog.String("nick", cfg.Nick))
	if err := client.Connect(); err != nil {
		close(done)
		slog.Error("connection failed", slog.Any("err", err))
		shutdownMetrics(metricsSrv)
		return 1
	}

	client.Loop()
	close(done)

	if err := client.Close(); err != nil {
		slog.Error("failed to close message log", slog.Any("err", err))
	}
	shutdownMetrics(metricsSrv)

	fatalMu.Lock()
	defer fatalMu.Unlock()
	if fatalErr != nil {
		return 1
	}
	return 0
}

func startMetrics(addr string) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("err", err))
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
