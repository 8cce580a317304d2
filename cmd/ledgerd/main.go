// Command ledgerd runs the certified block-log engine as a standalone
// daemon: config + statesink + ledger + archive wired together behind a
// small JSON-over-HTTP host surface, adapted from cmd/rubin-node's
// flag/signal-handling skeleton.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BitySA/dfinity-rust-libraries/archive"
	"github.com/BitySA/dfinity-rust-libraries/config"
	"github.com/BitySA/dfinity-rust-libraries/ledger"
	"github.com/BitySA/dfinity-rust-libraries/statesink"
	"github.com/BitySA/dfinity-rust-libraries/txkinds"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := config.DefaultConfig()

	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dataDir := fs.String("datadir", defaults.DataDir, "engine data directory")
	bindAddr := fs.String("bind", "127.0.0.1:8089", "HTTP bind address")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	cfg := defaults
	cfg.DataDir = *dataDir
	cfg.SupportedBlocks = txkinds.Descriptors()
	if err := config.Validate(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		_, _ = fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}

	if *dryRun {
		b, _ := json.MarshalIndent(cfg, "", "  ")
		_, _ = stdout.Write(b)
		_, _ = fmt.Fprintln(stdout)
		return 0
	}

	sink, err := statesink.Open(cfg.DataDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "statesink open failed: %v\n", err)
		return 2
	}

	factory := archive.NewLocalFactory(filepath.Join(cfg.DataDir, "shards"), cfg.MaxMemorySizeBytes)
	wallet := archive.NewCountingWallet(^uint64(0))
	archiveMgr := archive.NewManager(factory, wallet, cfg.MaxMemorySizeBytes, cfg.MaxRetries, cfg.InitialCycles, cfg.ReservedCycles, logger)

	platform := ledger.NewDevPlatform()
	engine := ledger.NewEngine(cfg, ledger.SystemClock{}, platform, archiveMgr)

	if blob, ok, err := sink.Load(); err != nil {
		_, _ = fmt.Fprintf(stderr, "statesink load failed: %v\n", err)
		return 2
	} else if ok {
		state, err := ledger.DecodeEngineState(blob)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "state decode failed: %v\n", err)
			return 2
		}
		shardHandles, err := factory.ReopenAll()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "shard reopen failed: %v\n", err)
			return 2
		}
		if err := engine.ReplaceState(state, shardHandles); err != nil {
			_, _ = fmt.Fprintf(stderr, "replace_state failed: %v\n", err)
			return 2
		}
		logger.Info("restored persisted state", "log_length", state.Log.LogLength())
	}

	offloader := archive.NewOffloader(archiveMgr, engine, cfg.OffloadTickInterval, cfg.MaxSegmentSizeBytes, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go offloader.Run(ctx)

	srv := &http.Server{Addr: *bindAddr, Handler: newServer(engine, logger)}
	go func() {
		logger.Info("ledgerd listening", "addr", *bindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err.Error())
		}
	}()

	<-ctx.Done()
	logger.Info("ledgerd shutting down")
	_ = srv.Shutdown(context.Background())

	blob, err := engine.TakeState().Encode()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "state encode failed: %v\n", err)
		return 1
	}
	if err := sink.Save(blob); err != nil {
		_, _ = fmt.Fprintf(stderr, "state save failed: %v\n", err)
		return 1
	}
	logger.Info("ledgerd stopped")
	return 0
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
