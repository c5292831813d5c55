package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fitscore/internal/loadtest"
	"github.com/okian/fitscore/pkg/logger"
)

// Default configuration constants.
const (
	defaultOwners       = 50
	defaultItems        = 6
	defaultTimeout      = 30 * time.Second
	defaultWaitTimeout  = 10 * time.Minute
	defaultPollInterval = 500 * time.Millisecond
)

func main() {
	cfg := &loadtest.Config{}
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	flag.StringVar(&cfg.ImageDir, "images", "uploads", "The service's image_root directory")
	flag.IntVar(&cfg.Owners, "owners", defaultOwners, "Number of synthetic owners")
	flag.IntVar(&cfg.ItemsPerOwner, "items", defaultItems, "Items per owner")
	flag.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Concurrent HTTP callers")
	flag.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flag.DurationVar(&cfg.WaitTimeout, "wait", defaultWaitTimeout, "Maximum wait for all owners to be scored")
	flag.DurationVar(&cfg.PollInterval, "poll", defaultPollInterval, "Delay between recommendation polls")
	flag.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Wardrobe generator seed")
	jsonLogs := flag.Bool("json", false, "Log in JSON")
	flag.Parse()

	format := "text"
	if *jsonLogs {
		format = "json"
	}
	if err := logger.InitWithFormat(format, os.Stdout); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load test failed", logger.Error(err))
		os.Exit(1)
	}
}
