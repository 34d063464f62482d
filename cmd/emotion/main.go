package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/fer-emotion/internal/app"
	"github.com/Brownie44l1/fer-emotion/internal/config"
	"github.com/Brownie44l1/fer-emotion/internal/driver"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
)

const banner = "\n------------Emotion Detection Program------------\n"

func main() {
	fmt.Println(banner)
	if len(os.Args) < 2 {
		return
	}
	mode, ok := driver.ParseMode(os.Args[1])
	if !ok {
		return
	}

	// Results go to stdout; keep logs off it.
	log := logger.New(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, mode, log); err != nil {
		log.Error(ctx, "emotion detection failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, mode driver.Mode, log logger.Logger) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}

	mm := metrics.NewManager()
	classifier, err := app.NewClassifier(ctx, cfg, log.Named("classifier"), mm)
	if err != nil {
		return err
	}
	defer classifier.Close()

	d := driver.New(mode, classifier,
		driver.WithOutput(os.Stdout),
		driver.WithLogger(log.Named("driver")),
		driver.WithMetrics(mm))
	_, err = d.Run(ctx, cfg.InputPath)
	return err
}
