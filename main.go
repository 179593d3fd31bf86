package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrsingh-rishi/meeting-report/api"
	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/pipeline"
)

const serviceName = "meeting-report"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Transcribe meeting recordings and generate summaries and action items",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional YAML config file")
	rootCmd.AddCommand(newDoctorCmd(&configFile))
	return rootCmd
}

func serve(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, serviceName)

	deps, err := buildDeps(context.Background(), cfg, log)
	if err != nil {
		return err
	}

	orch, err := pipeline.New(deps, pipeline.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}
	orch.Start()
	defer orch.Stop()

	server, err := api.NewServer(cfg.Server, orch, log)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Server.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
