package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/saylorsolutions/fieldparser/internal/config"
	"github.com/saylorsolutions/fieldparser/runtime"
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline until its sources are exhausted, or it's interrupted",
		Example: `  fieldparser run --source "file.File app.log" --sink "file.File parsed.json"
  tail -f app.log | fieldparser run --fields-key fields --add-tag-prefix parsed
  fieldparser run -c pipeline.yaml`,
		Args: cobra.NoArgs,
		RunE: a.run,
	}
}

func (a *app) run(cmd *cobra.Command, _ []string) (rerr error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log := a.logger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runtime.NewRuntime(log, plugins(log)...)
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.Stop(); err != nil {
			log.Error("Error while stopping runtime", "error", err)
			if rerr == nil {
				rerr = err
			}
		}
	}()

	summary, err := r.Run(cfg.Pipeline())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.errOut, "Pipeline completed: %s\n", summary)
	return nil
}
