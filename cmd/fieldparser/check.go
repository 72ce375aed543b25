package main

import (
	"context"
	"fmt"

	"github.com/saylorsolutions/fieldparser/internal/config"
	"github.com/saylorsolutions/fieldparser/runtime"
	"github.com/spf13/cobra"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the effective settings as JSON",
		Args:  cobra.NoArgs,
		RunE:  a.check,
	}
}

func (a *app) check(cmd *cobra.Command, _ []string) (rerr error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log := a.logger(cfg)
	r := runtime.NewRuntime(log, plugins(log)...)
	if err := r.Start(context.Background()); err != nil {
		return err
	}
	defer func() {
		if err := r.Stop(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	if err := r.Validate(cfg.Pipeline()); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
