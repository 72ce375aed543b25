package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/plugin"
	"github.com/spf13/cobra"
)

func (a *app) pluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "Print the documentation of every available source and sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := plugin.NewRegistration()
			for _, p := range plugins(hclog.NewNullLogger()) {
				p.Register(reg)
			}
			_, err := fmt.Fprint(a.out, "Sources and sinks are referenced as QUALIFIER.CLASS followed by their arguments.\n\n", reg.AllDocs())
			return err
		},
	}
}
