package main

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"
	"github.com/saylorsolutions/fieldparser/internal/config"
	"github.com/saylorsolutions/fieldparser/plugin"
	"github.com/saylorsolutions/fieldparser/plugin/file"
	"github.com/saylorsolutions/fieldparser/plugin/stdstream"
	"github.com/saylorsolutions/fieldparser/plugin/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type app struct {
	v       *viper.Viper
	cfgFile string
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		v:      config.New(),
		in:     in,
		out:    out,
		errOut: errOut,
	}
	root := &cobra.Command{
		Use:   "fieldparser",
		Short: "Extract key=value fields from log messages",
		Long: `fieldparser reads log entries from one or more sources, extracts key=value fields embedded in a text field,
merges them into each entry without overwriting existing fields, and writes the entries to one or more sinks.

Settings are read from a config file (--config, or .fieldparser.yaml in the working or home directory),
then from FIELDPARSER_* environment variables, and finally from flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadSettings,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml, json, or toml)")
	config.RegisterFlags(flags)

	root.AddCommand(
		a.runCmd(),
		a.checkCmd(),
		a.parseCmd(),
		a.pluginsCmd(),
	)
	return root
}

func (a *app) loadSettings(cmd *cobra.Command, _ []string) error {
	home, _ := os.UserHomeDir()
	if err := config.ReadFile(a.v, a.cfgFile, home); err != nil {
		return err
	}
	return config.BindFlags(a.v, cmd.Flags())
}

func (a *app) logger(cfg config.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "fieldparser",
		Level:  cfg.Level(),
		Output: a.errOut,
	})
}

func plugins(log hclog.Logger) []plugin.Plugin {
	return []plugin.Plugin{
		stdstream.Plugin(),
		file.Plugin(log),
		store.Plugin(log),
	}
}
