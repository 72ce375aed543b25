package main

import (
	"bufio"
	"fmt"

	"github.com/saylorsolutions/fieldparser/internal/config"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/fields"
	"github.com/spf13/cobra"
)

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [TEXT...]",
		Short: "Extract fields from each argument, or each line of STDIN, and print the resulting entries",
		Long: `Each TEXT is used as the parse key of an otherwise empty entry, which is then processed with the configured options.
Resulting entries are printed as lines of JSON. Sources, sinks, and join patterns are ignored.`,
		Example: `  fieldparser parse 'user=alice action="log in" attempts=3'
  fieldparser parse --strict-key-value 'n=1 f=2.5'`,
		RunE: a.parse,
	}
}

func (a *app) parse(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	proc, err := fields.New(a.logger(cfg), cfg.Fields)
	if err != nil {
		return err
	}
	parseKey := proc.Options().ParseKey

	texts := args
	if len(texts) == 0 {
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			texts = append(texts, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}

	events := make([]entries.Event, len(texts))
	for i, text := range texts {
		events[i] = entries.NewEvent(entries.LogEntry{parseKey: text})
	}
	var collector fields.Collector
	if err := proc.Process(cfg.Tag, events, &collector); err != nil {
		return err
	}
	for _, e := range collector.Emitted() {
		if e.Tag != "" {
			e.Entry.SetTag(e.Tag)
		}
		line, err := e.Entry.JSON()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(a.out, line); err != nil {
			return err
		}
	}
	return nil
}
