// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command markertrace finds every symbol name that aliases a marker
// construct across a Python module import graph.
//
// Usage:
//
//	markertrace analyze entry.py
//	markertrace analyze --marker typing.Annotated --root ./src entry.py
//	markertrace analyze --json --graph entry.py other_entry.py
//	markertrace analyze --watch entry.py
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	markertrace "github.com/AleutianAI/markertrace/services/markertrace"
	"github.com/AleutianAI/markertrace/services/markertrace/config"
	"github.com/AleutianAI/markertrace/services/markertrace/graph"
)

const version = "0.1.0"

// debounceWindow coalesces bursts of filesystem events in watch mode.
const debounceWindow = 250 * time.Millisecond

type analyzeFlags struct {
	configRoot  string
	marker      string
	entryModule string
	roots       []string
	maxModules  int
	jsonOut     bool
	dumpGraph   bool
	watch       bool
}

// report is the JSON output shape for one entry unit.
type report struct {
	Entry      string            `json:"entry"`
	Aliases    []string          `json:"aliases"`
	Provenance map[string]string `json:"provenance,omitempty"`
	Stats      graph.Stats       `json:"stats"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "markertrace",
		Short:         "Cross-module marker-alias provenance analyzer for Python",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the markertrace version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "markertrace", version)
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <entry.py> [entry.py...]",
		Short: "Analyze entry units and print the marker alias set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(flags)
			if err != nil {
				return err
			}
			if flags.watch {
				return runWatch(cmd.Context(), cmd, args, cfg, flags)
			}
			return runOnce(cmd.Context(), cmd, args, cfg, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configRoot, "config-root", "", "directory holding "+config.ConfigFileName)
	cmd.Flags().StringVar(&flags.marker, "marker", "", "canonical marker symbol (default typing.Annotated)")
	cmd.Flags().StringVar(&flags.entryModule, "entry-module", "", "dotted module identity of the entry unit")
	cmd.Flags().StringSliceVar(&flags.roots, "root", nil, "module search root (repeatable)")
	cmd.Flags().IntVar(&flags.maxModules, "max-modules", 0, "module traversal budget, 0 = unlimited")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "emit JSON instead of text")
	cmd.Flags().BoolVar(&flags.dumpGraph, "graph", false, "include provenance edges in the output")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "re-run analysis when source files change")
	return cmd
}

func buildConfig(flags *analyzeFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configRoot)
	if err != nil {
		return cfg, err
	}
	if flags.marker != "" {
		cfg.Marker = flags.marker
	}
	if flags.entryModule != "" {
		cfg.EntryModule = flags.entryModule
	}
	if len(flags.roots) > 0 {
		cfg.SearchRoots = flags.roots
	}
	if flags.maxModules > 0 {
		cfg.MaxModules = flags.maxModules
	}
	return cfg, cfg.Validate()
}

// runOnce analyzes every entry unit. Entries are independent
// single-threaded runs, so they fan out concurrently.
func runOnce(ctx context.Context, cmd *cobra.Command, entries []string, cfg config.Config, flags *analyzeFlags) error {
	results := make([]*graph.Result, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			result, err := markertrace.Analyze(gctx, entry, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", entry, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, entry := range entries {
		if err := printResult(cmd, entry, results[i], flags); err != nil {
			return err
		}
	}
	return nil
}

func printResult(cmd *cobra.Command, entry string, result *graph.Result, flags *analyzeFlags) error {
	out := cmd.OutOrStdout()

	if flags.jsonOut {
		rep := report{
			Entry:   entry,
			Aliases: result.Aliases.Names(),
			Stats:   result.Stats,
		}
		if flags.dumpGraph {
			rep.Provenance = result.Provenance.Edges()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(out, "%s: %d alias(es), %d module(s) visited in %dms\n",
		entry, result.Aliases.Len(), result.Stats.ModulesVisited, result.Stats.DurationMilli)
	for _, name := range result.Aliases.Names() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	if flags.dumpGraph {
		for sym, origin := range result.Provenance.Edges() {
			if origin == "" {
				origin = "<opaque>"
			}
			fmt.Fprintf(out, "  %s -> %s\n", sym, origin)
		}
	}
	return nil
}

// runWatch re-runs the analysis whenever a Python source file under any
// watched root changes. Events are debounced into one re-run per burst.
func runWatch(ctx context.Context, cmd *cobra.Command, entries []string, cfg config.Config, flags *analyzeFlags) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(entries, cfg.SearchRoots) {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("cannot watch directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
		}
	}

	if err := runOnce(ctx, cmd, entries, cfg, flags); err != nil {
		slog.Error("analysis failed", slog.String("error", err.Error()))
	}

	var timer *time.Timer
	rerun := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".py") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("source changed", slog.String("file", event.Name))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		case <-rerun:
			if err := runOnce(ctx, cmd, entries, cfg, flags); err != nil {
				slog.Error("analysis failed", slog.String("error", err.Error()))
			}
		}
	}
}

// watchDirs collects every directory under the entry units' parents and
// the search roots. fsnotify watches are per-directory, so roots are
// walked recursively.
func watchDirs(entries, roots []string) []string {
	seen := make(map[string]struct{})
	var dirs []string

	add := func(dir string) {
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	for _, entry := range entries {
		add(filepath.Dir(entry))
	}
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				add(path)
			}
			return nil
		})
	}
	return dirs
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
