// Copyright 2025 The MassFind Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the peptide mass search server and CLI [DBG] application.

MassFind finds every enzymatic peptide of a protein database whose residue
mass falls within a tolerance of a query mass. The database is framed into a
single sentinel-delimited corpus, and the suffixes starting at cleavage sites
are sorted into a suffix array with longest-common-prefix and skip tables.
A query walks that array once, sharing the mass of every common prefix
between neighbouring suffixes.

# Usage

Build an index from a FASTA file and serve it:

	massfind -fasta uniprot_sprot.fasta.gz

Reuse a saved index from a custom directory with debug logging:

	massfind -index /data/idx -d

Query interactively:

	massfind -c

The index directory holds five files sharing one name: .sa, .lcp and .skip
tables, the .corpus text and a .cat record catalog.

# Configuration

Defaults come from a TOML file created on first run under the user config
dir (or -config):

	log_level = "warn"

	[index]
	sentinel = "$"
	cleave = "KR"
	block = "P"

	[search]
	tolerance = 0.02
	max_mods = 2

	[[mods]]
	residue = "M"
	delta = 15.994915
	name = "Oxidation"

# IPC Protocol

Server mode reads msgpack requests from stdin and writes one response per
request to stdout. See package server for the message layout.

	{"id": "q1", "m": [1045.53, 1179.60]}

# Command Line Flags

	-fasta string
	    FASTA file to index (gzip allowed, "-" for stdin)
	-index string
	    Directory holding saved index files (default "index/")
	-build
	    Rebuild the index even if one is saved
	-c  Run in CLI mode instead of server mode
	-d  Enable debug mode with detailed logging
	-tol float
	    Mass tolerance (default from config)
	-mods int
	    Maximum modifications per peptide (default from config)
	-limit int
	    Hits shown per mass in CLI mode
	-config string
	    Path to a custom config file
	-save
	    Write -tol and -mods back to the config file
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bastiangx/massfind/internal/cli"
	"github.com/bastiangx/massfind/internal/fasta"
	"github.com/bastiangx/massfind/internal/logger"
	"github.com/bastiangx/massfind/internal/utils"
	"github.com/bastiangx/massfind/pkg/catalog"
	"github.com/bastiangx/massfind/pkg/config"
	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/bastiangx/massfind/pkg/index"
	"github.com/bastiangx/massfind/pkg/mods"
	"github.com/bastiangx/massfind/pkg/search"
	"github.com/bastiangx/massfind/pkg/server"
	"github.com/bastiangx/massfind/pkg/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0-beta"
	AppName = "massfind"
	gh      = "https://github.com/bastiangx/massfind"
)

// sigHandler cancels ctx on the first signal and exits on the second.
func sigHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cancel()
		<-c
		os.Exit(0)
	}()
}

// main wires the packages together for server or CLI mode.
// It does not implement search logic itself.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigHandler(cancel)
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	fastaPath := flag.String("fasta", "", "FASTA file to index (gzip allowed, - for stdin)")
	indexDir := flag.String("index", "index/", "Directory holding saved index files")
	rebuild := flag.Bool("build", false, "Rebuild the index even if one is saved")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	tolerance := flag.Float64("tol", -1, "Mass tolerance (default from config)")
	maxMods := flag.Int("mods", -1, "Maximum modifications per peptide (default from config)")
	limit := flag.Int("limit", defaultConfig.Search.MaxHitsShown, "Hits shown per mass in CLI mode")
	configPath := flag.String("config", "", "Path to custom config file")
	saveDefaults := flag.Bool("save", false, "Write -tol and -mods back to the config file")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	appConfig, usedConfigPath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid config %s: %v", usedConfigPath, err)
	}
	logger.SetGlobal(appConfig.LogLevel, false)
	if *debugMode {
		logger.SetGlobal("debug", true)
	}
	log.Debugf("Using config file: (%s)", usedConfigPath)
	var tolOverride *float64
	var modsOverride *int
	if *tolerance >= 0 {
		tolOverride = tolerance
	}
	if *maxMods >= 0 {
		modsOverride = maxMods
	}
	if *saveDefaults && usedConfigPath != "" {
		if err := appConfig.Update(usedConfigPath, tolOverride, modsOverride, nil); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		log.Infof("Saved search defaults to %s", usedConfigPath)
	} else {
		if *saveDefaults {
			log.Warn("No config file in use, -save ignored")
		}
		if tolOverride != nil {
			appConfig.Search.Tolerance = *tolOverride
		}
		if modsOverride != nil {
			appConfig.Search.MaxMods = *modsOverride
		}
	}

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Print("Either env is not set or system is not supported")
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}
	for k, v := range pathResolver.GetRuntimeInfo() {
		log.Debug("runtime", k, v)
	}

	dir := *indexDir
	if appConfig.Index.Dir != "" && !isFlagSet("index") {
		dir = appConfig.Index.Dir
	}
	resolvedDir := pathResolver.GetIndexDir(dir, appConfig.Index.Name)
	prefix := filepath.Join(resolvedDir, appConfig.Index.Name)
	log.Debugf("Using index at: %s", prefix)

	bundle, err := openIndex(ctx, appConfig, prefix, *fastaPath, *rebuild)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}

	residues, err := appConfig.ResidueTable()
	if err != nil {
		log.Fatalf("Failed to load residue masses: %v", err)
	}
	opts := search.Options{Residues: residues, MaxSteps: appConfig.Search.MaxSteps}
	if m := appConfig.Modifications(); len(m) > 0 {
		opts.Mods = mods.NewCombinator(m)
	}
	searcher := search.NewSearcher(search.New(opts), bundle.Index)

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:",
			"tolerance", appConfig.Search.Tolerance,
			"maxMods", appConfig.Search.MaxMods,
			"limit", *limit)

		inputHandler := cli.NewInputHandler(searcher, bundle.Catalog,
			appConfig.Search.Tolerance, appConfig.Search.MaxMods, *limit)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(searcher, bundle.Catalog, appConfig)

	showStartupInfo(prefix, searcher.Stats())

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// openIndex loads the saved index at prefix, or builds it from fastaPath
// when nothing is saved or a rebuild was asked for.
func openIndex(ctx context.Context, cfg *config.Config, prefix, fastaPath string, rebuild bool) (*store.Bundle, error) {
	if !rebuild && store.Exists(prefix) {
		return store.Load(prefix, cfg.Rule())
	}
	if fastaPath == "" {
		return nil, fmt.Errorf("no index at %s and no -fasta to build one", prefix)
	}

	blog := logger.New("build")
	start := time.Now()
	records, err := fasta.ReadFile(ctx, fastaPath)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if utils.IsRepetitive(r.Seq) {
			blog.Warnf("Record %s is a single repeated residue (%d long)", r.ID, len(r.Seq))
		}
	}
	ids, descriptions, seqs := fasta.Split(records)

	c, err := corpus.FromRecords(seqs, cfg.Sentinel())
	if err != nil {
		return nil, err
	}
	ix, err := index.Build(c, cfg.Rule())
	if err != nil {
		return nil, err
	}
	cat, err := catalog.New(c, ids, descriptions)
	if err != nil {
		return nil, err
	}
	blog.Infof("Indexed %d records, %s entries in %v",
		len(records), utils.FormatWithCommas(ix.Len()), time.Since(start))

	b := &store.Bundle{Index: ix, Catalog: cat}
	if err := utils.EnsureDir(filepath.Dir(prefix)); err != nil {
		blog.Warnf("Index not saved: %v", err)
		return b, nil
	}
	if err := store.Save(b, prefix); err != nil {
		blog.Warnf("Index not saved: %v", err)
	}
	return b, nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printVersion() {
	vlog := logger.NewWithConfig(os.Stderr, "", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	vlog.SetStyles(styles)

	vlog.Print("")
	vlog.Print("[ MassFind ] Finds peptides by mass, fast")
	vlog.Print("", "version", Version)
	vlog.Print("")
	vlog.Print("use -h or --help to see available options")
	vlog.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the loaded index.
func showStartupInfo(prefix string, stats map[string]int) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("==========")
	println(" MassFind ")
	println("==========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("index: ( %s )", prefix)
	log.Infof("entries: %s, records: %s",
		utils.FormatWithCommas(stats["entries"]), utils.FormatWithCommas(stats["records"]))
	log.Info("status: ready")
	println("==========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
