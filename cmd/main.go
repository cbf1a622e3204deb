// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"anonymail/internal/config"
	"anonymail/internal/message"
	"anonymail/internal/observability"
	"anonymail/internal/providers"
	"anonymail/internal/providers/entity"
	"anonymail/internal/providers/llm"
	"anonymail/internal/synthetic"
	"anonymail/internal/web"
)

func main() {
	inputFile := flag.String("file", "", "Path to the raw email message (.eml), or '-' for stdin")
	outputFile := flag.String("output", "", "Path to the anonymized output (default: stdout)")
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	providerName := flag.String("provider", "", "Replacement provider: entity or llm")
	mode := flag.String("mode", "", "Entity provider mode: alias or tag")
	entityTypes := flag.String("entities", "", "Comma-separated entity types to detect, e.g. 'PERSON,EMAIL_ADDRESS' (default: all)")
	refill := flag.Bool("refill", false, "Refill <ENTITY_TYPE> tags with synthetic values (implies -mode tag)")
	verbose := flag.Bool("verbose", false, "Display per-run replacement statistics")
	debug := flag.Bool("debug", false, "Enable debug logging of pipeline events")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	webMode := flag.Bool("web", false, "Start the web server instead of processing a file")
	webPort := flag.Int("port", 0, "Port for the web server")
	flag.Parse()

	path := *configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal("%v", err)
	}
	applyFlags(cfg, *providerName, *mode, *entityTypes, *refill, *verbose, *debug, *noColor, *webPort)

	color.NoColor = cfg.Defaults.NoColor

	level := observability.LevelOff
	if cfg.Defaults.Verbose {
		level = observability.LevelMetrics
	}
	if cfg.Defaults.Debug {
		level = observability.LevelDebug
	}
	observer := observability.New(level, os.Stderr)

	factory, err := providerFactory(cfg, observer)
	if err != nil {
		fatal("%v", err)
	}

	if *webMode {
		server := web.NewServer(cfg.Web.Host, cfg.Web.Port, factory, observer)
		if err := server.Start(); err != nil {
			fatal("web server: %v", err)
		}
		return
	}

	if *inputFile == "" && flag.NArg() > 0 {
		*inputFile = flag.Arg(0)
	}
	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: anonymail -file message.eml [-output out.eml] [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	raw, err := readInput(*inputFile)
	if err != nil {
		fatal("reading input: %v", err)
	}

	anonymizer := message.NewAnonymizer(factory(), observer)
	if cfg.Defaults.Refill {
		refiller := synthetic.New(refillProvider(cfg, factory), observer)
		anonymizer.MapTransform = refiller.RefillValues
	}

	out, m, err := anonymizer.Anonymize(raw)
	if err != nil {
		fatal("%v", err)
	}

	if err := writeOutput(*outputFile, out); err != nil {
		fatal("writing output: %v", err)
	}

	if len(m) == 0 {
		color.New(color.FgYellow, color.Bold).Fprintln(os.Stderr,
			"WARNING: no replacements were generated; the output is NOT anonymized")
	} else if cfg.Defaults.Verbose {
		color.New(color.FgGreen).Fprintf(os.Stderr, "Replaced %d distinct values\n", len(m))
	}
}

// applyFlags overlays explicitly set command line flags onto the loaded
// configuration.
func applyFlags(cfg *config.Config, provider, mode, entities string, refill, verbose, debug, noColor bool, port int) {
	if provider != "" {
		cfg.Defaults.Provider = provider
	}
	if mode != "" {
		cfg.Defaults.Mode = mode
	}
	if entities != "" {
		cfg.Entities = strings.Split(entities, ",")
	}
	if refill {
		cfg.Defaults.Refill = true
		cfg.Defaults.Mode = "tag"
	}
	if verbose {
		cfg.Defaults.Verbose = true
	}
	if debug {
		cfg.Defaults.Debug = true
	}
	if noColor {
		cfg.Defaults.NoColor = true
	}
	if port > 0 {
		cfg.Web.Port = port
	}

	switch cfg.Defaults.Provider {
	case "entity", "llm":
	default:
		fatal("unknown provider %q (want entity or llm)", cfg.Defaults.Provider)
	}
}

// providerFactory returns a constructor for fresh provider instances, one
// per anonymization run, so aliasing state never crosses runs.
func providerFactory(cfg *config.Config, observer *observability.Observer) (web.ProviderFactory, error) {
	switch cfg.Defaults.Provider {
	case "llm":
		key := cfg.APIKey()
		if key == "" {
			var err error
			key, err = promptAPIKey(cfg.LLM.APIKeyEnv)
			if err != nil {
				return nil, err
			}
		}
		opts := llm.Options{
			Endpoint: cfg.LLM.Endpoint,
			Model:    cfg.LLM.Model,
			APIKey:   key,
			Timeout:  cfg.LLM.Timeout,
		}
		return func() providers.Provider { return llm.New(opts, observer) }, nil
	default:
		var m entity.Mode
		if cfg.Defaults.Mode == "tag" {
			m = entity.ModeTag
		}
		entities := cfg.Entities
		return func() providers.Provider { return entity.New(m, entities, observer) }, nil
	}
}

// refillProvider returns the generative provider backing the refiller. The
// entity detector cannot invent fake values, so only the llm provider is
// handed over; otherwise the refiller uses its builtin pool.
func refillProvider(cfg *config.Config, factory web.ProviderFactory) providers.Provider {
	if cfg.Defaults.Provider != "llm" {
		return nil
	}
	return factory()
}

// promptAPIKey reads the key interactively when stdin is a terminal;
// otherwise it fails so scripted runs do not hang.
func promptAPIKey(envName string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no API key: set %s or run interactively", envName)
	}
	fmt.Fprintf(os.Stderr, "API key (%s is unset): ", envName)
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("empty API key")
	}
	return strings.TrimSpace(string(key)), nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func fatal(format string, args ...interface{}) {
	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
