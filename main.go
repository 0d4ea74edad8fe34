package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"netsniff/internal/analysis"
	"netsniff/internal/capture"
	"netsniff/internal/config"
	"netsniff/internal/discovery"
	"netsniff/internal/logging"
	"netsniff/internal/output"
	"netsniff/internal/reporting"
	"netsniff/internal/tui"
)

const appName = "netsniff"

func main() {
	cfg, list, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	logOpts := cfg.Logging()
	logging.ApplyEnv(&logOpts)
	logger := logging.New(os.Stderr, appName, logOpts)
	fatal := logging.CapLevel(logger, zerolog.FatalLevel)
	if err != nil {
		fatal.Fatal().Err(err).Msg("invalid arguments")
	}

	if list {
		if err := listInterfaces(os.Stdout); err != nil {
			fatal.Fatal().Err(err).Msg("failed to list interfaces")
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Example: netsniff -i wlan0")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		fatal.Fatal().Err(err).Msg("capture failed")
	}
}

// parseArgs builds the run config: defaults, then the -config file, then any
// flag given on the command line.
func parseArgs(args []string, stderr io.Writer) (config.Config, bool, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	iface := fs.String("i", "", "Network interface to capture from (e.g., eth0, wlan0)")
	replay := fs.String("r", "", "Read frames from a pcap file instead of an interface")
	var hex bool
	fs.BoolVar(&hex, "v", false, "Print a hex dump of every TCP and UDP payload")
	fs.BoolVar(&hex, "x", false, "Same as -v")
	watch := fs.Bool("w", false, "Show the live watch view instead of plain lines")
	noColor := fs.Bool("no-color", false, "Disable coloured output")
	configPath := fs.String("config", "", "Path to a TOML config file")
	list := fs.Bool("l", false, "List capture interfaces and exit")

	if err := fs.Parse(args); err != nil {
		return config.Default(), false, err
	}
	if fs.NArg() > 0 {
		return config.Default(), false, errors.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return cfg, false, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.Interface = strings.TrimSpace(*iface)
		case "r":
			cfg.ReplayFile = *replay
		case "v", "x":
			cfg.HexDump = hex
		case "w":
			cfg.Watch = *watch
		case "no-color":
			cfg.Color = !*noColor
		}
	})
	return cfg, *list, nil
}

func listInterfaces(w io.Writer) error {
	ifaces, err := capture.Interfaces()
	if err != nil {
		return err
	}
	for _, iface := range ifaces {
		line := iface.Name
		if iface.Description != "" {
			line += " (" + iface.Description + ")"
		}
		if len(iface.Addresses) > 0 {
			line += ": " + strings.Join(iface.Addresses, ", ")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// openSource resolves and opens the configured source. The returned
// interface name tags every trace line. A replayed file is named after the
// file and has no local networks.
func openSource(cfg config.Config) (capture.Source, capture.Interface, error) {
	if cfg.ReplayFile != "" {
		src, err := capture.OpenFile(cfg.ReplayFile)
		return src, capture.Interface{Name: filepath.Base(cfg.ReplayFile)}, err
	}

	iface, err := capture.ResolveInterface(cfg.Interface)
	if err != nil {
		return nil, capture.Interface{}, err
	}
	src, err := capture.Open(cfg.Capture())
	return src, iface, err
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	src, iface, err := openSource(cfg)
	if err != nil {
		return err
	}
	name := iface.Name
	logger.Info().
		Str("interface", name).
		Strs("addresses", iface.Addresses).
		Bool("hex", cfg.HexDump).
		Msg("interface selected")

	stats := analysis.NewTrafficStats(cfg.Analysis)
	inventory := discovery.NewInventory(&discovery.Config{Networks: iface.Networks})
	if cfg.Watch {
		return watch(ctx, cfg, src, name, stats, inventory, logger)
	}

	printer := output.NewPrinter(name, os.Stdout, logger,
		output.WithColor(cfg.Color),
		output.WithObserver(stats),
		output.WithObserver(inventory),
	)
	loop := capture.NewLoop(src, printer, cfg.HexDump)

	started := time.Now()
	err = loop.Run(ctx)
	if cfg.Summary {
		sess := reporting.Session{
			Interface:  name,
			Started:    started,
			Ended:      time.Now(),
			ReadErrors: loop.ReadErrors(),
			Hosts:      inventory.Hosts(),
		}
		if werr := reporting.WriteSummary(os.Stderr, sess, stats); werr != nil {
			logger.Error().Err(werr).Msg("failed to write summary")
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watch runs the capture loop behind the bubbletea view. The view stays up
// after the capture ends until the user quits.
func watch(ctx context.Context, cfg config.Config, src capture.Source, name string,
	stats *analysis.TrafficStats, inventory *discovery.Inventory, logger zerolog.Logger) error {
	model := tui.NewWatchModel(stats, inventory, name, cfg.Scrollback)
	p := tea.NewProgram(model, tea.WithAltScreen())

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := capture.NewLoop(src, tui.NewSink(name, p.Send, stats, inventory), cfg.HexDump)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := loop.Run(loopCtx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		p.Send(tui.CaptureDoneMsg{Err: err})
	}()

	_, err := p.Run()
	cancel()
	<-done

	logger.Info().
		Uint64("frames", loop.Frames()).
		Uint64("read_errors", loop.ReadErrors()).
		Int("hosts", inventory.Len()).
		Msg("watch ended")
	if err != nil {
		return errors.Wrap(err, "run watch view")
	}
	return nil
}
