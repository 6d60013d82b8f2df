// pspm is the command line interface to the psychophysiology data
// toolbox.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/config"
	"github.com/ZhangSihui999/PsPM/internal/dsp"
	"github.com/ZhangSihui999/PsPM/internal/importer"
	"github.com/ZhangSihui999/PsPM/internal/interp"
	"github.com/ZhangSihui999/PsPM/internal/logging"
	"github.com/ZhangSihui999/PsPM/internal/preproc"
	"github.com/ZhangSihui999/PsPM/internal/store"
	"github.com/ZhangSihui999/PsPM/internal/watcher"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	sessionPath = flag.String("session", "", "path to session file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {
	case "import":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: pspm import <file>...")
			os.Exit(1)
		}
		cmdImport(args)
	case "channels":
		cmdChannels()
	case "history":
		cmdHistory()
	case "delete":
		cmdDelete(args)
	case "preprocess":
		cmdPreprocess(args)
	case "emg":
		cmdEMG(args)
	case "interpolate":
		cmdInterpolate(args)
	case "watch":
		cmdWatch()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `pspm - psychophysiology data toolbox

Usage: pspm [options] <command> [args]

Commands:
  import <file>...   Import vendor recordings into the session
  channels           List session channels
  history            Print the session change history
  delete <target>    Delete channels by id or type
  preprocess         Run a filter method on one channel
  emg                Run the EMG preprocessing pipeline
  interpolate        Fill missing samples in waveform channels
  watch              Watch the inbox and auto-import recordings
  help               Show this help message

Options:
  -config <path>    Path to config file
  -session <path>   Path to the session file (default session.json)`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("loading config: %v", err)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fatal("%v", err)
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		fatal("%v", err)
	}
	logging.SetDefault(logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    os.Stderr,
		Component: "pspm",
	}))
	return cfg
}

// openSession opens the session backend named by -session, falling
// back to a default file name matching the configured backend.
func openSession(cfg *config.Config) store.Backend {
	path := *sessionPath
	if path == "" {
		if cfg.Session.Backend == "sqlite" {
			path = "session.db"
		} else {
			path = "session.json"
		}
	}
	b, err := store.Open(path, channel.Default())
	if err != nil {
		fatal("opening session %s: %v", path, err)
	}
	return b
}

// parseSelector reads a channel target: a numeric id or a type tag.
func parseSelector(s string) preproc.Selector {
	if id, err := strconv.Atoi(s); err == nil {
		return preproc.Selector{ID: id}
	}
	return preproc.Selector{Type: s}
}

func cmdImport(paths []string) {
	cfg := loadConfig()
	b := openSession(cfg)
	defer b.Close()

	for _, path := range paths {
		ids, err := importer.ImportInto(b, path, channel.Default(), importer.All())
		if err != nil {
			fatal("importing %s: %v", path, err)
		}
		fmt.Printf("%s: imported channels %v\n", path, ids)
	}
}

func cmdChannels() {
	cfg := loadConfig()
	b := openSession(cfg)
	defer b.Close()

	sess, err := b.Load()
	if err != nil {
		fatal("loading session: %v", err)
	}
	if sess.Len() == 0 {
		fmt.Println("No channels")
		return
	}

	fmt.Printf("%-4s %-10s %-7s %10s %9s %s\n", "ID", "TYPE", "KIND", "RATE", "SAMPLES", "UNITS")
	for _, sel := range sess.Channels() {
		c := sel.Channel
		rate := "-"
		if c.Kind == channel.Waveform {
			rate = strconv.FormatFloat(c.SampleRate, 'g', -1, 64)
		}
		fmt.Printf("%-4d %-10s %-7s %10s %9d %s\n",
			sel.ID, c.Type, c.Kind, rate, len(c.Data), c.Units)
	}
	fmt.Printf("\nDuration: %.2f s\n", sess.Duration())
}

func cmdHistory() {
	cfg := loadConfig()
	b := openSession(cfg)
	defer b.Close()

	sess, err := b.Load()
	if err != nil {
		fatal("loading session: %v", err)
	}
	for _, h := range sess.History() {
		fmt.Printf("%s  %-8s  %s\n", h.At.Format(time.RFC3339), h.Action, h.Message)
	}
}

func cmdDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	policyFlag := fs.String("policy", "last", "which matches to delete: first, last or all")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pspm delete [-policy first|last|all] <id|type>")
		os.Exit(1)
	}

	policy, err := store.ParsePolicy(*policyFlag)
	if err != nil {
		fatal("%v", err)
	}
	var target store.Target
	if id, convErr := strconv.Atoi(fs.Arg(0)); convErr == nil {
		target = store.ByID(id)
	} else {
		target = store.ByType(fs.Arg(0))
	}

	cfg := loadConfig()
	b := openSession(cfg)
	defer b.Close()

	var removed []int
	err = store.Update(b, func(sess *store.Session) error {
		var err error
		removed, err = sess.Delete(target, policy, "")
		return err
	})
	if err != nil {
		fatal("deleting %s: %v", target, err)
	}
	if len(removed) == 0 {
		fmt.Println("No matching channels")
		return
	}
	fmt.Printf("Deleted channels %v\n", removed)
}

func cmdPreprocess(args []string) {
	fs := flag.NewFlagSet("preprocess", flag.ExitOnError)
	method := fs.String("method", "", "median, butter or leaky_integrator")
	channelFlag := fs.String("channel", "", "source channel id or type")
	mode := fs.String("mode", "add", "write mode: add or replace")
	window := fs.Int("window", 0, "median window in timepoints")
	tau := fs.Float64("tau", 0, "leaky integrator time constant in seconds")
	lp := fs.Float64("lp", math.NaN(), "low-pass cutoff in Hz")
	lpOrder := fs.Int("lporder", 0, "low-pass order")
	hp := fs.Float64("hp", math.NaN(), "high-pass cutoff in Hz")
	hpOrder := fs.Int("hporder", 0, "high-pass order")
	down := fs.Float64("down", math.NaN(), "downsample to this rate in Hz")
	bidir := fs.Bool("bidir", false, "apply filters in both directions (zero phase)")
	fs.Parse(args)

	if *method == "" || *channelFlag == "" {
		fmt.Fprintln(os.Stderr, "Usage: pspm preprocess -method <m> -channel <id|type> [options]")
		os.Exit(1)
	}

	spec := dsp.NoFilter()
	spec.LowPassFreq = *lp
	spec.LowPassOrder = *lpOrder
	spec.HighPassFreq = *hp
	spec.HighPassOrder = *hpOrder
	spec.DownsampleRate = *down
	if *bidir {
		spec.Direction = dsp.Bidirectional
	}

	op, err := preproc.NewOperator(*method, preproc.MethodParams{
		Window:       *window,
		Filter:       spec,
		TimeConstant: *tau,
	})
	if err != nil {
		fatal("%v", err)
	}
	writeMode, err := preproc.ParseWriteMode(*mode)
	if err != nil {
		fatal("%v", err)
	}

	cfg := loadConfig()
	b := openSession(cfg)
	defer b.Close()

	res, err := preproc.RunFile(b, op, parseSelector(*channelFlag), writeMode)
	if err != nil {
		fatal("%s: %v", op.Name(), err)
	}
	report(res)
}

func cmdEMG(args []string) {
	fs := flag.NewFlagSet("emg", flag.ExitOnError)
	mains := fs.Float64("mains", 0, "mains frequency in Hz (default from config)")
	channelFlag := fs.String("channel", "", "source channel id or type (default newest emg)")
	mode := fs.String("mode", "add", "write mode: add or replace")
	fs.Parse(args)

	cfg := loadConfig()

	writeMode, err := preproc.ParseWriteMode(*mode)
	if err != nil {
		fatal("%v", err)
	}
	opts := preproc.EMGOptions{
		MainsFrequency: *mains,
		WriteMode:      writeMode,
	}
	if opts.MainsFrequency == 0 {
		opts.MainsFrequency = cfg.Preproc.MainsFrequency
	}
	if *channelFlag != "" {
		opts.Channel = parseSelector(*channelFlag)
	}

	b := openSession(cfg)
	defer b.Close()

	res, err := preproc.RunEMGFile(b, opts)
	if err != nil {
		fatal("emg: %v", err)
	}
	report(res)
}

func cmdInterpolate(args []string) {
	fs := flag.NewFlagSet("interpolate", flag.ExitOnError)
	method := fs.String("method", "linear", "interpolation method")
	extrap := fs.Bool("extrapolate", false, "allow extrapolation at the boundaries")
	channelFlag := fs.String("channel", "", "channel id or type (default: all waveforms)")
	mode := fs.String("mode", "add", "write mode: add or replace")
	fs.Parse(args)

	m, err := interp.ParseMethod(*method)
	if err != nil {
		fatal("%v", err)
	}
	writeMode, err := preproc.ParseWriteMode(*mode)
	if err != nil {
		fatal("%v", err)
	}
	opts := preproc.InterpolateOptions{
		Method:             m,
		AllowExtrapolation: *extrap,
		WriteMode:          writeMode,
	}
	if *channelFlag != "" {
		opts.Channels = []preproc.Selector{parseSelector(*channelFlag)}
	}

	cfg := loadConfig()
	b := openSession(cfg)
	defer b.Close()

	outcomes, err := preproc.RunInterpolateFile(b, opts)
	if err != nil {
		fatal("interpolate: %v", err)
	}
	for _, oc := range outcomes {
		if oc.Err != nil {
			fmt.Printf("channel %d: skipped: %v\n", oc.Source, oc.Err)
			continue
		}
		fmt.Printf("channel %d -> %d: filled %.1f%% of samples\n",
			oc.Source, oc.ChannelID, oc.Fraction*100)
		for _, w := range oc.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
}

func cmdWatch() {
	cfg := loadConfig()
	if cfg.Import.Inbox == "" {
		fatal("no inbox configured (set import.inbox in the config file)")
	}

	log := logging.Default().WithComponent("watch")

	var exts []string
	importers := importer.All()
	for _, imp := range importers {
		exts = append(exts, imp.Extensions()...)
	}

	w, err := watcher.New(cfg.Import.Inbox, time.Duration(cfg.Import.DebounceMs)*time.Millisecond, exts)
	if err != nil {
		fatal("creating watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		fatal("starting watcher: %v", err)
	}

	b := openSession(cfg)
	defer b.Close()

	log.Info("watching inbox", "path", cfg.Import.Inbox)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-w.Events():
			ids, err := importer.ImportInto(b, ev.Path, channel.Default(), importers)
			if err != nil {
				log.Error("import failed", "path", ev.Path, "error", err)
				continue
			}
			log.Info("imported", "path", ev.Path, "channels", ids)
		case err := <-w.Errors():
			log.Error("watcher error", "error", err)
		case <-sigCh:
			log.Info("shutting down")
			if err := w.Stop(); err != nil {
				log.Error("stopping watcher", "error", err)
			}
			return
		}
	}
}

func report(res preproc.Result) {
	fmt.Printf("Wrote channel %d\n", res.ChannelID)
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
