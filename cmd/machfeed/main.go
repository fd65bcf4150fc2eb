// Command machfeed streams a gcode file to a machine-control device
// (3D printer, CNC controller) over a serial line, TCP socket, or stdio,
// pacing transmission on the per-line "ok" acknowledgments most
// firmwares emit.
//
// Usage:
//
//	machfeed [options] <gcode-file> [<connection-string>]
//
// <gcode-file> is either a filename or '-' for stdin.
// <connection-string> is a tty path with optional parameters
// ("/dev/ttyACM0,b115200,-crtscts"), a "host:port" TCP endpoint, or '-'
// for stdio passthrough. A connection of /dev/null implies a dry run.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/machfeed/machfeed/gcode"
	"github.com/machfeed/machfeed/logger"
	"github.com/machfeed/machfeed/machine"
	"github.com/machfeed/machfeed/stream"
)

const (
	defaultConnection    = "/dev/ttyACM0,b115200"
	inputBufferSize      = 1 << 20
	progressInterval     = 5 * time.Second
	defaultSettleMs      = 2500
	defaultBlockBufCount = 1
)

// fileConfig mirrors the command line options for users who prefer a
// YAML file over flags. Flags win over the file where both are given.
type fileConfig struct {
	Connection       string   `yaml:"connection"`
	BlockBufferCount int      `yaml:"block_buffer_count"`
	SettleMs         int      `yaml:"settle_ms"`
	FailureKeywords  []string `yaml:"failure_keywords"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

type options struct {
	settleMs     int
	blockCount   int
	keepComments bool
	dryRun       bool
	quiet        bool
	noFlow       bool
	verbose      bool
	configPath   string

	gcodePath  string
	connection string
	keywords   []string
}

func parseOptions() (*options, error) {
	opt := &options{}

	flag.IntVar(&opt.settleMs, "s", defaultSettleMs,
		"wait this many milliseconds for init chatter from the machine to subside")
	flag.IntVar(&opt.blockCount, "b", defaultBlockBufCount,
		"number of blocks sent out buffered before checking the returning flow-control 'ok'; careful, low-memory machines might drop data")
	flag.BoolVar(&opt.keepComments, "c", false,
		"include semicolon end-of-line comments (stripped by default)")
	flag.BoolVar(&opt.dryRun, "n", false,
		"dry-run: read gcode but don't actually send anything")
	flag.BoolVar(&opt.quiet, "q", false,
		"quiet: don't echo regular communication or progress")
	flag.BoolVar(&opt.noFlow, "F", false,
		"disable waiting for 'ok'-acknowledge flow control")
	flag.BoolVar(&opt.verbose, "v", false, "enable debug logging")
	flag.StringVar(&opt.configPath, "config", "", "optional YAML config file")

	flag.Usage = usage
	flag.Parse()

	if opt.blockCount < 1 {
		return nil, fmt.Errorf("invalid block buffer count %d", opt.blockCount)
	}
	if opt.settleMs < 0 {
		return nil, fmt.Errorf("invalid settle timeout %d", opt.settleMs)
	}
	if flag.NArg() < 1 {
		usage()
		return nil, fmt.Errorf("expected a gcode filename")
	}

	opt.gcodePath = flag.Arg(0)
	if flag.NArg() > 1 {
		opt.connection = flag.Arg(1)
	}

	if opt.configPath != "" {
		fc, err := loadFileConfig(opt.configPath)
		if err != nil {
			return nil, err
		}
		if opt.connection == "" {
			opt.connection = fc.Connection
		}
		if opt.blockCount == defaultBlockBufCount && fc.BlockBufferCount > 0 {
			opt.blockCount = fc.BlockBufferCount
		}
		if opt.settleMs == defaultSettleMs && fc.SettleMs > 0 {
			opt.settleMs = fc.SettleMs
		}
		opt.keywords = fc.FailureKeywords
	}

	if opt.connection == "" {
		opt.connection = defaultConnection
	}

	// Sending to the bit bucket means we don't want to send at all.
	if opt.connection == "/dev/null" {
		opt.dryRun = true
	}

	return opt, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  %s [options] <gcode-file> [<connection-string>]

<gcode-file> is either a filename or '-' for stdin.

<connection-string> is one of
  * a path to a tty device, with optional comma-separated bit-rate and
    flow-control parameters: /dev/ttyACM0,b115200,-crtscts
    Valid bit-rates: %v. Hardware flow control (crtscts) defaults to on.
  * host:port for devices that receive gcode via TCP: localhost:4444
  * '-' to write to stdout and read responses from stdin, useful for
    debugging or wiring up with e.g. socat.

If no connection is given, the default is %s.

Options:
`, os.Args[0], machine.SupportedBaudRates, defaultConnection)
	flag.PrintDefaults()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "machfeed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opt, err := parseOptions()
	if err != nil {
		return err
	}

	level := logger.InfoLevel
	if opt.verbose {
		level = logger.DebugLevel
	}
	if opt.quiet {
		level = logger.WarnLevel
	}
	log := logger.NewSlog(level, false)

	input, err := openInput(opt.gcodePath)
	if err != nil {
		return err
	}
	defer input.Close()

	var conn *machine.Connection
	if !opt.dryRun {
		conn, err = machine.Open(opt.connection, machine.WithLogger(log))
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	engOpts := []stream.Option{
		stream.WithLogger(log),
		stream.WithSettleTimeout(time.Duration(opt.settleMs) * time.Millisecond),
		stream.WithBlockBufferCount(opt.blockCount),
		stream.WithFlowControl(!opt.noFlow),
		stream.WithDryRun(opt.dryRun),
	}
	if len(opt.keywords) > 0 {
		engOpts = append(engOpts, stream.WithFailureKeywords(opt.keywords...))
	}
	if !opt.quiet {
		engOpts = append(engOpts, stream.WithCommWriter(os.Stderr))
	}
	if h := operatorPrompt(); h != nil {
		engOpts = append(engOpts, stream.WithErrorHandler(h))
	}

	eng, err := stream.NewEngine(conn, engOpts...)
	if err != nil {
		return err
	}

	log.Info("sending file",
		"file", opt.gcodePath,
		"connection", opt.connection,
		"dryRun", opt.dryRun)

	stop := make(chan struct{})
	if !opt.quiet {
		go reportProgress(log, eng.Metrics(), stop)
	}

	src := gcode.NewLineReader(input, inputBufferSize, !opt.keepComments)
	runErr := eng.Run(src)
	close(stop)

	return runErr
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open input %s: %w", path, err)
	}

	return f, nil
}

// operatorPrompt returns the interactive error handler, or nil when
// running unattended. Unattended runs abort on the first machine
// failure; silently dropping a failed instruction on a physical machine
// is unsafe.
func operatorPrompt() stream.ErrorHandler {
	if !isTerminal(os.Stdin) {
		return nil
	}

	stdin := bufio.NewReader(os.Stdin)

	return func(block []byte, ack stream.Ack) error {
		fmt.Fprint(os.Stderr,
			"\033[41m\033[30m[ Didn't get OK. Continue: ENTER; stop: CTRL-C ]\033[0m\n")

		_, err := stdin.ReadString('\n')

		return err
	}
}

// reportProgress periodically logs the run counters until stop closes.
func reportProgress(log logger.Logger, m *stream.Metrics, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log.Info("progress",
				"sent", m.BlocksSent.Value(),
				"ok", m.OkCount.Value(),
				"errors", m.ErrorCount.Value(),
				"messages", m.MessageCount.Value())
		}
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()

	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
