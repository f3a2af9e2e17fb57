package main

import (
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/hagbeck/containerterminal/pkg/brick"
	_ "github.com/hagbeck/containerterminal/pkg/firmata"
	_ "github.com/hagbeck/containerterminal/pkg/sim"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"ctcontrol.json" description:"Configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Debug logging"`

	Setup SetupCommand `command:"setup" description:"Choose the hardware backend and write the configuration"`
	Run   RunCommand   `command:"run" description:"Run the container terminal control program"`
	Info  InfoCommand  `command:"info" description:"Probe the configured hardware"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "ctcontrol - LEGO container terminal control"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// logFile receives the logs while the TUI owns the terminal.
const logFile = "ctcontrol.log"

// newLogger returns the process logger. With tui set, logs go to logFile
// when verbose and are discarded otherwise.
func newLogger(tui bool) golog.Logger {
	if !tui {
		if opts.Verbose {
			return golog.NewDevelopmentLogger("ctcontrol")
		}
		return golog.NewLogger("ctcontrol")
	}
	if !opts.Verbose {
		return zap.NewNop().Sugar()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{logFile}
	cfg.ErrorOutputPaths = []string{logFile}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar().Named("ctcontrol")
}

// loadConfig loads the configuration or exits with a hint to run setup.
func loadConfig() *brick.Config {
	cfg, err := brick.LoadConfigFrom(opts.Config)
	if err != nil {
		fatalf("No configuration found in %s. Run 'ctcontrol setup' first.\n", opts.Config)
	}
	return cfg
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
