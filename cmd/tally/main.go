package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	logMaxSizeMB  = 5
	logMaxAgeDays = 14
	logMaxBackups = 5
)

// ready is set to true once the reporter is running, and is used by the
// health endpoint to distinguish "starting up" from "running".
var ready atomic.Bool

var (
	// release variables
	Version   string
	Timestamp string
	GitCommit string

	// CLI
	cli struct {
		globals

		// flags
		Log       string `type:"path" default:"${log_file}" env:"TALLY_LOG" help:"Log file path"`
		Verbosity int    `type:"counter" default:"0" short:"v" env:"TALLY_VERBOSITY" help:"Log level verbosity"`
		LogLevel  string `default:"" env:"TALLY_LOG_LEVEL" help:"Log level (trace,debug,info,warn,error,fatal)"`

		// commands
		Soak    soakCmd    `cmd:"" help:"Run a synthetic workload and report its counters"`
		Summary summaryCmd `cmd:"" help:"Summarise a counters log"`
	}
)

type globals struct {
	Version versionFlag `name:"version" help:"Print version information and quit"`
}

type versionFlag string

func (versionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (versionFlag) IsBool() bool                       { return true }
func (versionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error { //nolint:unparam // satisfies kong.Hook interface
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	// parse cli
	ctx := kong.Parse(&cli,
		kong.Name("tally"),
		kong.Description("Report process counters"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Summary: true,
			Compact: true,
		}),
		kong.Vars{
			"version":     fmt.Sprintf("%s (%s@%s)", Version, GitCommit, Timestamp),
			"config_file": filepath.Join(defaultConfigDirectory("tally"), "config.yml"),
			"log_file":    filepath.Join(defaultConfigDirectory("tally"), "activity.log"),
		},
	)

	if err := ctx.Validate(); err != nil {
		fmt.Println("Failed parsing cli:", err)
		os.Exit(1)
	}

	// logger
	setupLogger()

	if err := ctx.Run(); err != nil {
		log.Fatal().
			Err(err).
			Str("command", ctx.Command()).
			Msg("Command Failed")
	}
}

// defaultConfigDirectory returns the per-user config directory for app, or
// the working directory when the platform has none.
func defaultConfigDirectory(app string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}

	return filepath.Join(dir, app)
}

// setupLogger configures the global zerolog logger using the CLI flags.
// Log level is set from --log-level if provided, otherwise from verbosity count.
func setupLogger() {
	logger := log.Output(io.MultiWriter(zerolog.ConsoleWriter{
		TimeFormat: time.Stamp,
		Out:        os.Stderr,
	}, &lumberjack.Logger{
		Filename:   cli.Log,
		MaxSize:    logMaxSizeMB,
		MaxAge:     logMaxAgeDays,
		MaxBackups: logMaxBackups,
	}))

	if cli.LogLevel != "" {
		level, err := zerolog.ParseLevel(cli.LogLevel)
		if err != nil {
			log.Logger = logger.Level(zerolog.InfoLevel)
			log.Fatal().Str("level", cli.LogLevel).Msg("Invalid Log Level")
		}

		log.Logger = logger.Level(level)

		return
	}

	switch {
	case cli.Verbosity == 1:
		log.Logger = logger.Level(zerolog.DebugLevel)
	case cli.Verbosity > 1:
		log.Logger = logger.Level(zerolog.TraceLevel)
	default:
		log.Logger = logger.Level(zerolog.InfoLevel)
	}
}
