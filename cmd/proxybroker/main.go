// proxybroker discovers, validates, and serves open proxy servers.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/markdingo/proxybroker/internal/constants"
)

var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer // All I/O goes via these writers
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ProgramName, ": ")
	fmt.Fprintln(stderr, args...)
	return 1
}

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution, the same reset-for-testability shape trustydns-proxy/main.go uses.
func mainInit(out, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	stopChannel = make(chan os.Signal, 4)
	signal.Notify(stopChannel, syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	if len(args) < 2 {
		usage(stdout)
		return 1
	}

	mode := args[1]
	if mode == "-h" || mode == "--help" {
		usage(stdout)
		return 0
	}

	fs := flag.NewFlagSet(args[0]+" "+mode, flag.ContinueOnError)
	fs.SetOutput(stderr)
	addGlobalFlags(fs, cfg)

	var run func(*flag.FlagSet) int
	switch mode {
	case "grab":
		addCountriesFlag(fs, cfg)
		addListingFlags(fs, cfg)
		run = runGrab
	case "find":
		addCountriesFlag(fs, cfg)
		addListingFlags(fs, cfg)
		addValidationFlags(fs, cfg)
		run = runFind
	case "serve":
		addCountriesFlag(fs, cfg)
		addValidationFlags(fs, cfg)
		addServeFlags(fs, cfg)
		run = runServe
	default:
		fmt.Fprintln(stderr, "Unknown sub-command:", mode)
		usage(stderr)
		return 1
	}

	if err := fs.Parse(args[2:]); err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ProgramName, "Version:", consts.Version)
		return 0
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal(err)
		}
	}

	if len(cfg.cpuprofile) > 0 || len(cfg.memprofile) > 0 {
		stop, err := startProfiling(cfg.cpuprofile, cfg.memprofile)
		if err != nil {
			return fatal(err)
		}
		defer stop()
	}

	return run(fs)
}

func uptime() string {
	return time.Now().Sub(startTime).Truncate(time.Second).String()
}
