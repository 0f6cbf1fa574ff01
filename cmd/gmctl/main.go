// cmd/gmctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"greymatter/internal/config"
	"greymatter/internal/protocol"
	"greymatter/internal/utils"
	"greymatter/pkg/greymatter"
)

// options holds the parsed command line
type options struct {
	device   string
	address  string
	pico     string
	zmqPort  int
	baudRate int
	timeout  time.Duration
	list     bool
	logLevel string
	args     []string
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}

	flags := pflag.NewFlagSet("gmctl", pflag.ContinueOnError)
	flags.StringVarP(&opts.device, "device", "d", "", "serial port of a directly attached board")
	flags.StringVarP(&opts.address, "address", "a", "", "host of a routing server")
	flags.StringVarP(&opts.pico, "pico", "p", "", "board name on the routing server (e.g. pico_0)")
	flags.IntVar(&opts.zmqPort, "zmq-port", protocol.DefaultPort, "routing server port")
	flags.IntVarP(&opts.baudRate, "baudrate", "b", 115200, "serial baud rate")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 2*time.Second, "command timeout")
	flags.BoolVarP(&opts.list, "list", "l", false, "list the boards registered on the routing server")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gmctl (--device PORT | --address HOST [--pico NAME]) [COMMAND...]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	opts.args = flags.Args()

	switch {
	case opts.device != "" && opts.address != "":
		return nil, errors.New("--device and --address are mutually exclusive")
	case opts.list && opts.address == "":
		return nil, errors.New("--list requires --address")
	case opts.device == "" && opts.address == "":
		return nil, errors.New("one of --device or --address is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "gmctl: %v\n", err)
		os.Exit(2)
	}

	logger, err := utils.NewLogger(&config.LoggingConfig{
		Level:  opts.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gmctl: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gmctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, logger *zap.Logger, out io.Writer) error {
	if opts.list {
		devices, err := greymatter.ListPicos(ctx, opts.address, opts.zmqPort, opts.timeout)
		if err != nil {
			return err
		}
		printDevices(out, devices)
		return nil
	}

	gm, err := open(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer gm.Close()

	if len(opts.args) > 0 {
		failed := false
		for _, cmd := range opts.args {
			if !execute(gm, cmd, out) {
				failed = true
			}
		}
		if failed {
			return errors.New("one or more commands failed")
		}
		return nil
	}

	editor := NewLineEditor()
	defer editor.Close()
	return repl(editor, gm, out)
}

func open(ctx context.Context, opts *options, logger *zap.Logger) (*greymatter.Controller, error) {
	gmOpts := greymatter.Options{
		BaudRate: opts.baudRate,
		Timeout:  opts.timeout,
		ZMQPort:  opts.zmqPort,
		Logger:   logger,
	}

	if opts.device != "" {
		logger.Info("Opening serial port", zap.String("port", opts.device))
		return greymatter.OpenSerial(ctx, opts.device, gmOpts)
	}

	var pico *string
	if opts.pico != "" {
		pico = &opts.pico
	}
	logger.Info("Connecting to routing server",
		zap.String("address", opts.address),
		zap.Int("port", opts.zmqPort),
	)
	return greymatter.OpenRemote(ctx, opts.address, pico, gmOpts)
}

func printDevices(out io.Writer, devices []greymatter.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No Pico boards connected")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(out, "%-8s %-20s %s\n", d.Name, d.Port, d.IDN)
	}
}
