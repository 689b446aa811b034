// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command nfcctl lists NFC adapters, polls them for tags and reads or
// writes NDEF text on Mifare tags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-nfcctl"
	"github.com/ZaparooProject/go-nfcctl/polling"
	"github.com/ZaparooProject/go-nfcctl/tagops"
)

const (
	// maxDevices bounds the device list, as the kernel tool does.
	maxDevices = 4

	sessionTimeout = 2 * time.Second
)

var (
	errUsage        = errors.New("no command given")
	errNoTagWritten = errors.New("no tag was written before the timeout")
)

type config struct {
	writeText   string
	logDir      string
	protocols   nfcctl.ProtocolMask
	timeout     time.Duration
	verbose     bool
	listDevices bool
	poll        bool
	read        bool
	logFile     bool
}

func parseConfig(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{}
	var protocols string

	fs := flag.NewFlagSet("nfcctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&cfg.verbose, "v", false, "Enable verbosity")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Enable verbosity")
	fs.BoolVar(&cfg.listDevices, "d", false, "List all attached NFC devices")
	fs.BoolVar(&cfg.listDevices, "list-devices", false, "List all attached NFC devices")
	fs.BoolVar(&cfg.poll, "poll", false, "Poll all devices and print the targets they find")
	fs.BoolVar(&cfg.read, "read", false, "Poll and print the NDEF message of every Mifare tag found")
	fs.StringVar(&cfg.writeText, "write-text", "", "Poll and write text to the next Mifare tag found (exits after write)")
	fs.StringVar(&protocols, "protocols", "all", "Protocols to poll for, e.g. mifare,felica")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "Stop polling after this long (0 polls until interrupted)")
	fs.BoolVar(&cfg.logFile, "log", false, "Write a debug session log file")
	fs.StringVar(&cfg.logDir, "log-dir", "", "Directory for the session log (default current directory)")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: nfcctl [-v] -d | -poll | -read | -write-text TEXT\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err //nolint:wrapcheck // flag already printed the problem
	}

	mask, err := nfcctl.ParseProtocolMask(protocols)
	if err != nil {
		return nil, fmt.Errorf("invalid -protocols: %w", err)
	}
	cfg.protocols = mask

	if cfg.read || cfg.writeText != "" {
		cfg.poll = true
	}
	if !cfg.listDevices && !cfg.poll {
		fs.Usage()
		return nil, errUsage
	}
	return cfg, nil
}

// app carries what one run needs
type app struct {
	out    io.Writer
	errOut io.Writer
	logger nfcctl.Logger
	dial   nfcctl.DialFunc
	cfg    *config
}

func (a *app) channelOptions() []nfcctl.Option {
	opts := []nfcctl.Option{
		nfcctl.WithLogger(a.logger),
		nfcctl.WithSessionTimeout(sessionTimeout),
	}
	if a.dial != nil {
		opts = append(opts, nfcctl.WithDialer(a.dial))
	}
	return opts
}

func (a *app) run(ctx context.Context) error {
	ch, err := nfcctl.Open(a.channelOptions()...)
	if err != nil {
		return fmt.Errorf("failed to open NFC control channel: %w", err)
	}

	if a.cfg.listDevices {
		defer func() {
			if err := ch.Close(); err != nil {
				a.logger.Debugf("closing channel: %v", err)
			}
		}()
		return a.listDevices(ch)
	}
	return a.runMonitor(ctx, ch)
}

func (a *app) listDevices(ch *nfcctl.Channel) error {
	devices, err := ch.Devices(maxDevices)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	printDevices(a.out, devices)
	return nil
}

func printDevices(w io.Writer, devices []nfcctl.Device) {
	if len(devices) == 0 {
		_, _ = fmt.Fprintln(w, "Info: There isn't any attached NFC device")
		return
	}
	if len(devices) > maxDevices {
		devices = devices[:maxDevices]
	}

	_, _ = fmt.Fprint(w, "NFC device list:\nIndex:\tName:\tProtocols:\n")
	for _, dev := range devices {
		_, _ = fmt.Fprintln(w, dev.String())
	}
}

func (a *app) runMonitor(ctx context.Context, ch *nfcctl.Channel) error {
	pollConfig := polling.DefaultConfig()
	pollConfig.Protocols = a.cfg.protocols
	pollConfig.DeviceCapacity = maxDevices

	monitor := polling.NewMonitor(ch, pollConfig)
	monitor.SetLogger(a.logger)
	monitor.SetRecoverer(polling.NewDefaultRecoverer(func() (*nfcctl.Channel, error) {
		return nfcctl.Open(a.channelOptions()...)
	}, pollConfig.Recovery.Backoff, pollConfig.Recovery.MaxAttempts))
	defer func() {
		if err := monitor.Close(); err != nil {
			a.logger.Debugf("closing monitor: %v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.cfg.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, a.cfg.timeout)
		defer cancelTimeout()
	}

	written := false
	monitor.OnTarget = func(ctx context.Context, ch *nfcctl.Channel, device uint32, target nfcctl.Target) error {
		_, _ = fmt.Fprintf(a.out, "Target found: device %d, target %d, protocols %s\n",
			device, target.Index, target.Protocols)

		if !a.cfg.read && a.cfg.writeText == "" {
			return nil
		}
		if !target.Protocols.Has(nfcctl.ProtocolMifare) {
			_, _ = fmt.Fprintln(a.out, "Target is not a Mifare tag, skipping")
			return nil
		}
		if err := a.handleTag(ctx, ch, device, target); err != nil {
			return err
		}
		if a.cfg.writeText != "" {
			written = true
			cancel()
		}
		return nil
	}
	monitor.OnError = func(err error) {
		_, _ = fmt.Fprintf(a.errOut, "Warning: %v\n", err)
	}

	if a.cfg.writeText != "" {
		_, _ = fmt.Fprintf(a.out, "Waiting for tag to write text: %q\n", a.cfg.writeText)
	} else {
		_, _ = fmt.Fprintln(a.out, "Polling for targets. Press Ctrl+C to stop...")
	}

	err := monitor.Run(runCtx)
	switch {
	case written:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		if a.cfg.writeText != "" {
			return errNoTagWritten
		}
		return nil
	case err != nil:
		return fmt.Errorf("polling stopped: %w", err)
	}
	return nil
}

func (a *app) handleTag(ctx context.Context, ch *nfcctl.Channel, device uint32, target nfcctl.Target) error {
	session, err := ch.OpenTarget(device, target.Index, nfcctl.ProtocolMifare)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Debugf("closing session: %v", err)
		}
	}()

	tag, err := session.Mifare()
	if err != nil {
		return fmt.Errorf("failed to create tag transport: %w", err)
	}
	return a.tagOperation(ctx, tagops.New(tag))
}

func (a *app) tagOperation(ctx context.Context, ops *tagops.TagOperations) error {
	if a.cfg.writeText != "" {
		if err := ops.WriteText(ctx, a.cfg.writeText); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
		_, _ = fmt.Fprintf(a.out, "Successfully wrote text to tag: %q\n", a.cfg.writeText)
		return nil
	}

	msg, err := ops.ReadNDEF(ctx)
	if errors.Is(err, tagops.ErrNoNDEF) {
		_, _ = fmt.Fprintln(a.out, "Tag holds no NDEF message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read NDEF: %w", err)
	}
	for i, rec := range msg.Records {
		_, _ = fmt.Fprintf(a.out, "  record %d: %s\n", i, tagops.RecordSummary(rec))
	}
	return nil
}

// newLogger builds the diagnostic sink from the verbosity and log flags.
// The returned function closes the session log, if any.
func newLogger(cfg *config, stderr io.Writer) (nfcctl.Logger, func(), error) {
	var sinks nfcctl.MultiLogger
	if cfg.verbose {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		sinks = append(sinks, nfcctl.NewSlogLogger(slog.New(handler)))
	}

	closeLog := func() {}
	if cfg.logFile {
		sessionLog, err := nfcctl.OpenSessionLog(cfg.logDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session log: %w", err)
		}
		_, _ = fmt.Fprintf(stderr, "Writing session log to %s\n", sessionLog.Path())
		sinks = append(sinks, sessionLog)
		closeLog = func() {
			if err := sessionLog.Close(); err != nil {
				_, _ = fmt.Fprintf(stderr, "Failed to close session log: %v\n", err)
			}
		}
	}

	switch len(sinks) {
	case 0:
		return nfcctl.LoggerFromEnv(), closeLog, nil
	case 1:
		return sinks[0], closeLog, nil
	default:
		return sinks, closeLog, nil
	}
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		if !errors.Is(err, errUsage) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 2
	}

	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	a := &app{out: os.Stdout, errOut: os.Stderr, logger: logger, cfg: cfg}
	if err := a.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
