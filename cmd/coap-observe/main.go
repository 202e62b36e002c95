// Command coap-observe is an interactive CoAP client with observe
// support.
//
// This command demonstrates the client engine with:
//   - CLI argument parsing
//   - Configuration file support
//   - Endpoint discovery via mDNS
//   - Interactive command interface
//   - Binary protocol event capture
//
// Usage:
//
//	coap-observe [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-listen string      Local bind address (default ":0")
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-capture string     Write a binary protocol event capture to this file
//
// Examples:
//
//	# Start with defaults
//	coap-observe
//
//	# Start with a config file and debug logging
//	coap-observe -config /etc/coap/client.yaml -log-level debug
//
//	# Capture all protocol events for later inspection
//	coap-observe -capture /tmp/session.cbor
//
// Interactive Commands:
//
//	observe <host:port> <path>  - Start observing a resource
//	cancel <n>                  - Cancel observation locally
//	deregister <n>              - Cancel and inform the peer
//	get <host:port> <path>      - Perform a single GET
//	list                        - List active observations
//	discover                    - Find CoAP endpoints via mDNS
//	quit                        - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coapkit/coap-go/pkg/client"
	"github.com/coapkit/coap-go/pkg/config"
	coaplog "github.com/coapkit/coap-go/pkg/log"
)

func main() {
	var (
		configFile  string
		listenAddr  string
		logLevel    string
		captureFile string
	)
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.StringVar(&listenAddr, "listen", "", "Local bind address")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&captureFile, "capture", "", "Write a binary protocol event capture to this file")
	flag.Parse()

	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags override the config file.
	if listenAddr != "" {
		cfg.ListenAddress = listenAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if captureFile != "" {
		cfg.CaptureFile = captureFile
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var events coaplog.Logger = coaplog.NoopLogger{}
	if cfg.CaptureFile != "" {
		capture, err := coaplog.NewFileLogger(cfg.CaptureFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open capture file: %v\n", err)
			os.Exit(1)
		}
		defer capture.Close()
		events = capture
		logger.Info("capturing protocol events", slog.String("file", cfg.CaptureFile))
	}

	c, err := client.New(client.Config{
		ListenAddress:  cfg.ListenAddress,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
		EventLogger:    events,
		Backoff:        cfg.Backoff(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start client: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	logger.Info("client started", slog.String("session", c.SessionID()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shell, err := newShell(c, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create shell: %v\n", err)
		os.Exit(1)
	}
	go shell.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		// Cancelled by the quit command.
	}
}
