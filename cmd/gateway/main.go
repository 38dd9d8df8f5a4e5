package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type options struct {
	configPath  string
	showVersion bool
	showHelp    bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", os.Getenv("GATEWAY_CONFIG"), "Path to the YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.showHelp, "help", false, "Show help message")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if opts.showHelp {
		showHelp()
		return
	}
	if opts.showVersion {
		showVersion()
		return
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.WithFields(logrus.Fields{
		"version":     version,
		"environment": cfg.Environment,
	}).Info("Starting prompt gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize gateway")
	}
	if err := app.Run(ctx); err != nil {
		log.WithError(err).Fatal("Gateway stopped with error")
	}
	log.Info("Gateway stopped")
}

func showHelp() {
	fmt.Printf(`Helix Prompt Gateway

Serves prompt configurations and prompt completions over gRPC.

Usage:
  gateway [options]

Options:
  -config string
        Path to the YAML configuration file (env GATEWAY_CONFIG)
  -version
        Show version information
  -help
        Show this help message

Environment overrides:
  GATEWAY_ENV, SERVICE_NAME, LOG_LEVEL, LOG_FORMAT
  GRPC_HOST, GRPC_PORT, GRPC_ADVERTISE_ADDRESS, GRPC_TLS_CERT_FILE, GRPC_TLS_KEY_FILE
  ADMIN_PORT, JWT_SECRET, AUTH_DISABLED
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME
  REDIS_HOST, REDIS_PORT, REDIS_PASSWORD
  PROMPT_STORE_BACKEND, PROMPT_STORE_FILE, OPENAI_API_KEY
  KAFKA_BROKERS, AMQP_URL, ETCD_ENDPOINTS

A .env file in the working directory is loaded first when present.
`)
}

func showVersion() {
	fmt.Printf("gateway %s (built %s, %s %s/%s)\n", version, buildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
