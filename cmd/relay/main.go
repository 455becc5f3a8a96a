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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"guardian_relay/internal/config"
	"guardian_relay/internal/domain"
	"guardian_relay/internal/publisher"
	"guardian_relay/internal/secrets"
	"guardian_relay/internal/service"
	"guardian_relay/internal/source/guardian"
	"guardian_relay/internal/storage/postgres"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one relay run. Logs go to stderr and only the queue address
// is written to stdout. It returns 0 once a run was attempted, 1 for startup
// failures and 2 for usage errors.
func run(argv []string, stdout, stderr io.Writer) int {
	args, err := parseArgs(argv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	// Setup logger
	logger := setupLogger("info", stderr)

	// Load configuration
	cfg, err := config.Load(args.configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	logger = setupLogger(cfg.LogLevel, stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load aws config", "error", err)
		return 1
	}

	// Resolve the API key once for the whole process
	var store secrets.Store
	switch cfg.Secrets.Backend {
	case config.SecretsBackendEnv:
		store = secrets.NewEnvStore(cfg.Secrets.EnvVar)
	default:
		store = secrets.NewAWSStore(secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		}))
	}

	apiKey, err := secrets.NewResolver(store, logger).APIKey(ctx, cfg.Secrets.Name)
	if err != nil {
		logger.Error("api key unavailable, nothing published", "secret", cfg.Secrets.Name)
		return 0
	}

	// Initialize queue broker
	var broker publisher.Broker
	switch cfg.Queue.Backend {
	case config.QueueBackendRabbitMQ:
		broker, err = publisher.NewRabbitMQ(publisher.RabbitMQConfig{
			URL:      cfg.Queue.RabbitMQ.URL,
			Exchange: cfg.Queue.RabbitMQ.Exchange,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			return 1
		}
	default:
		broker = publisher.NewSQS(sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		}))
	}
	pub := publisher.New(broker, cfg.Queue.Retention, logger)
	defer pub.Close()

	// Optional run ledger
	var recorder service.RunRecorder
	if cfg.Database.Enabled() {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()

		logger.Info("connected to database")
		recorder = postgres.NewRunStore(db, postgres.NewTransactionManager(db))
	}

	src := guardian.New(guardian.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  apiKey,
		Timeout: cfg.API.Timeout,
	}, logger)

	pipeline := service.NewPipeline(src, pub, recorder, cfg.Queue.Name, logger)

	report, err := pipeline.Run(ctx, args.query, args.correlationID)
	if err != nil {
		logger.Error("run finished without a queue", "error", err)
		return 0
	}

	fmt.Fprintln(stdout, report.QueueURL)
	return 0
}

type cliArgs struct {
	configPath    string
	query         domain.SearchQuery
	correlationID string
}

// parseArgs accepts flags before, between and after the two positionals.
// Everything after a "--" terminator is positional.
func parseArgs(argv []string, output io.Writer) (cliArgs, error) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Post up to 10 most recent Guardian search results to a message queue.\n\n")
		fmt.Fprintf(fs.Output(), "usage: relay [flags] <search_term> <correlation_id>\n\n")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "config.yaml", "path to config file")
	dateFrom := fs.String("date_from", "", "only return results published on or after this ISO 8601 date, e.g. 2023-01-01")
	fs.StringVar(dateFrom, "d", "", "shorthand for -date_from")
	exactMatch := fs.Bool("exact_match", false, "match the search term as an exact phrase")
	fs.BoolVar(exactMatch, "e", false, "shorthand for -exact_match")

	var positional []string
	rest := argv
	for {
		if err := fs.Parse(rest); err != nil {
			return cliArgs{}, err
		}
		remaining := fs.Args()
		if len(remaining) == 0 {
			break
		}
		if consumed := len(rest) - len(remaining); consumed > 0 && rest[consumed-1] == "--" {
			positional = append(positional, remaining...)
			break
		}
		positional = append(positional, remaining[0])
		rest = remaining[1:]
	}

	if len(positional) != 2 {
		fs.Usage()
		return cliArgs{}, fmt.Errorf("expected 2 positional arguments, got %d", len(positional))
	}
	if positional[0] == "" {
		fs.Usage()
		return cliArgs{}, fmt.Errorf("search term must not be empty")
	}

	q := domain.SearchQuery{
		Term:       positional[0],
		ExactMatch: *exactMatch,
	}
	if *dateFrom != "" {
		d := *dateFrom
		q.DateFrom = &d
	}

	return cliArgs{
		configPath:    *configPath,
		query:         q,
		correlationID: positional[1],
	}, nil
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}
