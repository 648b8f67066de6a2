package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/journal"
	"gitlab.com/slon/readerswriters/mailbox"
	"gitlab.com/slon/readerswriters/metrics"
	"gitlab.com/slon/readerswriters/report"
	"gitlab.com/slon/readerswriters/simulate"
)

func run(ctx context.Context, cfg Config, out io.Writer, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer stop()
	}

	runner := simulate.Runner{
		Factory: simulate.Factory{RendezvousTimeout: cfg.RendezvousTimeout},
		Logger:  logger,
		Metrics: m,
	}
	if cfg.Console {
		runner.Sink = event.NewConsole(out)
	} else {
		runner.Sink = event.NewLog(logger.Named("events"))
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		runner.Factory.Mailboxes = func() (mailbox.Mailbox, mailbox.Mailbox, error) {
			id, err := uuid.NewV4()
			if err != nil {
				return nil, nil, err
			}
			prefix := "readerswriters:" + id.String()
			return mailbox.NewRedis(rdb, prefix+":readers"), mailbox.NewRedis(rdb, prefix+":writers"), nil
		}
	}

	var store *journal.Store
	if cfg.PostgresDSN != "" {
		var err error
		store, err = journal.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var results []simulate.Result
	for _, name := range cfg.Strategies {
		fmt.Fprintf(out, "\n== %s\n", name)

		res, err := runner.Run(ctx, name, cfg.plan())
		if err != nil {
			return err
		}
		results = append(results, res)

		if store != nil {
			if err := store.Record(ctx, res.RunID, res.Events); err != nil {
				return fmt.Errorf("record %s run: %w", name, err)
			}
		}
	}

	if cfg.Report != "" {
		if err := report.Write(cfg.Report, results); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", cfg.Report))
	}

	fmt.Fprintln(out)
	return report.Print(out, results)
}
