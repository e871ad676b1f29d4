// The worker binary runs the background jobs: the periodic sweep that flags
// pending installments past their due date as overdue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fergasdev/backend-fergas/internal/config"
	"github.com/fergasdev/backend-fergas/internal/credit"
	"github.com/fergasdev/backend-fergas/internal/db"
	"github.com/fergasdev/backend-fergas/internal/obs"
)

const serviceName = "backend-fergas-worker"

// Cron spec for the overdue sweep: every day shortly after midnight.
const overdueSweepSpec = "15 0 * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := obs.NewLogger("json", "info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", serviceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, serviceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	obs.MustRegisterDomainMetrics("fergas", nil)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	asynqRedis := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}

	server := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency: 2,
		Logger:      asynqZerolog{logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(credit.TaskMarkOverdue, credit.OverdueHandler{
		Store:  credit.PGOverdueStore{Pool: pool},
		Logger: logger,
	})

	scheduler := asynq.NewScheduler(asynqRedis, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register(overdueSweepSpec, credit.NewMarkOverdueTask()); err != nil {
		logger.Fatal().Err(err).Msg("register overdue sweep")
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal().Err(err).Msg("scheduler failed")
		}
	}()
	go func() {
		if err := server.Run(mux); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	logger.Info().Msg("worker running")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	scheduler.Shutdown()
	server.Shutdown()
}

// asynqZerolog adapts zerolog to asynq's Logger interface.
type asynqZerolog struct {
	l zerolog.Logger
}

func (a asynqZerolog) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqZerolog) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqZerolog) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqZerolog) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqZerolog) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
