// Command server runs the chat and lead API over HTTP together with an
// asynq worker that delivers owner notifications.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"leadgen-agent/internal/app"
	"leadgen-agent/internal/async"
	"leadgen-agent/internal/config"
	"leadgen-agent/internal/consumer"
	"leadgen-agent/internal/httpserver"
	"leadgen-agent/internal/integrations/imagestore"
	"leadgen-agent/internal/integrations/paramstore"
	"leadgen-agent/internal/integrations/queue"
	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/repository"
	"leadgen-agent/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Env)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}
	// Environment secrets win; SSM covers whatever is not set locally.
	secrets := paramstore.Chain{config.StaticSecrets(cfg.ParamPrefix, os.Getenv), ssmClient}

	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		return err
	}

	redisOpt, err := queue.RedisClientOpt(cfg.Server.RedisURL, cfg.Server.RedisTLSInsecure)
	if err != nil {
		return err
	}
	client := asynq.NewClient(redisOpt)
	defer func() { _ = client.Close() }()
	producer, err := queue.NewAsynqProducer(client, cfg.Server.AsynqQueue)
	if err != nil {
		return err
	}

	var images usecase.ImageResolver
	if cfg.ImageBucket != "" {
		presign := awss3.NewPresignClient(awss3.NewFromConfig(awsCfg))
		resolver, err := imagestore.NewResolver(presign, cfg.ImageBucket, imagestore.WithKeyPrefix(cfg.ImageKeyPrefix))
		if err != nil {
			return err
		}
		images = resolver
	}

	runner := async.NewRunner(log, 0)
	services, err := app.NewServices(ctx, cfg, app.APIDeps{
		Secrets: secrets,
		Store:   store,
		Queue:   producer,
		Images:  images,
		Runner:  runner,
		Log:     log,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	proc, err := app.NewProcessor(ctx, cfg, secrets, runner, log)
	if err != nil {
		return err
	}
	taskHandler, err := consumer.NewAsynqHandler(proc)
	if err != nil {
		return err
	}
	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskLeadNotification, taskHandler)

	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.ConsumerConcurrency,
		Queues:      map[string]int{cfg.Server.AsynqQueue: 1},
		Logger:      newAsynqLogger(log),
	})

	srv, err := httpserver.New(httpserver.Config{
		Addr:           cfg.Server.HTTPAddr,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Development:    cfg.IsDevelopment(),
	}, services.Chat, services.Leads, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		if err := worker.Start(mux); err != nil {
			return err
		}
		<-gctx.Done()
		worker.Shutdown()
		return nil
	})
	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownDrainTimeout)
	defer cancel()
	if werr := runner.Wait(drainCtx); werr != nil {
		log.Warn("background tasks still running at shutdown", "err", werr)
	}
	return err
}
