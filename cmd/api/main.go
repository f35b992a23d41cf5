package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"leadgen-agent/handler"
	"leadgen-agent/internal/app"
	"leadgen-agent/internal/async"
	"leadgen-agent/internal/config"
	"leadgen-agent/internal/integrations/imagestore"
	"leadgen-agent/internal/integrations/paramstore"
	"leadgen-agent/internal/integrations/queue"
	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/repository"
	"leadgen-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateAPI()
	}
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Env)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		log.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		log.Error("failed to create conversation store", "err", err)
		os.Exit(1)
	}
	producer, err := queue.NewSQSProducer(awssqs.NewFromConfig(awsCfg), cfg.QueueURL)
	if err != nil {
		log.Error("failed to create queue producer", "err", err)
		os.Exit(1)
	}

	var images usecase.ImageResolver
	if cfg.ImageBucket != "" {
		presign := awss3.NewPresignClient(awss3.NewFromConfig(awsCfg))
		resolver, err := imagestore.NewResolver(presign, cfg.ImageBucket, imagestore.WithKeyPrefix(cfg.ImageKeyPrefix))
		if err != nil {
			log.Error("failed to create image resolver", "err", err)
			os.Exit(1)
		}
		images = resolver
	}

	runner := async.NewRunner(log, 0)
	services, err := app.NewServices(ctx, cfg, app.APIDeps{
		Secrets: ssmClient,
		Store:   store,
		Queue:   producer,
		Images:  images,
		Runner:  runner,
		Log:     log,
	})
	if err != nil {
		log.Error("failed to create services", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(services.Chat, services.Leads,
		handler.WithDrain(runner.Wait),
		handler.WithLogger(log),
	)
	if err != nil {
		log.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
