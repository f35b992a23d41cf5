package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"leadgen-agent/internal/app"
	"leadgen-agent/internal/async"
	"leadgen-agent/internal/config"
	"leadgen-agent/internal/consumer"
	"leadgen-agent/internal/integrations/paramstore"
	"leadgen-agent/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateNotifier()
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

	runner := async.NewRunner(log, 0)
	proc, err := app.NewProcessor(ctx, cfg, ssmClient, runner, log)
	if err != nil {
		log.Error("failed to create processor", "err", err)
		os.Exit(1)
	}
	h, err := consumer.NewSQSHandler(proc, runner.Wait, log)
	if err != nil {
		log.Error("failed to create SQS handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
