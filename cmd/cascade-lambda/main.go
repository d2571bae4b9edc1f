package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/syllabus/internal/app"
	"github.com/jacentio/syllabus/internal/config"
	"github.com/jacentio/syllabus/internal/logging"
	"github.com/jacentio/syllabus/stream"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		l := logging.New("error", false)
		l.Fatal().Err(err).Msg("loading config")
	}
	log := logging.New(cfg.LogLevel, false)

	client, err := app.NewDynamoClient(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("creating dynamodb client")
	}
	a, err := app.NewDynamo(client, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring application")
	}

	h := stream.NewHandler(a.Store, a.DetailsBackend, log)
	lambda.Start(h.HandleCascadeDelete)
}
