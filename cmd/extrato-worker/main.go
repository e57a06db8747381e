package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"extrato/internal/amqp"
	"extrato/internal/cli"
	"extrato/internal/log"
	"extrato/internal/source"
	"extrato/internal/worker"
)

func main() {
	enqueue := flag.String("enqueue", "", "publish an analysis request for this CSV file and exit")
	sheet := flag.String("enqueue-sheet", "", "publish an analysis request for this sheet range and exit")
	formats := flag.String("format", "", "comma-separated report formats for -enqueue")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	if *enqueue != "" || *sheet != "" {
		if err := publish(client, *enqueue, *sheet, *formats); err != nil {
			logger.Error("Failed to enqueue analysis request", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	pipeline, err := cli.NewPipeline(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize pipeline", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewAnalysisWorker(pipeline, source.NewFactory(logger), client, cfg, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	go func() {
		logger.Info("Starting extrato worker",
			"queue", cfg.AMQPQueue,
			"completed_queue", client.CompletedQueue(),
			"output_dir", cfg.OutputDir)
		if err := client.ConsumeRequests(ctx, w.HandleRequest); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

func publish(client *amqp.Client, path, sheetRange, formats string) error {
	var list []string
	for _, f := range strings.Split(formats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			list = append(list, f)
		}
	}
	req := amqp.NewAnalysisRequest(path, list...)
	req.SheetRange = sheetRange

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.PublishRequest(ctx, req); err != nil {
		return err
	}
	fmt.Println(req.ID)
	return nil
}
