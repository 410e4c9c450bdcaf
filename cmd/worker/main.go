package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/outreach/internal/queue"
	"github.com/OFFIS-RIT/outreach/internal/storage"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/logger/console"
	"github.com/OFFIS-RIT/outreach/pkg/mailer"
	"github.com/OFFIS-RIT/outreach/pkg/runlock"
	pgstore "github.com/OFFIS-RIT/outreach/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// Init s3 client
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}

	// Mail client
	mail, err := mailer.NewClient(mailer.NewClientParams{
		APIKey:        util.GetEnv("RESEND_API_KEY"),
		BaseURL:       util.GetEnv("RESEND_BASE_URL"),
		From:          util.GetEnv("MAIL_FROM"),
		Timeout:       util.GetEnvDuration("MAIL_TIMEOUT", 30*time.Second),
		RatePerSecond: util.GetEnvNumeric("MAIL_RATE_PER_SECOND", 0),
	})
	if err != nil {
		logger.Fatal("Could not create mail client", "err", err)
	}

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	st := pgstore.NewFlowDBStorageWithConnection(pgConn)

	if err := queue.RecoverStaleRuns(ctx, st); err != nil {
		logger.Error("Failed to recover stale runs", "err", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := dispatch.NewMetrics("outreach", reg)
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", int(util.GetEnvNumeric("METRICS_PORT", 9090))),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	pub := queue.NewChannelPublisher(ch)

	// Cancel events arrive on their own channel so that they are never
	// blocked behind dispatch deliveries.
	cancelCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open cancel channel", "err", err)
	}
	defer cancelCh.Close()
	cancels, err := queue.SubscribeTopic(cancelCh, queue.CancelPattern)
	if err != nil {
		logger.Fatal("Failed to subscribe to cancel events", "err", err)
	}

	registry := queue.NewRegistry()
	go queue.ListenForCancels(ctx, cancels, registry)

	hostname, _ := os.Hostname()
	worker := &queue.Worker{
		Store:    st,
		Locks:    runlock.New(pgConn),
		Send:     mail.SendItem,
		Pub:      pub,
		Metrics:  metrics,
		Reports:  storage.NewReports(s3Client, util.GetEnv("AWS_BUCKET")),
		Registry: registry,
		Owner:    hostname + "-",
	}

	// Prefetch bounds the number of runs this worker drives at once.
	maxRuns := max(int(util.GetEnvNumeric("WORKER_MAX_RUNS", 4)), 1)
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(maxRuns, 0, false)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.DispatchQueue,
		"dispatch_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.DispatchQueue, "err", err)
	}

	logger.Info("Listening for messages", "max_runs", maxRuns)

	var wg sync.WaitGroup
	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.DispatchQueue)
					stop()
					return
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					startTime := time.Now()
					logger.Info("Received message", "queue", queue.DispatchQueue)

					if err := worker.ProcessDispatchMessage(ctx, msg.Body); err != nil {
						logger.Error("Error processing message", "queue", queue.DispatchQueue, "err", err)
						queue.HandleProcessingError(pub, msg, queue.DispatchQueue)
						return
					}
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}

					processingDuration := time.Since(startTime)
					hours := int(processingDuration.Hours())
					minutes := int(processingDuration.Minutes()) % 60
					seconds := int(processingDuration.Seconds()) % 60
					logger.Info(
						"Message processed successfully",
						"queue", queue.DispatchQueue,
						"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
					)
				}()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, waiting for active runs", "active", registry.Len())
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("Worker stopped")
}
