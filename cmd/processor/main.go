package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adrve/cloud-analytics/internal/commands"
	"github.com/adrve/cloud-analytics/internal/config"
	"github.com/adrve/cloud-analytics/internal/database"
	"github.com/adrve/cloud-analytics/internal/decision"
	"github.com/adrve/cloud-analytics/internal/dispatch"
	"github.com/adrve/cloud-analytics/internal/forwarder"
	"github.com/adrve/cloud-analytics/internal/kafka"
	"github.com/adrve/cloud-analytics/internal/observability"
	"github.com/adrve/cloud-analytics/internal/processor"
	"github.com/adrve/cloud-analytics/internal/s3"
	"github.com/adrve/cloud-analytics/internal/services/inference"
)

func main() {
	log.Println("Pipeline: init...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Чтение конфига
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	// Инициализация базы данных
	db, err := database.New(cfg.Postgres.DSN)
	if err != nil {
		log.Fatal(err)
	}
	err = db.Init()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Init S3 client
	s3Client, err := s3.NewMinioClient(
		cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
		cfg.Minio.FragmentBucket, cfg.Minio.FrameBucket)
	if err != nil {
		log.Fatalf("Ошибка подключения к MinIO: %v", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer producer.Close()

	metrics := observability.New()

	// Форвардер: сырые конверты -> топик уведомлений
	rawConsumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-forwarder", cfg.Kafka.RawTopic)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer rawConsumer.Close()
	rawConsumer.StartListening(ctx)

	fwd := forwarder.New(producer, cfg.Kafka.NotificationTopic)
	go fwd.Run(ctx, rawConsumer.Messages())

	// Диспетчер: уведомления -> инвокации извлечения
	dispatcher := dispatch.New(producer, cfg.Pipeline.StreamName, cfg.Pipeline.DefaultDeviceID,
		cfg.Kafka.InvocationTopic, metrics)

	if cfg.Dispatch.Mode == "poll" {
		// Деградированный fallback: опрос последнего фрагмента по таймеру
		poller := dispatch.NewPoller(s3Client, dispatcher, cfg.Pipeline.StreamName, cfg.PollInterval())
		go poller.Run(ctx)
	} else {
		notificationConsumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-dispatcher", cfg.Kafka.NotificationTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		defer notificationConsumer.Close()
		notificationConsumer.StartListening(ctx)
		go dispatcher.Run(ctx, notificationConsumer.Messages())
	}

	// Воркер извлечения и инференса
	detectClient := inference.NewClient(cfg.Inference.Endpoint, cfg.Inference.Model,
		time.Duration(cfg.Inference.TimeoutSeconds)*time.Second)
	decider := decision.New(cfg.Pipeline.CriticalClasses, cfg.Pipeline.ConfidenceThreshold)
	publisher := commands.NewPublisher(producer, db, cfg.Kafka.CommandTopicPrefix)

	invocationConsumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-worker", cfg.Kafka.InvocationTopic)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer invocationConsumer.Close()
	invocationConsumer.StartListening(ctx)

	proc := processor.New(s3Client, detectClient, db, decider, publisher, cfg.DetectionTTL(), metrics)
	go proc.Run(ctx, invocationConsumer.Messages())

	// Метрики
	go func() {
		http.Handle("/metrics", metrics.Handler())
		log.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
		if err := http.ListenAndServe(cfg.Metrics.Addr, nil); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Завершение работы...")
	cancel() // Stop goroutines
}
