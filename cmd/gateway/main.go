package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/adrve/cloud-analytics/internal/api"
	"github.com/adrve/cloud-analytics/internal/commands"
	"github.com/adrve/cloud-analytics/internal/config"
	"github.com/adrve/cloud-analytics/internal/database"
	"github.com/adrve/cloud-analytics/internal/janitor"
	"github.com/adrve/cloud-analytics/internal/kafka"
	"github.com/adrve/cloud-analytics/internal/observability"
	"github.com/adrve/cloud-analytics/internal/s3"
	"github.com/adrve/cloud-analytics/internal/watchdog"
	"github.com/gorilla/mux"
)

func main() {
	log.Println("Gateway: init...")

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

	// Инициализация s3
	minioClient, err := s3.NewMinioClient(
		cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
		cfg.Minio.FragmentBucket, cfg.Minio.FrameBucket)
	if err != nil {
		log.Fatalf("Failed connect to MinIO: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Продюсер для ручных команд оператора
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer producer.Close()
	publisher := commands.NewPublisher(producer, db, cfg.Kafka.CommandTopicPrefix)

	// Горутина для heartbeat'ов устройств + watchdog живости
	heartbeatConsumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-heartbeats", cfg.Kafka.HeartbeatTopic)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer heartbeatConsumer.Close()
	heartbeatConsumer.StartListening(ctx)

	watchDog := watchdog.New(db, cfg.StaleAfter())
	go watchDog.ConsumeHeartbeats(ctx, heartbeatConsumer.Messages())
	go watchDog.Start(ctx)

	// Горутина для экспирации детекций по ttl
	go janitor.StartJanitor(ctx, db, time.Minute)

	// Настройка роутера
	metrics := observability.New()
	r := mux.NewRouter()
	handlers := api.NewHandlers(db, minioClient, publisher)

	// Регистрация обработчиков
	r.HandleFunc("/detections", handlers.GetDetectionsHandler).Methods("GET")
	r.HandleFunc("/command", handlers.PostCommandHandler).Methods("POST")
	r.HandleFunc("/commands", handlers.GetCommandsHandler).Methods("GET")
	r.HandleFunc("/devices", handlers.GetDevicesHandler).Methods("GET")
	r.HandleFunc("/frames/{frame_id}", handlers.GetFrameHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Запуск сервера
	log.Printf("Starting gateway API server on %s", cfg.HTTP.Addr)
	log.Fatal(http.ListenAndServe(cfg.HTTP.Addr, r))
}
