package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/api"
	"smartcomments/pkg/censor"
	"smartcomments/pkg/client"
	"smartcomments/pkg/config"
	"smartcomments/pkg/devbackend"
)

func main() {
	var (
		configPath     string
		envFile        string
		httpAddr       string
		backendURL     string
		logLevel       string
		kafkaAddr      string
		kafkaTopic     string
		kafkaBatch     int
		dev            bool
		devAddr        string
		censorConfPath string
	)

	flag.StringVar(&configPath, "servconf", "cmd/server/config.toml", "Path to TOML config file")
	flag.StringVar(&envFile, "env", ".env", "Path to optional .env file")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&backendURL, "api", "", "Backend API base URL, e.g. http://localhost:8000/api.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	flag.StringVar(&kafkaTopic, "topic", "", "Kafka topic.")
	flag.IntVar(&kafkaBatch, "batch", 0, "Kafka batch size.")
	flag.BoolVar(&dev, "dev", false, "Start the in-memory development backend and use it.")
	flag.StringVar(&devAddr, "devaddr", "", "Development backend address in the form 'host:port'.")
	flag.StringVar(&censorConfPath, "censconf", "", "Path to JSON moderation rules for the development backend.")
	flag.Parse()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		log.Fatalf("[server] failed to load config: %v", err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if kafkaAddr != "" {
		cfg.KafkaAddr = kafkaAddr
	}
	if kafkaTopic != "" {
		cfg.KafkaTopic = kafkaTopic
	}
	if kafkaBatch != 0 {
		cfg.KafkaBatch = kafkaBatch
	}
	if dev {
		cfg.Dev = true
	}
	if devAddr != "" {
		cfg.DevAddr = devAddr
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] %v", err)
	}

	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	var devSrv *http.Server
	if cfg.Dev {
		devSrv = startDevBackend(cfg.DevAddr, censorConfPath)
		cfg.BackendURL = cfg.DevBackendURL()
	}

	backend, err := client.New(cfg.BackendURL, client.WithTimeout(cfg.Timeout()))
	if err != nil {
		log.Fatalf("[server] failed to create backend client: %v", err)
	}
	log.Infof("[server] using backend %s", backend.BaseURL())

	var kafkaWriter *kafka.Writer
	if cfg.KafkaEnabled() {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
		}
		err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic)
		if err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
	} else {
		log.Warnf("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	var lw api.LogWriter
	if kafkaWriter != nil {
		lw = kafkaWriter
	}

	frontend, err := api.New(cfg.ServiceName, backend, lw)
	if err != nil {
		log.Fatalf("[server] failed to create API: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: frontend.Router(),
	}

	go func() {
		log.Infof("[server] starting on %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}

	if devSrv != nil {
		if err := devSrv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("[server] dev backend shutdown error: %v", err)
		}
	}

	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			log.Errorf("[server] failed to close Kafka writer: %v", err)
		}
	}
}

// startDevBackend serves the in-memory backend on addr with a couple of
// seeded posts.
func startDevBackend(addr, censorConfPath string) *http.Server {
	c := censor.New()
	if censorConfPath != "" {
		if err := c.LoadFromJSON(censorConfPath); err != nil {
			log.Fatalf("[server] failed to load censor config file %s: %v", censorConfPath, err)
		}
	}

	backend := devbackend.New(devbackend.WithCensor(c))
	backend.Store.AddPost("Welcome", "This blog runs on the development backend. Comments are moderated by a rule list.")
	backend.Store.AddPost("Second post", "Try posting a comment with lots of exclamation marks!!!")

	srv := &http.Server{
		Addr:    addr,
		Handler: backend.Router(),
	}

	go func() {
		log.Infof("[server] dev backend starting on %v", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] dev backend failed to start: %v", err)
		}
	}()

	return srv
}

func createTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
