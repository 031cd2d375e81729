package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type AppConfig struct {
	HTTPAddr        string
	ProcessingDelay time.Duration
	KafkaBrokers    []string
}

const defaultProcessingDelaySeconds = 30

func loadDotenv() {
	// config.env опционален: в контейнере все приходит через окружение
	if err := godotenv.Load(filepath.Join("config.env")); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "config.env not loaded: %v\n", err)
	}
}

func LoadConfigDB() (*DBConfig, error) {
	loadDotenv()

	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	return &DBConfig{
		Host:         os.Getenv("DB_HOST"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func LoadConfigApp() (*AppConfig, error) {
	loadDotenv()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	delaySeconds := defaultProcessingDelaySeconds
	if raw := os.Getenv("PROCESSING_DELAY_SECONDS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid PROCESSING_DELAY_SECONDS: %q", raw)
		}
		delaySeconds = parsed
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return &AppConfig{
		HTTPAddr:        addr,
		ProcessingDelay: time.Duration(delaySeconds) * time.Second,
		KafkaBrokers:    brokers,
	}, nil
}
