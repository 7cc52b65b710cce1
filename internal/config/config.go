package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FilenameTimestamp names uploads "<unix seconds>_<original name>".
	FilenameTimestamp = "timestamp"
	// FilenameUUID names uploads "<uuid>_<original name>".
	FilenameUUID = "uuid"
)

type Config struct {
	Port            int    `yaml:"port" validate:"min=1,max=65535"`
	StaticDirectory string `yaml:"staticDir" validate:"required"`
	UploadDirectory string `yaml:"uploadDir" validate:"required"`
	ResultDirectory string `yaml:"resultDir" validate:"required"`

	ModelPath           string  `yaml:"modelPath" validate:"required"`
	ModelConfigPath     string  `yaml:"modelConfigPath"` // SSD graph config; empty means ONNX YOLO
	LabelsPath          string  `yaml:"labelsPath"`
	InputSize           int     `yaml:"inputSize" validate:"min=32,max=4096"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold" validate:"gt=0,lte=1"`
	NMSThreshold        float64 `yaml:"nmsThreshold" validate:"gt=0,lte=1"`
	DetectorWorkers     int     `yaml:"detectorWorkers" validate:"min=1,max=64"`
	FeedResized         bool    `yaml:"feedResized"` // Feed the resized bitmap (not the original) to the detector

	FilenameStrategy string `yaml:"filenameStrategy" validate:"oneof=timestamp uuid"`
	MaxUploadSize    int64  `yaml:"maxUploadMB" validate:"min=1"` // MiB
	JPEGQuality      int    `yaml:"jpegQuality" validate:"min=1,max=100"`

	DatabasePath    string        `yaml:"dbPath"` // empty disables prediction history
	LogDirectory    string        `yaml:"logDir" validate:"required"`
	LogLevel        string        `yaml:"logLevel" validate:"oneof=debug info warning error"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
}

// Default returns the built-in configuration, laid out as the
// static/uploads + static/results tree.
func Default() *Config {
	static := filepath.Join(".", "static")
	return &Config{
		Port:                8080,
		StaticDirectory:     static,
		UploadDirectory:     filepath.Join(static, "uploads"),
		ResultDirectory:     filepath.Join(static, "results"),
		ModelPath:           filepath.Join(".", "models", "best.onnx"),
		InputSize:           640,
		ConfidenceThreshold: 0.25,
		NMSThreshold:        0.7,
		DetectorWorkers:     2,
		FeedResized:         true,
		FilenameStrategy:    FilenameTimestamp,
		MaxUploadSize:       32,
		JPEGQuality:         95,
		DatabasePath:        filepath.Join(".", "data", "predictions.db"),
		LogDirectory:        filepath.Join(".", "logs"),
		LogLevel:            "info",
		ShutdownTimeout:     10 * time.Second,
	}
}

// Load builds the configuration from .env, an optional YAML file named by
// CONFIG_FILE and environment variables, in that order of increasing priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.StaticDirectory = getEnv("STATIC_DIR", c.StaticDirectory)
	c.UploadDirectory = getEnv("UPLOAD_DIR", c.UploadDirectory)
	c.ResultDirectory = getEnv("RESULT_DIR", c.ResultDirectory)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", c.ModelConfigPath)
	c.LabelsPath = getEnv("LABELS_PATH", c.LabelsPath)
	c.InputSize = getEnvAsInt("INPUT_SIZE", c.InputSize)
	c.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.NMSThreshold = getEnvAsFloat("NMS_THRESHOLD", c.NMSThreshold)
	c.DetectorWorkers = getEnvAsInt("DETECTOR_WORKERS", c.DetectorWorkers)
	c.FeedResized = getEnvAsBool("FEED_RESIZED", c.FeedResized)
	c.FilenameStrategy = strings.ToLower(getEnv("FILENAME_STRATEGY", c.FilenameStrategy))
	c.MaxUploadSize = getEnvAsInt64("MAX_UPLOAD_MB", c.MaxUploadSize)
	c.JPEGQuality = getEnvAsInt("JPEG_QUALITY", c.JPEGQuality)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSize << 20
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
