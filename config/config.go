package config

import (
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tsawler/go-ucf/checkpoints"
)

// Config holds the settings shared by the ucf-check commands
type Config struct {
	DataRoot       string `env:"UCF_DATA_ROOT"        envDefault:"data/jpegs_256"`
	LabelFile      string `env:"UCF_LABEL_FILE"       envDefault:"data/labels.yaml"`
	FrameCountFile string `env:"UCF_FRAME_COUNT_FILE" envDefault:"data/frame_count.yaml"`
	TestListFile   string `env:"UCF_TEST_LIST_FILE"`
	FramesPerVideo int    `env:"UCF_FRAMES_PER_VIDEO" envDefault:"19"`
	RecordDir      string `env:"UCF_RECORD_DIR"       envDefault:"record"`

	Workers   int   `env:"UCF_WORKERS"    envDefault:"4"`
	BatchSize int   `env:"UCF_BATCH_SIZE" envDefault:"25"`
	Seed      int64 `env:"UCF_SEED"`
	ImageSize int   `env:"UCF_IMAGE_SIZE" envDefault:"224"`

	LogLevel string `env:"UCF_LOG_LEVEL" envDefault:"info"`

	MinIOEndpoint  string `env:"UCF_MINIO_ENDPOINT"   envDefault:"localhost:9000"`
	MinIOAccessKey string `env:"UCF_MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"UCF_MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"UCF_MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string `env:"UCF_MINIO_BUCKET"     envDefault:"checkpoints"`
	MinIOPrefix    string `env:"UCF_MINIO_PREFIX"`
}

// Load reads the configuration from the environment. Values are not validated
// so callers can apply overrides first and then call Validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	return cfg, nil
}

// Validate checks values env cannot check on its own
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.FramesPerVideo <= 0 {
		return errors.Errorf("frames per video must be positive, got %d", c.FramesPerVideo)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	return nil
}

// CheckpointPath is the latest-checkpoint path inside RecordDir
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.RecordDir, filepath.Base(checkpoints.DefaultPath))
}

// TrainLogPath is the CSV the training epochs are appended to
func (c *Config) TrainLogPath() string {
	return filepath.Join(c.RecordDir, "rgb_train.csv")
}

// TestLogPath is the CSV the evaluation epochs are appended to
func (c *Config) TestLogPath() string {
	return filepath.Join(c.RecordDir, "rgb_test.csv")
}

// Mirror returns the MinIO settings for checkpoint mirroring
func (c *Config) Mirror() checkpoints.MinioConfig {
	return checkpoints.MinioConfig{
		Endpoint:  c.MinIOEndpoint,
		AccessKey: c.MinIOAccessKey,
		SecretKey: c.MinIOSecretKey,
		UseSSL:    c.MinIOUseSSL,
		Bucket:    c.MinIOBucket,
		Prefix:    c.MinIOPrefix,
	}
}

// NewLogger builds a text logger at the configured level
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
