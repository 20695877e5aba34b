package config

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"os"
)

type Config struct {
	SSHPort        string
	IdentityFile   string
	KnownHostsFile string
	LogLevel       string

	// Offsite upload of archived backups. Empty BucketName disables it.
	ApiURL     string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string
	S3Prefix   string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug(".env file not found, using environment variables only")
	}

	config := &Config{
		SSHPort:        getEnv("SSH_PORT", "22"),
		IdentityFile:   getEnv("SSH_IDENTITY_FILE", ""),
		KnownHostsFile: getEnv("SSH_KNOWN_HOSTS", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ApiURL:         getEnv("API_URL", ""),
		AccessKey:      getEnv("ACCESS_KEY", ""),
		SecretKey:      getEnv("SECRET_KEY", ""),
		BucketName:     getEnv("BUCKET_NAME", ""),
		Region:         getEnv("REGION", ""),
		S3Prefix:       getEnv("S3_PREFIX", ""),
	}

	return config, nil
}

// UploadEnabled reports whether enough S3 settings are present to upload.
func (c *Config) UploadEnabled() bool {
	return c.BucketName != "" && c.Region != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
