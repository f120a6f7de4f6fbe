package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	AppEnv            string
	AllowedOrigin     string
	DatabaseURL       string
	MongoURI          string
	MongoDatabase     string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DashboardCacheTTL time.Duration
	AuthSecret        string
	Timezone          string
	LowStockThreshold int
	BlobDriver        string
	BlobLocalRoot     string
	BlobBaseURL       string
	S3Bucket          string
	S3Region          string
	S3Key             string
	S3Secret          string
	S3Endpoint        string
	S3URL             string
}

// LoadDotEnv reads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("DASHBOARD_CACHE_TTL_SECONDS", "30"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 30
	}
	threshold, err := strconv.Atoi(getEnv("LOW_STOCK_THRESHOLD", "10"))
	if err != nil || threshold < 1 {
		threshold = 10
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AppEnv:            getEnv("APP_ENV", "development"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "pos"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,
		DashboardCacheTTL: time.Duration(cacheTTL) * time.Second,
		AuthSecret:        strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		Timezone:          getEnv("TIMEZONE", "Local"),
		LowStockThreshold: threshold,
		BlobDriver:        strings.ToLower(getEnv("BLOB_DRIVER", "local")),
		BlobLocalRoot:     getEnv("BLOB_LOCAL_ROOT", "storage"),
		BlobBaseURL:       getEnv("BLOB_BASE_URL", "http://localhost:8080/storage"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Key:             os.Getenv("S3_KEY"),
		S3Secret:          os.Getenv("S3_SECRET"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3URL:             os.Getenv("S3_URL"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone; day and month buckets are cut in this zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
