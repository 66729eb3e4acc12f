// Command harvester fetches product records for a list of product IDs and
// persists them as chunked JSON files.
//
// Usage:
//
//	harvester            Fetch every ID in INPUT_FILE.
//	harvester retry      Re-fetch the IDs recorded in the failure log of a
//	                     previous run; new chunks continue the numbering.
//
// All configuration comes from the environment; see loadConfig.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tikiops/product-harvester/pkg/cache"
	"github.com/tikiops/product-harvester/pkg/fetch"
	"github.com/tikiops/product-harvester/pkg/ids"
	"github.com/tikiops/product-harvester/pkg/logging"
	"github.com/tikiops/product-harvester/pkg/pool"
	"github.com/tikiops/product-harvester/pkg/ratelimit"
	"github.com/tikiops/product-harvester/pkg/report"
	"github.com/tikiops/product-harvester/pkg/sink"
)

const (
	failureLogName   = "errors.csv"
	retryLogName     = "errors_retry.csv"
	duplicateLogName = "duplicates.csv"
)

type config struct {
	InputFile string
	OutputDir string
	LogsDir   string

	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	Workers     int
	ChunkSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	RateLimit float64
	RateBurst int
	Cooldown  time.Duration

	RedisURL string
	CacheTTL time.Duration

	LogLevel  string
	PrettyLog bool
}

func loadConfig() config {
	return config{
		InputFile: getEnv("INPUT_FILE", "input/list_products.csv"),
		OutputDir: getEnv("OUTPUT_DIR", "output"),
		LogsDir:   getEnv("LOGS_DIR", "logs"),

		BaseURL:   getEnv("BASE_URL", "https://api.tiki.vn/product-detail/api/v1/products"),
		UserAgent: getEnv("USER_AGENT", "product-harvester/1.0"),
		Timeout:   getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		Workers:     getEnvInt("WORKER_COUNT", 10),
		ChunkSize:   getEnvInt("CHUNK_SIZE", 1000),
		MaxAttempts: getEnvInt("MAX_ATTEMPTS", 5),
		BaseDelay:   getEnvDuration("BASE_DELAY", 500*time.Millisecond),
		MaxDelay:    getEnvDuration("MAX_DELAY", 30*time.Second),

		RateLimit: getEnvFloat("RATE_LIMIT", 5),
		RateBurst: getEnvInt("RATE_BURST", 10),
		Cooldown:  getEnvDuration("COOLDOWN_DURATION", 5*time.Second),

		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: getEnvDuration("CACHE_TTL", 24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		PrettyLog: getEnv("LOG_PRETTY", "") != "",
	}
}

func main() {
	cfg := loadConfig()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.PrettyLog,
		Output: os.Stderr,
	})

	retryMode := len(os.Args) > 1 && os.Args[1] == "retry"

	// Operator interrupt abandons queued IDs; in-flight requests finish and
	// their outcomes are still recorded.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, retryMode, logger); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, retryMode bool, logger zerolog.Logger) error {
	for _, dir := range []string{filepath.Dir(cfg.InputFile), cfg.OutputDir, cfg.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	inputPath := cfg.InputFile
	failurePath := filepath.Join(cfg.LogsDir, failureLogName)
	if retryMode {
		inputPath = failurePath
		failurePath = filepath.Join(cfg.LogsDir, retryLogName)
		logger.Info().Str("input", inputPath).Msg("Retrying previously failed IDs")
	}

	loader := ids.NewLoader(nil)
	list, err := loader.ReadFile(inputPath)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		logger.Warn().Str("input", inputPath).Msg("No product IDs found, nothing to do")
		return nil
	}

	// Pre-flight dedup: complete, with its report recorded, before any
	// network request is issued.
	dedup := loader.Dedup(list)

	reporter := report.New()
	reporter.SetRequested(dedup.TotalRequested)
	reporter.RecordDuplicates(dedup.Duplicates)

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxInFlight:       cfg.Workers,
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateBurst,
		Cooldown:          cfg.Cooldown,
	})
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	client, err := fetch.NewClient(fetch.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}, limiter.SignalRateLimited)
	if err != nil {
		return fmt.Errorf("fetcher: %w", err)
	}

	var fetcher fetch.Fetcher = client
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}

		fetcher = cache.NewFetcher(fetcher, cache.NewStore(redisClient, cfg.CacheTTL))
		logger.Info().Str("redis", cfg.RedisURL).Msg("Payload cache enabled")
	}

	policy := fetch.NewPolicy(fetcher, limiter, fetch.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	})

	startChunk := 1
	if retryMode {
		if startChunk, err = sink.NextChunkNumber(cfg.OutputDir); err != nil {
			return err
		}
	}

	collector := sink.NewCollector(sink.NewFileWriter(cfg.OutputDir), reporter, sink.Config{
		ChunkSize:     cfg.ChunkSize,
		StartChunk:    startChunk,
		ProgressEvery: 100,
	})

	logger.Info().
		Int("unique_ids", len(dedup.Unique)).
		Int("duplicates", len(dedup.Duplicates)).
		Int("workers", cfg.Workers).
		Int("chunk_size", cfg.ChunkSize).
		Msg("Starting harvest")

	results := pool.New(policy, pool.Config{Workers: cfg.Workers}).Run(ctx, dedup.Unique)
	collectErr := collector.Collect(results)

	reporter.Emit(failurePath, filepath.Join(cfg.LogsDir, duplicateLogName))

	return collectErr
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
