package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 啟動時讀取一次的全部設定，來源為環境變數（可選 .env 檔）
type Config struct {
	AppPort string

	DatabaseType string // sqlite / postgres / memory
	SQLitePath   string
	PostgresDSN  string
	RedisAddr    string

	SchedulerIntervalHours   int
	MaxPages                 int
	MaxConsecutiveDuplicates int // 0 = 不限制
	MaxConcurrentScrapers    int

	RequestTimeout time.Duration
	RetryAttempts  int
	DelayMin       time.Duration
	DelayMax       time.Duration

	EnabledSources []string
}

func Load() *Config {
	// 本地開發用 .env；檔案不存在就直接吃環境變數
	_ = godotenv.Load()

	cfg := &Config{
		AppPort: getEnv("APP_PORT", "9000"),

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		SQLitePath:   getEnv("SQLITE_PATH", "./news.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "host=localhost user=news_user dbname=news_analyze port=5432 sslmode=disable"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),

		SchedulerIntervalHours:   getEnvInt("SCHEDULER_INTERVAL", 24),
		MaxPages:                 getEnvInt("MAX_PAGES", 3),
		MaxConsecutiveDuplicates: getEnvInt("MAX_CONSECUTIVE_DUPLICATES", 0),
		MaxConcurrentScrapers:    getEnvInt("MAX_CONCURRENT_SCRAPERS", 4),

		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT", 10)) * time.Second,
		RetryAttempts:  getEnvInt("RETRY_ATTEMPTS", 3),
		DelayMin:       time.Duration(getEnvInt("DELAY_MIN_MS", 1000)) * time.Millisecond,
		DelayMax:       time.Duration(getEnvInt("DELAY_MAX_MS", 3000)) * time.Millisecond,
	}

	for _, src := range []string{"SETN", "LTN", "TVBS", "ChinaTimes"} {
		if getEnvBool("ENABLE_"+strings.ToUpper(src), true) {
			cfg.EnabledSources = append(cfg.EnabledSources, src)
		}
	}

	log.Printf("config loaded: port=%s db=%s interval=%dh sources=%v",
		cfg.AppPort, cfg.DatabaseType, cfg.SchedulerIntervalHours, cfg.EnabledSources)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warn: env %s=%q is not an integer, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}
