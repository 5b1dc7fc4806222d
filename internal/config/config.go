package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerURL        string
	CharacterID      string
	EditWindow       time.Duration
	MaxMessageLength int
	RequestTimeout   time.Duration
	OutBuffer        int
	RedisAddr        string
	RedisDB          int
	MetricsAddr      string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func Load() *Config {
	return &Config{
		ServerURL:        getEnv("CHATSYNC_SERVER_URL", "ws://127.0.0.1:8080/ws"),
		CharacterID:      getEnv("CHATSYNC_CHARACTER_ID", ""),
		EditWindow:       time.Duration(getEnvInt("CHATSYNC_EDIT_WINDOW_SEC", 600)) * time.Second,
		MaxMessageLength: getEnvInt("CHATSYNC_MAX_MESSAGE_LEN", 1000),
		RequestTimeout:   time.Duration(getEnvInt("CHATSYNC_REQUEST_TIMEOUT_SEC", 10)) * time.Second,
		OutBuffer:        getEnvInt("CHATSYNC_OUTBUF", 256),
		RedisAddr:        getEnv("CHATSYNC_REDIS_ADDR", ""),
		RedisDB:          getEnvInt("CHATSYNC_REDIS_DB", 0),
		MetricsAddr:      getEnv("CHATSYNC_METRICS_ADDR", ""),
	}
}
