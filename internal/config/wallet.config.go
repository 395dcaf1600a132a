package config

import (
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	HTTPAddr     string
	RedisAddr    string
	RedisPass    string
	KafkaBrokers []string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Risk policy thresholds
	AutoApproveCeiling string // amount above forces manual review
	KycCeiling         string // amount above forces KYC
	RiskScoreThreshold int    // score at or above forces manual review

	// Flat withdrawal fee in percent of the gross amount
	WithdrawalFeePercent string
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8031"),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),

		JWTSecret:   getEnv("JWT_SECRET", "dev-only-secret"),
		JWTIssuer:   getEnv("JWT_ISSUER", "wallet-service"),
		JWTAudience: getEnv("JWT_AUDIENCE", "admin-panel"),

		AutoApproveCeiling: getEnv("RISK_AUTO_APPROVE_CEILING", "1000"),
		KycCeiling:         getEnv("RISK_KYC_CEILING", "2000"),
		RiskScoreThreshold: getEnvInt("RISK_SCORE_THRESHOLD", 60),

		WithdrawalFeePercent: getEnv("WITHDRAWAL_FEE_PERCENT", "2"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
