/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ussd-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	GatewayAPIKey             string `mapstructure:"GATEWAY_API_KEY"`
	RequestTimeoutSeconds     int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	SessionIdleTimeoutSeconds int    `mapstructure:"SESSION_IDLE_TIMEOUT_SECONDS"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	USSDRateLimitPerMinute    int    `mapstructure:"USSD_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	KYCAPIBaseURL             string `mapstructure:"KYC_API_BASE_URL"`
	KYCAPIKey                 string `mapstructure:"KYC_API_KEY"`
	KYCSimulatedLatencyMS     int    `mapstructure:"KYC_SIMULATED_LATENCY_MS"`
	TransferLimitPerTxKobo    int64  `mapstructure:"TRANSFER_LIMIT_PER_TX_KOBO"`
	TransferLimitDailyKobo    int64  `mapstructure:"TRANSFER_LIMIT_DAILY_KOBO"`
	TransferLimitWeeklyKobo   int64  `mapstructure:"TRANSFER_LIMIT_WEEKLY_KOBO"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SESSION_IDLE_TIMEOUT_SECONDS", 300)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "oneubank:rate_limit")
	viper.SetDefault("USSD_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("KYC_SIMULATED_LATENCY_MS", 2000)
	viper.SetDefault("TRANSFER_LIMIT_PER_TX_KOBO", 10_000_000)
	viper.SetDefault("TRANSFER_LIMIT_DAILY_KOBO", 50_000_000)
	viper.SetDefault("TRANSFER_LIMIT_WEEKLY_KOBO", 200_000_000)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("GATEWAY_API_KEY")
	_ = viper.BindEnv("REQUEST_TIMEOUT_SECONDS")
	_ = viper.BindEnv("SESSION_IDLE_TIMEOUT_SECONDS")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "USSD_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("USSD_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("KYC_API_BASE_URL")
	_ = viper.BindEnv("KYC_API_KEY")
	_ = viper.BindEnv("KYC_SIMULATED_LATENCY_MS")
	_ = viper.BindEnv("TRANSFER_LIMIT_PER_TX_KOBO")
	_ = viper.BindEnv("TRANSFER_LIMIT_DAILY_KOBO")
	_ = viper.BindEnv("TRANSFER_LIMIT_WEEKLY_KOBO")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "oneubank:rate_limit"
	}

	if config.RequestTimeoutSeconds <= 0 {
		config.RequestTimeoutSeconds = 30
	}
	if config.SessionIdleTimeoutSeconds <= 0 {
		config.SessionIdleTimeoutSeconds = 300
	}
	if config.USSDRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative rate limit configured; disabling rate limiting\" limit=%d", config.USSDRateLimitPerMinute)
		config.USSDRateLimitPerMinute = 0
	}
	if config.KYCSimulatedLatencyMS < 0 {
		config.KYCSimulatedLatencyMS = 0
	}

	if config.TransferLimitPerTxKobo <= 0 {
		log.Printf("level=warn component=config msg=\"invalid per-transaction limit; restoring default\" limit_kobo=%d", config.TransferLimitPerTxKobo)
		config.TransferLimitPerTxKobo = 10_000_000
	}
	if config.TransferLimitDailyKobo < config.TransferLimitPerTxKobo {
		log.Printf("level=warn component=config msg=\"daily limit below per-transaction limit; raising to match\" daily_kobo=%d", config.TransferLimitDailyKobo)
		config.TransferLimitDailyKobo = config.TransferLimitPerTxKobo
	}
	if config.TransferLimitWeeklyKobo < config.TransferLimitDailyKobo {
		log.Printf("level=warn component=config msg=\"weekly limit below daily limit; raising to match\" weekly_kobo=%d", config.TransferLimitWeeklyKobo)
		config.TransferLimitWeeklyKobo = config.TransferLimitDailyKobo
	}

	return
}
