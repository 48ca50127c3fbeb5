/**
 * @description
 * This is the main entry point for the ussd-service. It is responsible for
 * initializing all components of the service, including configuration, the
 * in-memory session and ledger stores, external API clients, the message
 * broker producer, the core application service, and the HTTP server. It
 * wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/redis/go-redis/v9: Redis client for callback rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/kycclient: Client for the BVN identity verification API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oneubank/ussd-service/internal/api"
	"github.com/oneubank/ussd-service/internal/app"
	"github.com/oneubank/ussd-service/internal/config"
	"github.com/oneubank/ussd-service/internal/store"
	"github.com/oneubank/ussd-service/pkg/kycclient"
	rmrabbit "github.com/oneubank/ussd-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting ussd-service\" port=%s", cfg.ServerPort)

	// Initialize the RabbitMQ producer to publish ledger events. The service
	// only publishes, and a missing broker must not block USSD traffic.
	var eventPublisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventPublisher = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		eventPublisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the BVN verification client. With no base URL configured the
	// client runs in simulation mode, which keeps local development offline.
	kycClient := kycclient.NewClient(
		cfg.KYCAPIBaseURL,
		cfg.KYCAPIKey,
		time.Duration(cfg.KYCSimulatedLatencyMS)*time.Millisecond,
	)
	if strings.TrimSpace(cfg.KYCAPIBaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"kyc base url missing; BVN verification runs in simulation mode\" env=KYC_API_BASE_URL")
	}

	// Connect to Redis for callback rate limiting. Degrade without it.
	var redisClient *redis.Client
	if cfg.USSDRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; callback rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; callback rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; callback rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the in-memory stores for sessions and accounts.
	sessions := store.NewMemorySessionStore(time.Duration(cfg.SessionIdleTimeoutSeconds) * time.Second)
	ledger := store.NewMemoryLedger()

	// Initialize the core application service with its dependencies.
	ussdService := app.NewService(
		sessions,
		ledger,
		kycClient,
		eventPublisher,
		app.TransferLimits{
			PerTransaction: cfg.TransferLimitPerTxKobo,
			Daily:          cfg.TransferLimitDailyKobo,
			Weekly:         cfg.TransferLimitWeeklyKobo,
		},
	)
	if redisClient != nil {
		ussdService.SetRateLimiter(
			app.NewRedisCallbackRateLimiter(redisClient, cfg.RedisRateLimitPrefix, cfg.USSDRateLimitPerMinute),
		)
	}

	// Initialize the API handlers and router.
	handlers := api.NewUSSDHandlers(ussdService)
	router := api.USSDRoutes(handlers, cfg.GatewayAPIKey, time.Duration(cfg.RequestTimeoutSeconds)*time.Second)

	// Start the HTTP server. Bind to all interfaces.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
