// Package main - WhatsApp Gateway entry point
// Wires infrastructure adapters to the core services.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"whatsapp-gateway/internal/adapters/gateway"
	"whatsapp-gateway/internal/adapters/handler"
	"whatsapp-gateway/internal/adapters/repository"
	"whatsapp-gateway/internal/adapters/storage"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/core/services"
)

func main() {
	// .env is optional; real deployments configure the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db := connectMySQL(cfg.DB, 5, 2*time.Second)
	defer db.Close()

	rdb := connectRedis(cfg.Redis, 5, 2*time.Second)
	defer rdb.Close()

	mongoClient, bucket := connectMongo(cfg.Mongo, 5, 2*time.Second)
	defer mongoClient.Disconnect(context.Background())

	// Repository and gateway adapters
	store := repository.NewMySQLRepository(db)
	profiles := repository.NewRedisProfileCache(rdb)
	blobs := storage.NewGridFSStore(bucket, cfg.App.PublicBaseURL)
	cloud := gateway.NewCloudClient()

	// Core services
	media := services.NewMediaFetcher(cloud, blobs, store)
	classifier := services.NewClassifier(store, media, profiles)
	reconciler := services.NewReconciler(store, store)
	dispatcher := services.NewDispatcher(store, store, classifier, reconciler)
	outbound := services.NewOutbound(store, store, store, store, store, cloud, cfg.App.PublicBaseURL)

	// HTTP handlers
	webhookHandler := handler.NewWebhookHandler(dispatcher)
	sendHandler := handler.NewSendHandler(outbound)
	filesHandler := handler.NewFilesHandler(blobs)
	healthHandler := handler.NewHealthHandler()

	services.RunRetention(db)

	startHTTPServer(cfg.App.Port, webhookHandler, sendHandler, filesHandler, healthHandler)
}

// connectMySQL attempts to connect with retry logic; containers may still
// be initializing when this process starts.
func connectMySQL(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) *sql.DB {
	dsn := cfg.GetDSN()

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				return db
			}
			db.Close()
		}

		log.Printf("Attempt %d/%d: cannot reach MySQL: %v", i, maxRetries, err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("Cannot connect to MySQL after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}

// connectRedis attempts to connect to Redis with retry logic
func connectRedis(cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})

	ctx := context.Background()
	var err error

	for i := 1; i <= maxRetries; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return rdb
		}

		log.Printf("Attempt %d/%d: cannot ping Redis: %v", i, maxRetries, err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("Cannot connect to Redis after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}

// connectMongo connects to MongoDB and opens the GridFS bucket backing the
// blob store.
func connectMongo(cfg config.MongoConfig, maxRetries int, retryDelay time.Duration) (*mongo.Client, *gridfs.Bucket) {
	ctx := context.Background()

	var client *mongo.Client
	var err error

	for i := 1; i <= maxRetries; i++ {
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				break
			}
			client.Disconnect(ctx)
			client = nil
		}

		log.Printf("Attempt %d/%d: cannot reach MongoDB: %v", i, maxRetries, err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	if client == nil {
		log.Fatalf("Cannot connect to MongoDB after %d attempts: %v", maxRetries, err)
	}

	bucket, err := gridfs.NewBucket(client.Database(cfg.Database))
	if err != nil {
		log.Fatalf("Cannot open GridFS bucket: %v", err)
	}

	return client, bucket
}

// startHTTPServer registers all routes and blocks serving them.
func startHTTPServer(
	port int,
	webhookHandler *handler.WebhookHandler,
	sendHandler *handler.SendHandler,
	filesHandler *handler.FilesHandler,
	healthHandler *handler.HealthHandler,
) {
	router := mux.NewRouter()

	router.HandleFunc("/webhook", webhookHandler.HandleVerify).Methods(http.MethodGet)
	router.HandleFunc("/webhook", webhookHandler.HandleEvent).Methods(http.MethodPost)

	router.HandleFunc("/api/messages", sendHandler.HandleSendMessage).Methods(http.MethodPost)
	router.HandleFunc("/api/messages/template", sendHandler.HandleSendTemplate).Methods(http.MethodPost)

	router.HandleFunc("/files/{name}", filesHandler.HandleGetFile).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP server listening on %s", addr)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
