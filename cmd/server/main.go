package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"fuwamatch/internal/chat"
	"fuwamatch/internal/config"
	"fuwamatch/internal/database"
	"fuwamatch/internal/dispatch"
	"fuwamatch/internal/handler"
	"fuwamatch/internal/publish"
	"fuwamatch/internal/store"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  .env file not found, using default values: %v", err)
	}

	// 環境変数を読み込み
	cfg := config.Load()

	// ストア初期化（DB_NAME未設定ならインメモリで起動）
	var messages store.MessageStore
	var blocks store.BlockRegistry
	if cfg.DBName != "" {
		db, err := database.Init(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to initialize database: %v", err)
		}
		defer db.Close()

		messages = &store.MySQLMessageStore{DB: db}
		blocks = &store.MySQLBlockRegistry{DB: db}
	} else {
		log.Println("⚠️  DB_NAME not set, using in-memory store")
		messages = store.NewMemoryMessageStore()
		blocks = store.NewMemoryBlockRegistry()
	}

	// ブローカー接続（失敗してもサーバーは起動する: 再配信はベストエフォート）
	var publisher publish.Publisher
	if cfg.RabbitMQURI != "" {
		p, err := publish.Connect(cfg.RabbitMQURI)
		if err != nil {
			log.Printf("⚠️  RabbitMQ unavailable, continuing without event republication: %v", err)
		} else {
			publisher = p
			defer p.Close()
		}
	}

	service := chat.New(messages, blocks)
	dispatcher := dispatch.New()

	h := handler.New(service, dispatcher, publisher, cfg)
	router := h.SetupRouter()

	// CORS対応
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS", "PUT"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	httpHandler := c.Handler(router)

	fmt.Println("========================================")
	fmt.Println("  Fuwamatch Chat API Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  WebSocket: ws://localhost:%s/ws\n", cfg.ServerPort)
	if cfg.DBName != "" {
		fmt.Printf("  Database: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if cfg.RabbitMQURI != "" {
		fmt.Printf("  Broker exchange: %s\n", publish.Exchange)
	}
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Println("========================================")
	log.Println("🚀 Server started successfully")
	log.Fatal(http.ListenAndServe(":"+cfg.ServerPort, httpHandler))
}
