package main

import (
	"log"
	"net/http"

	"concierge-gateway/internal/api"
	"concierge-gateway/internal/automation"
	"concierge-gateway/internal/chat"
	"concierge-gateway/internal/config"
	"concierge-gateway/internal/database"
	"concierge-gateway/internal/session"
	"concierge-gateway/internal/voice"
	"concierge-gateway/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	database.InitDB(cfg)

	store := newSessionStore(cfg)
	defer store.Close()

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	hub := ws.NewHub(cfg.AllowedOrigins)
	go hub.Run()

	client := automation.NewClient(cfg)
	engine := chat.NewEngine(cfg, client, store, hub)
	engine.Recorder = &database.MessageRecorder{DB: database.DB}

	var transcriber voice.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber = voice.NewOpenAITranscriber(cfg.OpenAIAPIKey)
	} else {
		log.Println("Warning: OPENAI_API_KEY not set, voice input disabled")
	}

	leadHandler := api.NewLeadHandler(client, database.DB)
	chatHandler := api.NewChatHandler(engine)
	voiceHandler := api.NewVoiceHandler(voice.NewAdapter(transcriber))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", gin.WrapF(hub.ServeWs))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/leads", leadHandler.SubmitLead)

		chatGroup := apiGroup.Group("/chat")
		{
			chatGroup.POST("/open", chatHandler.Open)
			chatGroup.POST("/message", chatHandler.SendMessage)
			chatGroup.POST("/form", chatHandler.SubmitForm)
			chatGroup.POST("/reset", chatHandler.Reset)
			chatGroup.GET("/history", chatHandler.GetHistory)
			chatGroup.POST("/voice", voiceHandler.Transcribe)
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

func newSessionStore(cfg *config.Config) session.Store {
	switch session.StoreType(cfg.SessionStore) {
	case session.StoreTypeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		store, err := session.NewStore(session.StoreTypeRedis,
			session.WithRedisClient(redis.NewClient(opts)),
			session.WithRedisTTL(cfg.SessionTTL),
		)
		if err != nil {
			log.Fatalf("Failed to create redis session store: %v", err)
		}
		log.Println("Using redis session store")
		return store
	default:
		store, err := session.NewStore(session.StoreTypeMemory)
		if err != nil {
			log.Fatalf("Failed to create session store: %v", err)
		}
		return store
	}
}
