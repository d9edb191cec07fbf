package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"cortexserver/database" // PostgreSQL and Redis initialization
	"cortexserver/duel"     // reaction duel core
	"cortexserver/handlers" // HTTP and websocket endpoints
	"cortexserver/outbox"   // campaign email triggers
	"cortexserver/utils"    // logger setup and cron cleanup jobs

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded, using process environment")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	// Initialize PostgreSQL and Redis concurrently.
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		config, err := database.LoadConfig("config.json")
		if err != nil {
			logger.Fatal("failed to load config file", zap.Error(err))
		}
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("failed to initialize PostgreSQL", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	<-done
	<-done

	// Background jobs: stale-duel reaping and the email outbox drain.
	go utils.CronCleaner(db, logger)

	triggers := outbox.NewService(outbox.NewGormStore(db), logger)
	mailWorker := outbox.NewWorker(outbox.NewGormStore(db), &outbox.LogMailer{Logger: logger}, logger)
	mailWorker.Start()
	defer mailWorker.Stop()

	duelStore := duel.NewPostgresStore(db, rdb, logger)
	leaderboard := duel.NewLeaderboardReader(db)

	router := gin.Default()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://app.cortextraining.example"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "SessionID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/auth/token", func(c *gin.Context) {
		handlers.AuthHandler(c, db, logger)
	})
	router.POST("/duel/create", func(c *gin.Context) {
		handlers.DuelCreateHandler(c, duelStore, triggers, logger)
	})
	router.GET("/leaderboard", func(c *gin.Context) {
		handlers.LeaderboardHandler(c, leaderboard, logger)
	})
	router.GET("/duel/ws", func(c *gin.Context) {
		handlers.HandleDuelWS(c.Request.Context(), c, db, rdb, triggers, logger, upgrader)
	})

	router.Run()
}
