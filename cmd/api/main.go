package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"casino-core/internal/config"
	"casino-core/internal/handlers"
	"casino-core/internal/middleware"
	"casino-core/internal/services"
	"casino-core/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Env == "production" {
		log.SetFormatter(&log.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.DemoStartBalance)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer st.Close()

	jwtService := services.NewJWTService(cfg)
	minter := services.NewLocalMinter(cfg.JWTSecret)

	// The hub needs the coordinator for balance pushes and the
	// coordinator needs the hub for events, so the handler is built first
	// with its hub wired in afterwards.
	wsHandler := handlers.NewWebSocketHandler(nil)
	coordinator := services.NewCoordinator(cfg, st, minter, wsHandler.Hub())
	wsHandler.SetCoordinator(coordinator)

	gameHandler := handlers.NewGameHandler(coordinator)
	tableHandler := handlers.NewTableHandler(coordinator)
	walletHandler := handlers.NewWalletHandler(coordinator)

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(st))
	{
		protected.GET("/ws", wsHandler.HandleWebSocket)

		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/entries", walletHandler.GetEntries)
			wallet.POST("/mode", walletHandler.SwitchMode)
			wallet.POST("/seed/rotate", walletHandler.RotateSeed)
			wallet.POST("/withdraw", walletHandler.Withdraw)
			wallet.GET("/withdrawals/:id", walletHandler.GetWithdrawal)
			wallet.POST("/withdrawals/:id/claim", walletHandler.ClaimWithdrawal)
			wallet.POST("/deposit", walletHandler.Deposit)
		}

		games := protected.Group("/games")
		{
			games.POST("/verify", gameHandler.VerifyGame)

			crash := games.Group("/crash")
			{
				crash.POST("/bet", gameHandler.StartCrash)
				crash.GET("/status", gameHandler.CrashStatus)
				crash.POST("/cashout", gameHandler.CrashCashout)
				crash.GET("/history", gameHandler.CrashHistory)
			}

			mines := games.Group("/mines")
			{
				mines.POST("/bet", gameHandler.StartMines)
				mines.GET("/status", gameHandler.MinesStatus)
				mines.POST("/reveal", gameHandler.RevealMines)
				mines.POST("/cashout", gameHandler.CashoutMines)
				mines.POST("/abandon", gameHandler.AbandonMines)
			}

			table := games.Group("/table")
			{
				table.POST("/join", tableHandler.Join)
				table.POST("/leave", tableHandler.Leave)
				table.POST("/bet", tableHandler.Bet)
				table.POST("/action", tableHandler.Action)
				table.GET("/status", tableHandler.Status)
			}
		}
	}

	log.Infof("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
