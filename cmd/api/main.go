package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "retailpos/api/swagger" // swagger docs
	"retailpos/internal/cache"
	"retailpos/internal/config"
	"retailpos/internal/database"
	"retailpos/internal/handler"
	"retailpos/internal/logger"
	"retailpos/internal/middleware"
	"retailpos/internal/repository"
	"retailpos/internal/service"
	"retailpos/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Retail POS Inventory API
// @version         1.0
// @description     Multi-branch POS core: stock ledger, sales, purchase receiving and held carts.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.NewConnection(cfg.Postgres, zlog)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	zlog.Info("connected to postgres", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DBName))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var closers []func() error
	counts := cache.HeldCountCache(cache.NoopHeldCountCache{})
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisHeldCountCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(ctx); err != nil {
			zlog.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			counts = redisCache
			closers = append(closers, redisCache.Close)
			zlog.Info("held cart count cache: redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zlog.Named("ws"))
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	productRepo := repository.NewProductRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	stockRepo := repository.NewStockRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	invoiceRepo := repository.NewPurchaseInvoiceRepository(db)
	heldCartRepo := repository.NewHeldCartRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	ledger := service.NewStockLedger(stockRepo, movementRepo, productRepo, branchRepo, auditRepo, txManager,
		wsHub, cfg.Stock.StrictMovementTypes, zlog.Named("ledger"))
	heldCartService := service.NewHeldCartService(heldCartRepo, auditRepo, txManager, counts,
		cfg.Stock.HeldCartTTL, cfg.Stock.HeldCountCacheTTL, zlog.Named("held_carts"))
	saleService := service.NewSaleService(saleRepo, productRepo, branchRepo, auditRepo, txManager,
		ledger, heldCartService, wsHub, zlog.Named("sales"))
	purchaseService := service.NewPurchaseService(invoiceRepo, productRepo, branchRepo, auditRepo, txManager,
		ledger, wsHub, zlog.Named("purchases"))
	catalogService := service.NewCatalogService(productRepo, branchRepo, auditRepo, txManager, ledger, zlog.Named("catalog"))
	auditService := service.NewAuditService(auditRepo)

	auth := middleware.NewAuthenticator(cfg.JWT.Secret)

	// Initialize Handlers
	saleHandler := handler.NewSaleHandler(saleService, auth)
	heldCartHandler := handler.NewHeldCartHandler(heldCartService, auth)
	purchaseHandler := handler.NewPurchaseHandler(purchaseService, auth)
	inventoryHandler := handler.NewInventoryHandler(ledger, auth)
	catalogHandler := handler.NewCatalogHandler(catalogService, auth)
	auditHandler := handler.NewAuditHandler(auditService, auth)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(zlog.Named("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DB_UNAVAILABLE"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth)
	})

	saleHandler.RegisterRoutes(router.Group(""))
	heldCartHandler.RegisterRoutes(router.Group(""))
	purchaseHandler.RegisterRoutes(router.Group(""))
	inventoryHandler.RegisterRoutes(router.Group(""))
	catalogHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("shutdown error", zap.Error(err))
	}
	stop()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Warn("close error", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zlog.Info("server stopped")
}
