package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go-resto-inventory/internal/handler"
	"go-resto-inventory/internal/middleware"
	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/repository"
	"go-resto-inventory/internal/service"
	"go-resto-inventory/internal/ws"
	"go-resto-inventory/pkg/database"
	"go-resto-inventory/pkg/retry"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Structured logger, injected into every service
	logger := newLogger()
	defer logger.Sync()

	// 3. Setup Database
	db := database.ConnectDB()
	// Auto Migrate (production should use a separate migration tool)
	db.AutoMigrate(
		&model.MenuItem{},
		&model.Recipe{},
		&model.RecipeIngredient{},
		&model.RecipeSubRecipe{},
		&model.InventoryItem{},
		&model.InventoryAdjustment{},
		&model.DeductionAttempt{},
		&model.ManualReviewEntry{},
		&model.User{},
	)

	// 4. Seed default admin user
	seedAdmin(db, logger)

	// 5. Setup WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 6. Dependency Injection (Wiring Layers)
	store := repository.NewStore(db)
	userRepo := repository.NewUserRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)

	notifier := service.NewHubNotifier(wsHub, logger)
	resolver := service.NewRecipeResolver(store, logger)
	circularValidator := service.NewCircularValidator(store, logger)
	reviewService := service.NewReviewService(store, logger)
	deductionService := service.NewDeductionService(store, resolver, reviewService, notifier, deductionConfig(), logger)
	recipeService := service.NewRecipeService(store, circularValidator, logger)
	authService := service.NewAuthService(store, logger)

	authHandler := handler.NewAuthHandler(authService)
	invHandler := handler.NewInventoryHandler(deductionService, inventoryRepo)
	recipeHandler := handler.NewRecipeHandler(recipeService)
	reviewHandler := handler.NewReviewHandler(reviewService)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Resto Inventory v1.0",
	})

	// Middleware
	app.Use(fiberlogger.New()) // Logging request
	app.Use(recover.New())     // Panic recovery
	app.Use(cors.New())        // CORS

	// 8. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/validate-token", authHandler.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(userRepo))

	// Inventory
	protected.Get("/inventory", invHandler.GetItems)
	protected.Get("/inventory/:id/adjustments", invHandler.GetItemAdjustments)

	// Order-driven deduction workflow
	protected.Post("/orders/preview", invHandler.PreviewImpact)
	protected.Post("/orders/:order_id/deduct", invHandler.DeductForOrder)
	protected.Post("/orders/:order_id/partial-fulfillment", invHandler.DeductForPartialFulfillment)
	protected.Post("/orders/:order_id/reverse", invHandler.ReverseDeduction)

	// Recipe authoring (gated by the circular dependency validator)
	protected.Get("/recipes/:id", recipeHandler.GetRecipe)
	protected.Put("/recipes/:id/sub-recipes", recipeHandler.SetSubRecipes)
	protected.Post("/recipes/:id/sub-recipes", recipeHandler.AddSubRecipe)

	// Manual review queue
	protected.Get("/reviews/pending", reviewHandler.GetPending)
	protected.Put("/reviews/:id", reviewHandler.Resolve)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 9. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}

func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if os.Getenv("ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	return logger
}

// deductionConfig reads the engine tunables from the environment; nothing
// is hardcoded in the engine itself.
func deductionConfig() service.DeductionConfig {
	cfg := service.DeductionConfig{
		Retry: retry.DefaultConfig(),
	}
	if raw := os.Getenv("HIGH_VALUE_ORDER_THRESHOLD"); raw != "" {
		if threshold, err := decimal.NewFromString(raw); err == nil {
			cfg.HighValueOrderThreshold = threshold
		} else {
			log.Printf("Warning: invalid HIGH_VALUE_ORDER_THRESHOLD %q", raw)
		}
	}
	if raw := os.Getenv("DEDUCT_MAX_RETRIES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Retry.MaxRetries = n
		}
	}
	return cfg
}

// seedAdmin creates the default admin user if it doesn't exist
func seedAdmin(db *gorm.DB, logger *zap.Logger) {
	ctx := context.Background()
	userRepo := repository.NewUserRepo(db)

	if _, err := userRepo.FindByEmail(ctx, "admin@example.com"); err == nil {
		return
	}

	admin := &model.User{
		Email:    "admin@example.com",
		FullName: "Administrator",
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	if err := admin.SetPassword(password); err != nil {
		logger.Warn("failed to hash admin password", zap.Error(err))
		return
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		logger.Warn("failed to create admin user", zap.Error(err))
	} else {
		logger.Info("admin user created", zap.String("email", admin.Email))
	}
}
