package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/storefront-api/internal/auth"
	"github.com/ksred/storefront-api/internal/cart"
	"github.com/ksred/storefront-api/internal/catalog"
	"github.com/ksred/storefront-api/internal/checkout"
	"github.com/ksred/storefront-api/internal/database"
	"github.com/ksred/storefront-api/internal/gateway"
	"github.com/ksred/storefront-api/internal/orders"
	"github.com/ksred/storefront-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// main initializes and runs the storefront API server with graceful shutdown
// support. It sets up all required services, database connections, and API
// routes.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// External surface configuration
	baseURL := envOr("BASE_URL", "http://localhost:8080")
	gatewayClient := gateway.NewClient(
		envOr("GATEWAY_BASE_URL", "http://localhost:9090"),
		envOr("GATEWAY_SECRET_KEY", "sk_test_storefront"),
	)
	webhookSecret := envOr("GATEWAY_WEBHOOK_SECRET", "whsec_storefront")

	// Initialize services and handlers
	authService := auth.NewService(db, middleware.JWTSecret())
	authHandlers := auth.NewGinHandlers(authService)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	cartService := cart.NewService(db)
	cartHandlers := cart.NewGinHandlers(cartService)

	orderService := orders.NewService(db, cartService)
	orderHandlers := orders.NewGinHandlers(orderService, webhookSecret)

	checkoutService := checkout.NewService(
		orderService,
		catalogService,
		cartService,
		gatewayClient,
		baseURL+"/api/v1/checkout/success",
		baseURL+"/api/v1/checkout/cancel",
	)
	checkoutHandlers := checkout.NewGinHandlers(checkoutService)

	// Create and start the abandoned attempt sweeper
	sweeper := orders.NewSweeper(orderService.GetDB(), time.Hour, 24*time.Hour)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	go sweeper.Start(sweeperCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, catalogHandlers, cartHandlers, checkoutHandlers, orderHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth and product routes: public
// - Cart, checkout and order routes: protected by JWT authentication
// - Webhook route: authenticated per-request by the provider's signature
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	cartHandlers *cart.GinHandlers,
	checkoutHandlers *checkout.GinHandlers,
	orderHandlers *orders.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", authHandlers.SignUpHandler())
			authRoutes.POST("/signin", authHandlers.SignInHandler())
		}

		// Product routes
		products := v1.Group("/products")
		{
			products.GET("", catalogHandlers.ListProductsHandler())
			products.GET("/:product_id", catalogHandlers.GetProductHandler())
		}

		// Cart routes
		cartRoutes := v1.Group("/cart")
		cartRoutes.Use(middleware.JWTAuth())
		{
			cartRoutes.GET("", cartHandlers.GetCartHandler())
			cartRoutes.POST("/items", cartHandlers.AddItemHandler())
			cartRoutes.DELETE("/items/:product_id", cartHandlers.RemoveItemHandler())
			cartRoutes.DELETE("", cartHandlers.ClearCartHandler())
		}

		// Checkout and order routes
		checkoutRoutes := v1.Group("/checkout")
		checkoutRoutes.Use(middleware.JWTAuth())
		{
			checkoutRoutes.POST("", checkoutHandlers.InitiateHandler())
			checkoutRoutes.GET("/success", orderHandlers.SuccessHandler())
		}

		orderRoutes := v1.Group("/orders")
		orderRoutes.Use(middleware.JWTAuth())
		{
			orderRoutes.GET("", orderHandlers.ListOrdersHandler())
		}

		// Provider webhook (signature-authenticated, no JWT)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/gateway", orderHandlers.WebhookHandler())
		}
	}
}
