package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/storefront-api/internal/auth"
	"github.com/ksred/storefront-api/internal/cart"
	"github.com/ksred/storefront-api/internal/catalog"
	"github.com/ksred/storefront-api/internal/checkout"
	"github.com/ksred/storefront-api/internal/database"
	"github.com/ksred/storefront-api/internal/gateway"
	"github.com/ksred/storefront-api/internal/orders"
	"github.com/ksred/storefront-api/internal/types"
	"github.com/ksred/storefront-api/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minCheckouts   = 10
	maxCheckouts   = 60
	numWorkers     = 5
	serverAddress  = "http://localhost:8080"
	gatewayAddress = ":9090"
	webhookSecret  = "whsec_storefront"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the storefront API as a
// single signed-in shopper
type simulationClient struct {
	baseURL   string
	authToken string
	userID    string
	client    *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

// newSimulationClient registers a fresh shopper account and prepares
// performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Sign Up"},
			"cart":     {name: "Add Cart Item"},
			"checkout": {name: "Initiate Checkout"},
			"redirect": {name: "Success Redirect"},
			"webhook":  {name: "Webhook Delivery"},
			"orders":   {name: "List Orders"},
		},
	}

	if err := sc.signUp(); err != nil {
		return nil, fmt.Errorf("failed to register shopper: %w", err)
	}

	return sc, nil
}

func (sc *simulationClient) record(key string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[key].addDuration(time.Since(start))
	if failed {
		sc.stats[key].failures++
	}
}

// signUp registers a throwaway account and stores its JWT
func (sc *simulationClient) signUp() error {
	start := time.Now()
	failed := true
	defer func() { sc.record("auth", start, failed) }()

	credentials := map[string]string{
		"email":    fmt.Sprintf("shopper-%s@example.com", uuid.New().String()[:8]),
		"password": "simulation-pass",
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/signup", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("sign up failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token  string `json:"jwt_token"`
			UserID string `json:"user_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if result.Data.Token == "" {
		return fmt.Errorf("no token in sign up response")
	}

	sc.authToken = result.Data.Token
	sc.userID = result.Data.UserID
	failed = false
	return nil
}

// doJSON performs an authenticated request and decodes the standard response
// envelope into out
func (sc *simulationClient) doJSON(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// addCartItem puts a product into the shopper's stored cart
func (sc *simulationClient) addCartItem(line types.CartLine) error {
	start := time.Now()
	failed := true
	defer func() { sc.record("cart", start, failed) }()

	err := sc.doJSON("POST", "/api/v1/cart/items", line, nil)
	failed = err != nil
	return err
}

// initiateCheckout starts a checkout for the stored cart and returns the
// attempt ID and authoritative total
func (sc *simulationClient) initiateCheckout() (string, int64, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("checkout", start, failed) }()

	var result struct {
		Data struct {
			AttemptID       string `json:"attempt_id"`
			RedirectURL     string `json:"redirect_url"`
			TotalMinorUnits int64  `json:"total_minor_units"`
		} `json:"data"`
	}
	if err := sc.doJSON("POST", "/api/v1/checkout", map[string]interface{}{}, &result); err != nil {
		return "", 0, err
	}
	if result.Data.AttemptID == "" {
		return "", 0, fmt.Errorf("no attempt ID in checkout response")
	}

	failed = false
	return result.Data.AttemptID, result.Data.TotalMinorUnits, nil
}

// fireRedirect simulates the browser returning from the hosted payment page
func (sc *simulationClient) fireRedirect(attemptID string) (string, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("redirect", start, failed) }()

	var result struct {
		Data struct {
			Order struct {
				OrderID string `json:"order_id"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := sc.doJSON("GET", "/api/v1/checkout/success?attempt_id="+attemptID, nil, &result); err != nil {
		return "", err
	}

	failed = false
	return result.Data.Order.OrderID, nil
}

// fireWebhook simulates the provider's signed event delivery. eventID is
// reused for redeliveries of the same logical event.
func (sc *simulationClient) fireWebhook(attemptID, eventID string) error {
	start := time.Now()
	failed := true
	defer func() { sc.record("webhook", start, failed) }()

	payload, err := json.Marshal(gateway.Event{
		EventID: eventID,
		Type:    gateway.EventCheckoutCompleted,
		Data: gateway.EventData{
			SessionID: "SES_simulated",
			AttemptID: attemptID,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", sc.baseURL+"/api/v1/webhooks/gateway", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(gateway.SignatureHeader, gateway.SignPayload(payload, webhookSecret, time.Now()))

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook delivery failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	failed = false
	return nil
}

// listOrders retrieves the shopper's order history
func (sc *simulationClient) listOrders() ([]orders.Order, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("orders", start, failed) }()

	var result struct {
		Data []orders.Order `json:"data"`
	}
	if err := sc.doJSON("GET", "/api/v1/orders", nil, &result); err != nil {
		return nil, err
	}

	failed = false
	return result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// checkoutResult is one completed checkout attempt and what each racing
// signal observed
type checkoutResult struct {
	attemptID       string
	expectedTotal   int64
	redirectOrderID string
	redelivered     bool
}

// main runs the storefront simulation. It starts a stub payment provider and
// the API server in-process, then drives concurrent shoppers whose redirect
// and webhook completion signals race for every checkout attempt.
func main() {
	// Start the stub payment provider
	go startStubGateway()

	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	products, err := fetchProducts()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch catalog")
	}

	// Generate random number of checkouts to run
	targetCheckouts := rand.Intn(maxCheckouts-minCheckouts) + minCheckouts
	log.Info().Int("target_checkouts", targetCheckouts).Msg("Starting simulation")

	resultsChan := make(chan checkoutResult, targetCheckouts)
	var wg sync.WaitGroup

	// Start worker goroutines, one shopper each
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runShopper(workerID, targetCheckouts/numWorkers, products, resultsChan)
		}(i)
	}

	wg.Wait()
	close(resultsChan)

	var results []checkoutResult
	for r := range resultsChan {
		results = append(results, r)
	}

	log.Info().Int("checkouts_completed", len(results)).Msg("All checkouts processed")
}

// runShopper drives one shopper through repeated cart/checkout/finalize
// cycles, racing both completion signals on every attempt
func runShopper(workerID, numCheckouts int, products []catalog.Product, resultsChan chan<- checkoutResult) {
	simClient, err := newSimulationClient()
	if err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to initialize shopper")
		return
	}

	duplicates := 0
	mismatches := 0

	for i := 0; i < numCheckouts; i++ {
		// Fill the cart with 1-3 random products
		numLines := rand.Intn(3) + 1
		for j := 0; j < numLines; j++ {
			product := products[rand.Intn(len(products))]
			line := types.CartLine{
				ProductID:           product.ProductID,
				Name:                product.Name,
				UnitPriceMinorUnits: product.UnitPriceMinorUnits,
				Quantity:            int64(rand.Intn(3) + 1),
			}
			if err := simClient.addCartItem(line); err != nil {
				log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to add cart item")
			}
		}

		attemptID, expectedTotal, err := simClient.initiateCheckout()
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to initiate checkout")
			continue
		}

		// Fire both completion signals concurrently; either may win the
		// insert, the loser must observe the winner's order
		eventID := "EVT_" + uuid.New().String()
		var signalWG sync.WaitGroup
		var redirectOrderID string

		signalWG.Add(2)
		go func() {
			defer signalWG.Done()
			orderID, err := simClient.fireRedirect(attemptID)
			if err != nil {
				log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Redirect signal failed")
				return
			}
			redirectOrderID = orderID
		}()
		go func() {
			defer signalWG.Done()
			if err := simClient.fireWebhook(attemptID, eventID); err != nil {
				log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Webhook delivery failed")
			}
		}()
		signalWG.Wait()

		// Random redelivery of the same logical event
		redelivered := rand.Intn(3) == 0
		if redelivered {
			if err := simClient.fireWebhook(attemptID, eventID); err != nil {
				log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Webhook redelivery failed")
			}
		}

		resultsChan <- checkoutResult{
			attemptID:       attemptID,
			expectedTotal:   expectedTotal,
			redirectOrderID: redirectOrderID,
			redelivered:     redelivered,
		}

		// Random sleep between checkouts
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
	}

	// Verify exactly one order per attempt with the authoritative total
	orderHistory, err := simClient.listOrders()
	if err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to list orders")
		return
	}

	byAttempt := make(map[string]int)
	for _, order := range orderHistory {
		byAttempt[order.AttemptID]++
		if byAttempt[order.AttemptID] > 1 {
			duplicates++
		}
	}
	for _, order := range orderHistory {
		if types.LineItems(order.Lines).Total() != order.TotalMinorUnits {
			mismatches++
		}
	}

	if duplicates > 0 || mismatches > 0 {
		log.Error().
			Int("worker_id", workerID).
			Int("duplicate_orders", duplicates).
			Int("total_mismatches", mismatches).
			Msg("LEDGER INVARIANT VIOLATED")
	} else {
		log.Info().
			Int("worker_id", workerID).
			Int("orders", len(orderHistory)).
			Msg("Ledger invariants held: one order per attempt, exact totals")
	}

	simClient.printPerformanceStats()
}

// fetchProducts loads the seeded catalog through the public API
func fetchProducts() ([]catalog.Product, error) {
	resp, err := http.Get(serverAddress + "/api/v1/products")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Data []catalog.Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return result.Data, nil
}

// startStubGateway runs a minimal payment provider: it accepts session
// creation calls and hands back a hosted page URL. Completion signals are
// fired by the shoppers themselves so their timing can be controlled.
func startStubGateway() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		sessionID := "SES_" + uuid.New().String()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"session_id":   sessionID,
			"redirect_url": "http://localhost" + gatewayAddress + "/pay/" + sessionID,
		})
	})

	if err := http.ListenAndServe(gatewayAddress, mux); err != nil {
		log.Fatal().Err(err).Msg("Stub gateway failed")
	}
}

// startServer initializes and starts the storefront API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(db, middleware.JWTSecret())
	catalogService := catalog.NewService(db)
	cartService := cart.NewService(db)
	orderService := orders.NewService(db, cartService)
	gatewayClient := gateway.NewClient("http://localhost"+gatewayAddress, "sk_test_storefront")
	checkoutService := checkout.NewService(
		orderService,
		catalogService,
		cartService,
		gatewayClient,
		serverAddress+"/api/v1/checkout/success",
		serverAddress+"/api/v1/checkout/cancel",
	)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	catalogHandlers := catalog.NewGinHandlers(catalogService)
	cartHandlers := cart.NewGinHandlers(cartService)
	checkoutHandlers := checkout.NewGinHandlers(checkoutService)
	orderHandlers := orders.NewGinHandlers(orderService, webhookSecret)

	// Setup routes
	setupRoutes(router, authHandlers, catalogHandlers, cartHandlers, checkoutHandlers, orderHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
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
