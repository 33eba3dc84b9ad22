package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"academy_billing_app/internal/billing"
	"academy_billing_app/internal/handlers"
	authMiddleware "academy_billing_app/internal/middleware"
	"academy_billing_app/internal/services"
	"academy_billing_app/internal/tasks"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.JSONErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize services and handlers
	billingService := billing.NewService(db)
	midtransService := services.NewMidtransService()
	paymentService := services.NewPaymentService(db, midtransService)

	planHandler := handlers.NewPlanHandler(billingService)
	gatewayHandler := handlers.NewGatewayHandler(db, billingService, paymentService, midtransService)
	reminderHandler := handlers.NewReminderHandler(tasks.NewDispatcher(db))

	// Public routes: the gateway authenticates by signature, the job endpoint
	// by shared token.
	e.POST("/api/payments/midtrans/callback", gatewayHandler.HandleMidtransCallback)
	e.POST("/api/jobs/reminders", reminderHandler.TriggerReminders)

	// Plan routes
	api := e.Group("/api")
	api.Use(authMiddleware.RequireAuth(authClient))
	api.POST("/plans", planHandler.CreatePlan)
	api.GET("/plans/:uuid", planHandler.GetPlan)
	api.POST("/plans/:uuid/payments", planHandler.ApplyPayment)
	api.POST("/plans/:uuid/status", planHandler.ChangeStatus)
	api.POST("/plans/:uuid/checkout", gatewayHandler.InitiateCheckout)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
