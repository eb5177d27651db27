// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/handlers"
	"github.com/sokoni/sokoni-backend/internal/middleware"
	"github.com/sokoni/sokoni-backend/internal/services"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)
	verificationService := services.NewVerificationService(cfg)
	settlementService := services.NewSettlementService()

	authService := services.NewAuthService(db, cfg)
	productService := services.NewProductService(db)
	orderService := services.NewOrderService(db, cfg, verificationService, settlementService, notificationService)
	paymentService := services.NewPaymentService(db, cfg, orderService)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService, storageService)
	orderHandler := handlers.NewOrderHandler(orderService)
	fulfillmentHandler := handlers.NewFulfillmentHandler(orderService, storageService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	adminHandler := handlers.NewAdminHandler(adminService, orderService, cfg)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Product routes
		products := v1.Group("/products")
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:id", productHandler.GetProduct)

			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", productHandler.CreateProduct)
				protected.PUT("/:id", productHandler.UpdateProduct)
				protected.GET("/mine", productHandler.ListMyProducts)
				protected.POST("/images", middleware.UploadRateLimit(), productHandler.UploadProductImage)
			}
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.POST("/intent", paymentHandler.CreateOrderIntent)
			payments.POST("/confirm", paymentHandler.ConfirmOrderPayment)
		}

		// Order routes (buyer/seller view)
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.GET("", orderHandler.ListMyOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.GET("/:id/history", orderHandler.GetStatusHistory)
			orders.GET("/:id/confirmations", orderHandler.GetConfirmations)
			orders.GET("/:id/ledger", orderHandler.GetCommissionLedger)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
		}

		// Fulfillment routes (agent custody protocol)
		fulfillment := v1.Group("/fulfillment")
		fulfillment.Use(middleware.AuthRequired(), middleware.AgentRequired())
		{
			fulfillment.GET("/orders", fulfillmentHandler.ListAssignedOrders)
			fulfillment.POST("/orders/:id/advance", fulfillmentHandler.AdvanceStatus)
			fulfillment.POST("/orders/:id/ready", fulfillmentHandler.MarkReadyForPickup)
			fulfillment.POST("/orders/:id/confirm-deposit", middleware.ConfirmationRateLimit(), fulfillmentHandler.ConfirmDeposit)
			fulfillment.POST("/orders/:id/confirm-pickup", middleware.ConfirmationRateLimit(), fulfillmentHandler.ConfirmPickup)
			fulfillment.POST("/evidence", middleware.UploadRateLimit(), fulfillmentHandler.UploadEvidence)
		}

		// Notification routes
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthRequired())
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.GetDashboard)

			adminAgents := admin.Group("/agents")
			{
				adminAgents.POST("", adminHandler.CreateAgent)
				adminAgents.GET("", adminHandler.ListAgents)
				adminAgents.GET("/:id", adminHandler.GetAgent)
				adminAgents.PUT("/:id/status", adminHandler.SetAgentStatus)
			}

			adminOrders := admin.Group("/orders")
			{
				adminOrders.GET("/stale", adminHandler.ListStaleOrders)
				adminOrders.POST("/:id/assign", adminHandler.AssignPDA)
				adminOrders.POST("/:id/cancel", orderHandler.CancelOrder)
				adminOrders.POST("/:id/refund", paymentHandler.RefundOrder)
			}

			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.ListUsers)
			}
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
