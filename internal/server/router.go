// Package server wires repositories, services and handlers into a gin engine.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/handlers"
	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/middleware"
	"github.com/h4ks-com/fieldops/internal/repository"
	"github.com/h4ks-com/fieldops/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

type Options struct {
	TestMode    bool
	Metrics     bool
	Swagger     bool
	ServiceName string
}

// Services is the service graph behind the HTTP surface.
type Services struct {
	Tasks         *services.TaskService
	Inventory     *services.InventoryService
	Harvests      *services.HarvestService
	Catalog       *services.CatalogService
	Tokens        *services.TokenService
	Notifications *services.NotificationService
}

func NewServices(db *gorm.DB, jwtSecret string) *Services {
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	harvestRepo := repository.NewHarvestRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	inventoryService := services.NewInventoryService(inventoryRepo, userRepo, db)
	harvestService := services.NewHarvestService(harvestRepo)
	notificationService := services.NewNotificationService(notificationRepo)

	return &Services{
		Tasks: services.NewTaskService(db, services.TaskServiceDeps{
			Tasks:        taskRepo,
			Users:        userRepo,
			Catalog:      catalogRepo,
			Inventory:    inventoryRepo,
			Harvests:     harvestRepo,
			Registry:     indicators.NewRegistry(),
			Ledger:       inventoryService,
			Consolidator: harvestService,
			Notifier:     notificationService,
		}),
		Inventory:     inventoryService,
		Harvests:      harvestService,
		Catalog:       services.NewCatalogService(userRepo, catalogRepo),
		Tokens:        services.NewTokenService(tokenRepo, userRepo, jwtSecret),
		Notifications: notificationService,
	}
}

func NewRouter(db *gorm.DB, svc *Services, opts Options) *gin.Engine {
	authMiddleware := middleware.NewAuthMiddleware(svc.Tokens, svc.Catalog, opts.TestMode)

	taskHandler := handlers.NewTaskHandler(svc.Tasks)
	inventoryHandler := handlers.NewInventoryHandler(svc.Inventory)
	harvestHandler := handlers.NewHarvestHandler(svc.Harvests)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	tokenHandler := handlers.NewTokenHandler(svc.Tokens)
	adminHandler := handlers.NewAdminHandler(svc.Catalog)
	publicHandler := handlers.NewPublicHandler(svc.Catalog, db)

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}

	router.GET("/health", publicHandler.Health)
	if opts.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/activity-types", publicHandler.ListActivityTypes)
		api.GET("/units", publicHandler.ListUnits)

		authenticated := api.Group("")
		authenticated.Use(authMiddleware.RequireAuth())
		{
			authenticated.POST("/tasks", taskHandler.CreateTask)
			authenticated.GET("/tasks", taskHandler.ListTasks)
			authenticated.GET("/tasks/:id", taskHandler.GetTask)
			authenticated.PUT("/tasks/:id/assignments", taskHandler.UpdateAssignments)
			authenticated.POST("/tasks/:id/start", taskHandler.StartTask)
			authenticated.POST("/tasks/:id/complete", taskHandler.CompleteTask)
			authenticated.POST("/tasks/:id/verify", taskHandler.VerifyTask)
			authenticated.POST("/tasks/:id/cancel", taskHandler.CancelTask)
			authenticated.PUT("/tasks/:id/requirements", taskHandler.ConfigureRequirements)
			authenticated.PUT("/tasks/:id/consumables", taskHandler.ConfigureConsumables)

			authenticated.GET("/inventory/items", inventoryHandler.ListItems)
			authenticated.POST("/inventory/items", inventoryHandler.CreateItem)
			authenticated.GET("/inventory/items/:id", inventoryHandler.GetItem)
			authenticated.GET("/inventory/items/:id/movements", inventoryHandler.Movements)
			authenticated.GET("/inventory/items/:id/audit", inventoryHandler.Audit)
			authenticated.POST("/inventory/items/:id/receive", inventoryHandler.Receive)
			authenticated.POST("/inventory/items/:id/adjust", inventoryHandler.Adjust)
			authenticated.POST("/inventory/items/:id/write-off", inventoryHandler.WriteOff)
			authenticated.POST("/inventory/items/:id/loan", inventoryHandler.Loan)
			authenticated.POST("/inventory/items/:id/return", inventoryHandler.Return)

			authenticated.GET("/harvests", harvestHandler.ListHarvests)
			authenticated.GET("/harvests/:code", harvestHandler.GetHarvest)

			authenticated.GET("/notifications", notificationHandler.ListNotifications)
			authenticated.POST("/notifications/:id/read", notificationHandler.MarkRead)

			authenticated.POST("/tokens", tokenHandler.CreateToken)
			authenticated.GET("/tokens", tokenHandler.ListTokens)
			authenticated.DELETE("/tokens/:id", tokenHandler.DeleteToken)
		}

		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), middleware.RequireManager())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users", adminHandler.UpsertUser)
			admin.POST("/plots", adminHandler.CreatePlot)
			admin.POST("/campaigns", adminHandler.CreateCampaign)
		}
	}

	return router
}
