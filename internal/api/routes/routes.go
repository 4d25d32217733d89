// server/internal/api/routes/routes.go
package routes

import (
	"context"
	"net/http"
	"slices"

	"ecotrack-api-server/config"
	"ecotrack-api-server/internal/activity"
	"ecotrack-api-server/internal/api/handlers"
	"ecotrack-api-server/internal/api/middleware"
	"ecotrack-api-server/internal/auth"
	"ecotrack-api-server/internal/events"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/pickup"
	"ecotrack-api-server/internal/socket"
	"ecotrack-api-server/internal/store"
	"ecotrack-api-server/internal/upload"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the components the router hands to the handlers.
type Dependencies struct {
	Config  config.Config
	Store   store.Store
	Tokens  *auth.TokenManager
	Events  events.Publisher
	Hub     *socket.Hub
	Uploads *upload.Service
	// ServeLocalUploads mounts upload.localDir under upload.baseURL.
	ServeLocalUploads bool
}

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route.
// ctx bounds background work such as the rate limiter cleanup.
func SetupRouter(ctx context.Context, deps Dependencies) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), cors.New(corsConfig(deps.Config.Server.CORSOrigins)))

	recorder := activity.NewRecorder(deps.Store.Activity())

	// Khởi tạo các handlers
	userHandler := &handlers.UserHandler{Store: deps.Store, Tokens: deps.Tokens, Events: deps.Events, Activity: recorder}
	wasteHandler := &handlers.WasteHandler{Store: deps.Store, Events: deps.Events, Activity: recorder}
	pickupHandler := &handlers.PickupHandler{Service: pickup.NewService(deps.Store, deps.Events, recorder)}
	settingsHandler := &handlers.SettingsHandler{Store: deps.Store, Activity: recorder}
	activityHandler := &handlers.ActivityHandler{Store: deps.Store}
	adminHandler := &handlers.AdminHandler{Store: deps.Store, Events: deps.Events, Activity: recorder}
	uploadHandler := &handlers.UploadHandler{Uploads: deps.Uploads, Activity: recorder}
	webSocketHandler := &handlers.WebSocketHandler{Hub: deps.Hub, Tokens: deps.Tokens}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": deps.Hub.Count()})
	})
	if deps.ServeLocalUploads {
		router.Static(deps.Config.Upload.BaseURL, deps.Config.Upload.LocalDir)
	}

	apiV1 := router.Group("/api/v1")
	{
		// Route cho WebSocket, token nằm trong query
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// === CÁC ROUTE KHÔNG YÊU CẦU XÁC THỰC ===
		limiter := middleware.RateLimitByIP(ctx, deps.Config.RateLimit.LoginRPS, deps.Config.RateLimit.LoginBurst)
		authPublic := apiV1.Group("/auth")
		authPublic.Use(limiter)
		{
			authPublic.POST("/register", userHandler.Register)
			authPublic.POST("/login", userHandler.Login)
		}

		// === CÁC ROUTE YÊU CẦU XÁC THỰC (PROTECTED) ===
		protected := apiV1.Group("/")
		protected.Use(middleware.Authenticate(deps.Tokens))
		{
			me := protected.Group("/auth/me")
			{
				me.GET("", userHandler.Me)
				me.PUT("", userHandler.UpdateMe)
				me.PUT("/password", userHandler.ChangePassword)
				me.PUT("/availability", middleware.Authorize(models.RoleDriver), userHandler.SetAvailability)
			}

			waste := protected.Group("/waste")
			{
				waste.POST("", middleware.Authorize(models.RoleUser), wasteHandler.LogWaste)
				waste.GET("", wasteHandler.ListWaste)
				waste.GET("/stats", wasteHandler.Stats)
			}

			pickups := protected.Group("/pickups")
			{
				pickups.POST("", middleware.Authorize(models.RoleUser), pickupHandler.CreatePickup)
				pickups.GET("", pickupHandler.ListPickups)
				pickups.GET("/:id", pickupHandler.GetPickup)
				pickups.POST("/:id/cancel", middleware.Authorize(models.RoleUser, models.RoleAdmin), pickupHandler.CancelPickup)

				// Route chỉ cho driver
				driverActions := pickups.Group("/:id")
				driverActions.Use(middleware.Authorize(models.RoleDriver))
				{
					driverActions.POST("/claim", pickupHandler.ClaimPickup)
					driverActions.POST("/start", pickupHandler.StartPickup)
					driverActions.POST("/release", pickupHandler.ReleasePickup)
					driverActions.POST("/complete", pickupHandler.CompletePickup)
				}
			}

			protected.GET("/settings", settingsHandler.GetSettings)
			protected.PUT("/settings", middleware.Authorize(models.RoleAdmin), settingsHandler.UpdateSettings)

			protected.GET("/activity", activityHandler.ListActivity)

			protected.POST("/upload", uploadHandler.UploadFile)

			// Nhóm API quản trị, yêu cầu vai trò "admin"
			admin := protected.Group("/admin")
			admin.Use(middleware.Authorize(models.RoleAdmin))
			{
				admin.GET("/users", adminHandler.ListUsers)
				admin.GET("/users/:id", adminHandler.GetUser)
				admin.PUT("/users/:id", adminHandler.UpdateUser)
				admin.DELETE("/users/:id", adminHandler.DeleteUser)
				admin.PUT("/drivers/:id/assignment", adminHandler.AssignVehicle)
				admin.POST("/pickups/:id/assign", pickupHandler.AssignPickup)
				admin.GET("/overview", adminHandler.Overview)
			}
		}
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
