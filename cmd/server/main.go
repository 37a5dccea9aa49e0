package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/studyshare/backend/internal/config"
	"github.com/studyshare/backend/internal/database"
	"github.com/studyshare/backend/internal/handlers"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/pkg/logger"
	"github.com/studyshare/backend/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	logger.Init()
	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	tokenService := services.NewTokenService(db, cfg.JWT)
	discoveryService := services.NewDiscoveryService(db)
	ratingService := services.NewRatingService(db)

	authHandler := handlers.NewAuthHandler(db, tokenService, storageClient)
	resourcesHandler := handlers.NewResourcesHandler(db, discoveryService, storageClient)
	ratingsHandler := handlers.NewRatingsHandler(ratingService)
	commentsHandler := handlers.NewCommentsHandler(db)
	adminHandler := handlers.NewAdminHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db, tokenService)

	app := fiber.New(fiber.Config{
		BodyLimit:    100 * 1024 * 1024,
		ErrorHandler: utils.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh-token", authHandler.Refresh)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Put("/avatar", authMiddleware.RequireAuth, authHandler.UpdateAvatar)

	resourceRoutes := api.Group("/resources", authMiddleware.RequireAuth)
	resourceRoutes.Post("/", resourcesHandler.Create)
	resourceRoutes.Get("/", resourcesHandler.List)
	resourceRoutes.Get("/:id", resourcesHandler.Get)
	resourceRoutes.Put("/:id", resourcesHandler.Update)
	resourceRoutes.Delete("/:id", resourcesHandler.Delete)

	resourceRoutes.Post("/:id/rate", ratingsHandler.Rate)
	resourceRoutes.Get("/:id/rating", ratingsHandler.GetMean)
	resourceRoutes.Delete("/:id/rating", ratingsHandler.Remove)

	resourceRoutes.Post("/:id/comments", commentsHandler.Add)
	resourceRoutes.Get("/:id/comments", commentsHandler.List)
	resourceRoutes.Put("/:id/comments/:commentId", commentsHandler.Edit)
	resourceRoutes.Delete("/:id/comments/:commentId", commentsHandler.Delete)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/dashboard", adminHandler.Dashboard)
	adminRoutes.Delete("/users/:userId", adminHandler.DeleteUser)
	adminRoutes.Patch("/users/:userId/block", adminHandler.BlockUser)
	adminRoutes.Patch("/users/:userId/unblock", adminHandler.UnblockUser)
	adminRoutes.Patch("/resources/:resourceId/block", adminHandler.BlockResource)
	adminRoutes.Patch("/resources/:resourceId/unblock", adminHandler.UnblockResource)

	logger.Info("server_starting", map[string]interface{}{"port": cfg.Server.Port})
	if err := app.Listen(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
