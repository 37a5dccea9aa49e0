package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/studyshare/backend/internal/config"
	"github.com/studyshare/backend/internal/database"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/pkg/logger"
	"github.com/studyshare/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	tokens *services.TokenService
}

var testSetupOnce sync.Once

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:        "test-access-secret",
		RefreshSecret:       "test-refresh-secret",
		AccessExpiryMinutes: 15,
		RefreshExpiryDays:   7,
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	tokenService := services.NewTokenService(db, testJWTConfig())
	discoveryService := services.NewDiscoveryService(db)
	ratingService := services.NewRatingService(db)

	authHandler := NewAuthHandler(db, tokenService, nil)
	resourcesHandler := NewResourcesHandler(db, discoveryService, nil)
	ratingsHandler := NewRatingsHandler(ratingService)
	commentsHandler := NewCommentsHandler(db)
	adminHandler := NewAdminHandler(db)
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

	return &testEnv{app: app, db: db, tokens: tokenService}
}

func createTestUser(t *testing.T, env *testEnv, username, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     "Test User",
		PasswordHash: hash,
		Role:         role,
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := env.tokens.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("failed issuing access token: %v", err)
	}

	return user, token
}

func createTestResource(t *testing.T, env *testEnv, owner *models.User, title string, branch models.Branch, semester int) *models.Resource {
	t.Helper()

	resource := &models.Resource{
		Title:       title,
		Description: "Notes for " + title,
		Branch:      branch,
		Semester:    semester,
		URL:         "https://files.example.com/" + title + ".pdf",
	}
	if owner != nil {
		resource.OwnerID = &owner.ID
	}
	if err := env.db.Create(resource).Error; err != nil {
		t.Fatalf("failed creating test resource: %v", err)
	}

	return resource
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %+v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["message"].(string); got != expected {
		t.Fatalf("expected error message %q, got %q", expected, got)
	}
}
