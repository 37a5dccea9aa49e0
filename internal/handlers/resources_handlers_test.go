package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/studyshare/backend/internal/models"
)

func TestResourceCreateEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	owner, token := createTestUser(t, env, "res-owner", "res-owner@test.com", "password123", models.UserRoleUser)

	validPayload := func() map[string]any {
		return map[string]any{
			"title":       "Operating Systems Notes",
			"description": "Complete unit-wise notes for the OS course.",
			"branch":      "CSE",
			"semester":    "4",
			"url":         "https://files.example.com/os-notes.pdf",
			"fileSize":    1024,
		}
	}

	t.Run("POST /api/resources/ creates a resource with a hosted url", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/resources/", validPayload(), authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, body)
		if data["title"] != "Operating Systems Notes" {
			t.Fatalf("expected created title, got %v", data["title"])
		}
		ownerData, ok := data["owner"].(map[string]any)
		if !ok {
			t.Fatalf("expected owner enrichment in created resource, got %+v", data)
		}
		if ownerData["id"] != owner.ID.String() {
			t.Fatalf("expected owner %s, got %v", owner.ID, ownerData["id"])
		}
	})

	t.Run("POST /api/resources/ requires authentication", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/resources/", validPayload(), nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "you need to log in to access this route")
	})

	t.Run("POST /api/resources/ invalid branch is rejected", func(t *testing.T) {
		payload := validPayload()
		payload["branch"] = "ROBOTICS"
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/resources/", payload, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid branch provided")
	})

	t.Run("POST /api/resources/ out-of-range semester is rejected", func(t *testing.T) {
		payload := validPayload()
		payload["semester"] = "9"
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/resources/", payload, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "semester must be a number between 1 and 8")
	})

	t.Run("POST /api/resources/ short description is rejected", func(t *testing.T) {
		payload := validPayload()
		payload["description"] = "too short"
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/resources/", payload, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "description must be at least 10 characters long")
	})

	t.Run("POST /api/resources/ without file or url is rejected", func(t *testing.T) {
		payload := validPayload()
		delete(payload, "url")
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/resources/", payload, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "a file upload or file url is required")
	})
}

func TestResourceListEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	owner, token := createTestUser(t, env, "list-owner", "list-owner@test.com", "password123", models.UserRoleUser)

	createTestResource(t, env, owner, "DBMS Question Bank", models.BranchCSE, 4)
	createTestResource(t, env, owner, "Thermodynamics Notes", models.BranchMECH, 3)
	createTestResource(t, env, owner, "Signals 100% Coverage", models.BranchECE, 4)
	blocked := createTestResource(t, env, owner, "Blocked Upload", models.BranchCSE, 4)
	if err := env.db.Model(blocked).Update("is_blocked", true).Error; err != nil {
		t.Fatalf("failed blocking resource: %v", err)
	}
	orphan := createTestResource(t, env, nil, "Orphaned Handout", models.BranchCIVIL, 1)
	if err := env.db.Model(orphan).Update("created_at", time.Now().Add(time.Hour)).Error; err != nil {
		t.Fatalf("failed bumping created_at: %v", err)
	}

	listItems := func(t *testing.T, path string) []any {
		t.Helper()
		resp := performRequest(t, env.app, http.MethodGet, path, nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		items, ok := data["items"].([]any)
		if !ok {
			t.Fatalf("expected items array, got %+v", data)
		}
		return items
	}

	t.Run("GET /api/resources/ returns visible resources newest first", func(t *testing.T) {
		items := listItems(t, "/api/resources/")
		if len(items) != 4 {
			t.Fatalf("expected 4 visible resources, got %d", len(items))
		}
		first := items[0].(map[string]any)
		if first["title"] != "Orphaned Handout" {
			t.Fatalf("expected newest resource first, got %v", first["title"])
		}
		for _, item := range items {
			if item.(map[string]any)["title"] == "Blocked Upload" {
				t.Fatalf("blocked resource must not appear in listings")
			}
		}
	})

	t.Run("GET /api/resources/ filters by branch and semester", func(t *testing.T) {
		items := listItems(t, "/api/resources/?branch=CSE&semester=4")
		if len(items) != 1 {
			t.Fatalf("expected 1 match, got %d", len(items))
		}
		if items[0].(map[string]any)["title"] != "DBMS Question Bank" {
			t.Fatalf("unexpected match: %v", items[0])
		}
	})

	t.Run("GET /api/resources/ search is case-insensitive substring match", func(t *testing.T) {
		items := listItems(t, "/api/resources/?searchQuery=thermo")
		if len(items) != 1 {
			t.Fatalf("expected 1 match, got %d", len(items))
		}
		if items[0].(map[string]any)["title"] != "Thermodynamics Notes" {
			t.Fatalf("unexpected match: %v", items[0])
		}
	})

	t.Run("GET /api/resources/ search treats LIKE metacharacters literally", func(t *testing.T) {
		items := listItems(t, "/api/resources/?searchQuery=100%25")
		if len(items) != 1 {
			t.Fatalf("expected only the literal %%-titled resource, got %d", len(items))
		}
		if items[0].(map[string]any)["title"] != "Signals 100% Coverage" {
			t.Fatalf("unexpected match: %v", items[0])
		}
	})

	t.Run("GET /api/resources/ deleted owner projects as null", func(t *testing.T) {
		items := listItems(t, "/api/resources/?searchQuery=Orphaned")
		if len(items) != 1 {
			t.Fatalf("expected 1 match, got %d", len(items))
		}
		if owner := items[0].(map[string]any)["owner"]; owner != nil {
			t.Fatalf("expected null owner for orphaned resource, got %v", owner)
		}
	})

	t.Run("GET /api/resources/ invalid semester is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/?semester=abc", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "semester must be a number between 1 and 8")
	})

	t.Run("GET /api/resources/ invalid branch is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/?branch=UNKNOWN", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid branch provided")
	})

	t.Run("GET /api/resources/ empty result is an empty page", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/?branch=AIML", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if items := data["items"].([]any); len(items) != 0 {
			t.Fatalf("expected empty items, got %d", len(items))
		}
		if data["totalItems"].(float64) != 0 {
			t.Fatalf("expected totalItems 0, got %v", data["totalItems"])
		}
	})
}

func TestResourceListPagination(t *testing.T) {
	env := setupTestEnv(t)
	owner, token := createTestUser(t, env, "page-owner", "page-owner@test.com", "password123", models.UserRoleUser)

	for i := 1; i <= 25; i++ {
		createTestResource(t, env, owner, fmt.Sprintf("Paged Resource %02d", i), models.BranchISE, 2)
	}

	page := func(t *testing.T, path string) map[string]any {
		t.Helper()
		resp := performRequest(t, env.app, http.MethodGet, path, nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		return dataMap(t, body)
	}

	t.Run("default page size is 10", func(t *testing.T) {
		data := page(t, "/api/resources/")
		if items := data["items"].([]any); len(items) != 10 {
			t.Fatalf("expected 10 items, got %d", len(items))
		}
		if data["totalItems"].(float64) != 25 {
			t.Fatalf("expected 25 total items, got %v", data["totalItems"])
		}
		if data["totalPages"].(float64) != 3 {
			t.Fatalf("expected 3 total pages, got %v", data["totalPages"])
		}
		if data["currentPage"].(float64) != 1 {
			t.Fatalf("expected current page 1, got %v", data["currentPage"])
		}
	})

	t.Run("last page holds the remainder", func(t *testing.T) {
		data := page(t, "/api/resources/?page=3&limit=10")
		if items := data["items"].([]any); len(items) != 5 {
			t.Fatalf("expected 5 items on last page, got %d", len(items))
		}
		if data["currentPage"].(float64) != 3 {
			t.Fatalf("expected current page 3, got %v", data["currentPage"])
		}
	})

	t.Run("page past the end is empty but well-formed", func(t *testing.T) {
		data := page(t, "/api/resources/?page=9")
		if items := data["items"].([]any); len(items) != 0 {
			t.Fatalf("expected no items past the end, got %d", len(items))
		}
		if data["totalPages"].(float64) != 3 {
			t.Fatalf("expected 3 total pages, got %v", data["totalPages"])
		}
	})

	t.Run("limit is clamped to the maximum", func(t *testing.T) {
		data := page(t, "/api/resources/?limit=5000")
		if items := data["items"].([]any); len(items) != 25 {
			t.Fatalf("expected all 25 items under the clamp, got %d", len(items))
		}
	})

	t.Run("non-positive page falls back to the first", func(t *testing.T) {
		data := page(t, "/api/resources/?page=-2")
		if data["currentPage"].(float64) != 1 {
			t.Fatalf("expected current page 1, got %v", data["currentPage"])
		}
	})
}

func TestResourceGetUpdateDeleteEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env, "crud-owner", "crud-owner@test.com", "password123", models.UserRoleUser)
	_, strangerToken := createTestUser(t, env, "crud-stranger", "crud-stranger@test.com", "password123", models.UserRoleUser)
	_, adminToken := createTestUser(t, env, "crud-admin", "crud-admin@test.com", "password123", models.UserRoleAdmin)

	resource := createTestResource(t, env, owner, "Linear Algebra Notes", models.BranchCSE, 3)

	t.Run("GET /api/resources/:id returns the enriched view", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/"+resource.ID.String(), nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["title"] != "Linear Algebra Notes" {
			t.Fatalf("unexpected resource: %+v", data)
		}
		ownerData := data["owner"].(map[string]any)
		if ownerData["username"] != "crud-owner" {
			t.Fatalf("expected owner enrichment, got %+v", ownerData)
		}
	})

	t.Run("GET /api/resources/:id unknown id is not found", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/00000000-0000-0000-0000-000000000000", nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, body, "resource not found")
	})

	t.Run("GET /api/resources/:id malformed id is bad request", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/not-a-uuid", nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid resource id")
	})

	t.Run("GET /api/resources/:id blocked resource reads as missing", func(t *testing.T) {
		hidden := createTestResource(t, env, owner, "Hidden Notes", models.BranchCSE, 3)
		if err := env.db.Model(hidden).Update("is_blocked", true).Error; err != nil {
			t.Fatalf("failed blocking resource: %v", err)
		}
		resp := performRequest(t, env.app, http.MethodGet, "/api/resources/"+hidden.ID.String(), nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, body, "resource not found")
	})

	t.Run("PUT /api/resources/:id owner can update", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/resources/"+resource.ID.String(), map[string]any{
			"title":       "Linear Algebra Notes v2",
			"description": "Revised notes with worked examples.",
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if data := dataMap(t, body); data["title"] != "Linear Algebra Notes v2" {
			t.Fatalf("expected updated title, got %v", data["title"])
		}
	})

	t.Run("PUT /api/resources/:id stranger is forbidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/resources/"+resource.ID.String(), map[string]any{
			"title":       "Hijacked Title",
			"description": "Should never be applied to the row.",
		}, authHeaders(strangerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "you are not authorized to update this resource")
	})

	t.Run("PUT /api/resources/:id admin can update", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/resources/"+resource.ID.String(), map[string]any{
			"title":       "Moderated Title",
			"description": "Admin cleaned up the description.",
		}, authHeaders(adminToken))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	})

	t.Run("DELETE /api/resources/:id stranger is forbidden", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/resources/"+resource.ID.String(), nil, authHeaders(strangerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "you are not authorized to delete this resource")
	})

	t.Run("DELETE /api/resources/:id owner delete cascades to children", func(t *testing.T) {
		doomed := createTestResource(t, env, owner, "Doomed Resource", models.BranchECE, 5)
		if err := env.db.Create(&models.Rating{UserID: owner.ID, ResourceID: doomed.ID, Value: 5}).Error; err != nil {
			t.Fatalf("failed seeding rating: %v", err)
		}
		if err := env.db.Create(&models.Comment{UserID: owner.ID, ResourceID: doomed.ID, Text: "seed comment"}).Error; err != nil {
			t.Fatalf("failed seeding comment: %v", err)
		}

		resp := performRequest(t, env.app, http.MethodDelete, "/api/resources/"+doomed.ID.String(), nil, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		var ratings, comments int64
		env.db.Model(&models.Rating{}).Where("resource_id = ?", doomed.ID).Count(&ratings)
		env.db.Model(&models.Comment{}).Where("resource_id = ?", doomed.ID).Count(&comments)
		if ratings != 0 || comments != 0 {
			t.Fatalf("expected cascaded delete, got %d ratings and %d comments", ratings, comments)
		}
	})
}
