package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fited/stocktrack/internal/database"
	"github.com/fited/stocktrack/internal/handlers"
	"github.com/fited/stocktrack/internal/middleware"
	"github.com/fited/stocktrack/internal/models"
	"github.com/fited/stocktrack/internal/services"
	glebarez "github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory database with the inventory schema
// and seeded material rows
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(glebarez.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if err := database.SeedStock(db); err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return db
}

func setupSettings(t *testing.T) *services.SettingsService {
	t.Helper()
	db, err := gorm.Open(glebarez.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create settings database: %v", err)
	}
	if err := db.AutoMigrate(&models.LocalSetting{}); err != nil {
		t.Fatalf("Failed to migrate settings database: %v", err)
	}
	return services.NewSettingsService(db)
}

// setupStockApp builds a Fiber app with the inventory routes and a
// stand-in auth middleware that only attributes the user
func setupStockApp(t *testing.T, db *gorm.DB) (*fiber.App, *services.SettingsService) {
	t.Helper()
	settings := setupSettings(t)
	stock := services.NewStockService(
		services.NewGormGateway(db),
		services.NewNotifier(&services.NoOpProvider{}),
		settings,
		200,
	)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userEmail", "tester@fited.co")
		return c.Next()
	})

	handler := &handlers.StockHandler{Service: stock, Settings: settings}
	app.Get("/api/stock", handler.GetStock)
	app.Get("/api/stock/log", handler.GetLog)
	app.Post("/api/stock/:material/add", handler.AddStock)
	app.Post("/api/stock/:material/subtract", handler.SubtractStock)

	settingsHandler := &handlers.SettingsHandler{Settings: settings}
	app.Get("/api/settings/thresholds", settingsHandler.GetThresholds)
	app.Post("/api/settings/thresholds", settingsHandler.SetThresholds)

	return app, settings
}

func postJSON(t *testing.T, app *fiber.App, path, body string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	result["__status"] = float64(resp.StatusCode)
	return result
}

// TestGetStock tests the snapshot endpoint, including the low filter
func TestGetStock(t *testing.T) {
	db := setupTestDB(t)
	app, _ := setupStockApp(t, db)

	if res := postJSON(t, app, "/api/stock/PLA/add", `{"amount": 50}`); res["__status"] != float64(200) {
		t.Fatalf("Failed to add stock: %v", res)
	}

	req := httptest.NewRequest("GET", "/api/stock", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	rows := result["stock"].([]interface{})
	if len(rows) != len(models.Materials) {
		t.Errorf("Expected %d rows, got %d", len(models.Materials), len(rows))
	}
	if result["total_quantity"].(float64) != 50 {
		t.Errorf("Expected total 50, got %v", result["total_quantity"])
	}

	// With the low filter only materials at or below threshold remain;
	// PLA sits at 50, everything else at 0
	req = httptest.NewRequest("GET", "/api/stock?low=true", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	rows = result["stock"].([]interface{})
	if len(rows) != len(models.Materials)-1 {
		t.Errorf("Expected %d low rows, got %d", len(models.Materials)-1, len(rows))
	}
	for _, r := range rows {
		row := r.(map[string]interface{})
		if row["material"] == "PLA" {
			t.Error("Expected PLA excluded from low filter")
		}
		if row["low"] != true {
			t.Errorf("Expected low=true, got %v", row["low"])
		}
	}
}

// TestAddStock tests the add endpoint, amount coercion included
func TestAddStock(t *testing.T) {
	db := setupTestDB(t)
	app, _ := setupStockApp(t, db)

	// String amounts are accepted
	res := postJSON(t, app, "/api/stock/TPU/add", `{"amount": "7", "note": "delivery"}`)
	if res["__status"] != float64(200) {
		t.Fatalf("Expected status 200, got %v: %v", res["__status"], res)
	}
	if res["newQuantity"].(float64) != 7 {
		t.Errorf("Expected newQuantity 7, got %v", res["newQuantity"])
	}
	if res["material"] != "TPU" {
		t.Errorf("Expected material TPU, got %v", res["material"])
	}

	// Lowercase material path parameter is normalized
	res = postJSON(t, app, "/api/stock/tpu/add", `{"amount": 3}`)
	if res["__status"] != float64(200) {
		t.Fatalf("Expected status 200, got %v: %v", res["__status"], res)
	}
	if res["newQuantity"].(float64) != 10 {
		t.Errorf("Expected newQuantity 10, got %v", res["newQuantity"])
	}

	cases := []struct {
		name string
		path string
		body string
	}{
		{"ZeroAmount", "/api/stock/TPU/add", `{"amount": 0}`},
		{"NegativeAmount", "/api/stock/TPU/add", `{"amount": -4}`},
		{"UnknownMaterial", "/api/stock/WOOD/add", `{"amount": 5}`},
		{"MalformedBody", "/api/stock/TPU/add", `{"amount": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := postJSON(t, app, tc.path, tc.body)
			if res["__status"] != float64(400) {
				t.Errorf("Expected status 400, got %v", res["__status"])
			}
		})
	}
}

// TestSubtractStock tests the subtract endpoint, clamp and reason
// handling included
func TestSubtractStock(t *testing.T) {
	db := setupTestDB(t)
	app, _ := setupStockApp(t, db)

	if res := postJSON(t, app, "/api/stock/ABS/add", `{"amount": 10}`); res["__status"] != float64(200) {
		t.Fatalf("Failed to add stock: %v", res)
	}

	res := postJSON(t, app, "/api/stock/ABS/subtract", `{"amount": 25, "reason": "print", "note": "large job"}`)
	if res["__status"] != float64(200) {
		t.Fatalf("Expected status 200, got %v: %v", res["__status"], res)
	}
	if res["newQuantity"].(float64) != 0 {
		t.Errorf("Expected clamped newQuantity 0, got %v", res["newQuantity"])
	}
	if res["low"] != true {
		t.Errorf("Expected low=true at zero, got %v", res["low"])
	}

	// Missing and unknown reasons are rejected
	res = postJSON(t, app, "/api/stock/ABS/subtract", `{"amount": 2}`)
	if res["__status"] != float64(400) {
		t.Errorf("Expected status 400 without a reason, got %v", res["__status"])
	}
	res = postJSON(t, app, "/api/stock/ABS/subtract", `{"amount": 2, "reason": "misplaced"}`)
	if res["__status"] != float64(400) {
		t.Errorf("Expected status 400 for an unknown reason, got %v", res["__status"])
	}
}

// TestGetLog tests the log endpoint with the material filter
func TestGetLog(t *testing.T) {
	db := setupTestDB(t)
	app, _ := setupStockApp(t, db)

	postJSON(t, app, "/api/stock/PP/add", `{"amount": 5}`)
	postJSON(t, app, "/api/stock/PLA/add", `{"amount": 6}`)
	postJSON(t, app, "/api/stock/PP/subtract", `{"amount": 1, "reason": "print"}`)

	req := httptest.NewRequest("GET", "/api/stock/log?material=PP", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	entries := result["log"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("Expected 2 PP entries, got %d", len(entries))
	}
	for _, e := range entries {
		entry := e.(map[string]interface{})
		if entry["material"] != "PP" {
			t.Errorf("Expected only PP entries, got %v", entry["material"])
		}
		if entry["user_email"] != "tester@fited.co" {
			t.Errorf("Expected attributed entries, got %v", entry["user_email"])
		}
	}

	// Unknown filter material is a 400
	req = httptest.NewRequest("GET", "/api/stock/log?material=WOOD", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestThresholdRoutes tests reading and writing the local thresholds
func TestThresholdRoutes(t *testing.T) {
	db := setupTestDB(t)
	app, settings := setupStockApp(t, db)

	res := postJSON(t, app, "/api/settings/thresholds", `{"PLA": 35, "ABS": "5"}`)
	if res["__status"] != float64(200) {
		t.Fatalf("Expected status 200, got %v: %v", res["__status"], res)
	}

	if settings.Threshold(models.MaterialPLA) != 35 {
		t.Errorf("Expected PLA threshold 35, got %d", settings.Threshold(models.MaterialPLA))
	}
	if settings.Threshold(models.MaterialABS) != 5 {
		t.Errorf("Expected ABS threshold 5, got %d", settings.Threshold(models.MaterialABS))
	}

	res = postJSON(t, app, "/api/settings/thresholds", `{"WOOD": 10}`)
	if res["__status"] != float64(400) {
		t.Errorf("Expected status 400 for unknown material, got %v", res["__status"])
	}

	req := httptest.NewRequest("GET", "/api/settings/thresholds", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	thresholds := result["thresholds"].(map[string]interface{})
	if thresholds["PLA"].(float64) != 35 {
		t.Errorf("Expected PLA threshold 35, got %v", thresholds["PLA"])
	}
	if thresholds["PP"].(float64) != float64(services.DefaultLowStockThreshold) {
		t.Errorf("Expected PP at default, got %v", thresholds["PP"])
	}
}

// scriptedProvider drives the auth handler tests
type scriptedProvider struct {
	verifyErr  error
	sessionErr error
}

func (p *scriptedProvider) SendOTP(ctx context.Context, email string) error {
	return nil
}

func (p *scriptedProvider) VerifyOTP(ctx context.Context, email, code string, flow services.VerifyFlow) (*services.ProviderSession, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return &services.ProviderSession{AccessToken: "token-abc", UserEmail: email}, nil
}

func (p *scriptedProvider) GetSession(ctx context.Context, cookie string) (*services.ProviderSession, error) {
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	return &services.ProviderSession{AccessToken: cookie, UserEmail: "worker@fited.co"}, nil
}

func (p *scriptedProvider) SignOut(ctx context.Context, cookie string) error {
	return nil
}

func setupAuthApp(provider services.IdentityProvider) *fiber.App {
	sessions := services.NewSessionManager(provider, "fited.co", 10*time.Minute)
	handler := &handlers.AuthHandler{Sessions: sessions}

	app := fiber.New()
	app.Post("/api/auth/code", handler.SendCode)
	app.Post("/api/auth/verify", handler.VerifyCode)
	app.Get("/api/auth/session", handler.GetSession)
	app.Post("/api/auth/signout", handler.SignOut)
	return app
}

// TestAuthFlow tests the full code-verify-session-signout round trip
func TestAuthFlow(t *testing.T) {
	app := setupAuthApp(&scriptedProvider{})

	res := postJSON(t, app, "/api/auth/code", `{"email": "worker@fited.co"}`)
	if res["__status"] != float64(202) {
		t.Fatalf("Expected status 202, got %v: %v", res["__status"], res)
	}
	if res["state"] != "code_sent" {
		t.Errorf("Expected state code_sent, got %v", res["state"])
	}

	req := httptest.NewRequest("POST", "/api/auth/verify",
		strings.NewReader(`{"email": "worker@fited.co", "code": "123456"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	// The session cookie is set for the auth middleware
	cookieSet := false
	for _, c := range resp.Cookies() {
		if c.Name == "cookie_session" && c.Value == "token-abc" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("Expected cookie_session to be set")
	}

	var verifyBody map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&verifyBody); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if verifyBody["state"] != "signed_in" {
		t.Errorf("Expected state signed_in, got %v", verifyBody["state"])
	}
	if verifyBody["email"] != "worker@fited.co" {
		t.Errorf("Expected worker@fited.co, got %v", verifyBody["email"])
	}

	res = postJSON(t, app, "/api/auth/signout", ``)
	if res["state"] != "signed_out" {
		t.Errorf("Expected state signed_out, got %v", res["state"])
	}
}

// TestAuthValidation tests rejected addresses and passcodes
func TestAuthValidation(t *testing.T) {
	app := setupAuthApp(&scriptedProvider{})

	res := postJSON(t, app, "/api/auth/code", `{"email": "not-an-email"}`)
	if res["__status"] != float64(400) {
		t.Errorf("Expected status 400 for a malformed address, got %v", res["__status"])
	}

	res = postJSON(t, app, "/api/auth/code", `{"email": "worker@gmail.com"}`)
	if res["__status"] != float64(400) {
		t.Errorf("Expected status 400 for a foreign domain, got %v", res["__status"])
	}

	// Passcode rejected under both flow hints surfaces a 401
	rejectingApp := setupAuthApp(&scriptedProvider{verifyErr: errors.New("rejected")})
	res = postJSON(t, rejectingApp, "/api/auth/code", `{"email": "worker@fited.co"}`)
	if res["__status"] != float64(202) {
		t.Fatalf("Expected status 202, got %v", res["__status"])
	}
	res = postJSON(t, rejectingApp, "/api/auth/verify", `{"email": "worker@fited.co", "code": "123456"}`)
	if res["__status"] != float64(401) {
		t.Errorf("Expected status 401 for a rejected passcode, got %v", res["__status"])
	}
}

// TestGetSessionStates tests session restoration outcomes
func TestGetSessionStates(t *testing.T) {
	t.Run("NoCookie", func(t *testing.T) {
		app := setupAuthApp(&scriptedProvider{})
		req := httptest.NewRequest("GET", "/api/auth/session", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		var result map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result["state"] != "signed_out" {
			t.Errorf("Expected signed_out, got %v", result["state"])
		}
	})

	t.Run("ValidCookie", func(t *testing.T) {
		app := setupAuthApp(&scriptedProvider{})
		req := httptest.NewRequest("GET", "/api/auth/session", nil)
		req.Header.Set("Cookie", "cookie_session=token-abc")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		var result map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result["state"] != "signed_in" {
			t.Errorf("Expected signed_in, got %v", result["state"])
		}
		if result["email"] != "worker@fited.co" {
			t.Errorf("Expected worker@fited.co, got %v", result["email"])
		}
	})

	t.Run("InvalidCookie", func(t *testing.T) {
		app := setupAuthApp(&scriptedProvider{sessionErr: errors.New("expired")})
		req := httptest.NewRequest("GET", "/api/auth/session", nil)
		req.Header.Set("Cookie", "cookie_session=stale")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
		var result map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result["state"] != "signed_out" {
			t.Errorf("Expected signed_out, got %v", result["state"])
		}
	})
}

// TestAuthMiddleware tests the inventory route guard
func TestAuthMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false})
		},
	})
	app.Use(middleware.Auth(&scriptedProvider{}))
	app.Get("/guarded", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"email": c.Locals("userEmail")})
	})

	// No cookie, rejected
	req := httptest.NewRequest("GET", "/guarded", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("Expected status 403 without a cookie, got %d", resp.StatusCode)
	}

	// Valid cookie, attributed
	req = httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Cookie", "cookie_session=token-abc")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["email"] != "worker@fited.co" {
		t.Errorf("Expected attributed email, got %v", result["email"])
	}

	// Invalid session, rejected
	invalidApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false})
		},
	})
	invalidApp.Use(middleware.Auth(&scriptedProvider{sessionErr: errors.New("expired")}))
	invalidApp.Get("/guarded", func(c *fiber.Ctx) error {
		return c.SendStatus(200)
	})
	req = httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Cookie", "cookie_session=stale")
	resp, err = invalidApp.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("Expected status 403 for an invalid session, got %d", resp.StatusCode)
	}
}
