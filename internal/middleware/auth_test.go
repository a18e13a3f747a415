package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func serve(router *gin.Engine, method, path, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func newAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "auth.db")
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, "test")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "x", FirstName: "Test", LastName: "User", Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func bearer(t *testing.T, id uuid.UUID, email, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(id, email, role, 24)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func TestAuthRequired_Rejects(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired(newAuthDB(t)))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	testCases := []string{
		"",
		"InvalidToken",
		"Basic token123",
		"Bearer",
		"Bearer invalid.jwt.token",
	}

	for _, authHeader := range testCases {
		w := serve(router, "GET", "/protected", authHeader)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	db := newAuthDB(t)
	user := createUser(t, db, "client@example.com", models.RoleClient)

	router := gin.New()
	router.Use(AuthRequired(db))
	var gotID uuid.UUID
	var gotEmail, gotRole string
	router.GET("/protected", func(c *gin.Context) {
		gotID = GetUserID(c)
		gotEmail = GetEmail(c)
		gotRole = GetRole(c)
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := serve(router, "GET", "/protected", bearer(t, user.ID, user.Email, models.RoleClient))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if gotID != user.ID || gotEmail != "client@example.com" || gotRole != "client" {
		t.Errorf("unexpected identity %s %s %s", gotID, gotEmail, gotRole)
	}
}

func TestAuthRequired_FollowsStoredUser(t *testing.T) {
	db := newAuthDB(t)
	router := gin.New()
	router.GET("/api/auth/me", AuthRequired(db), func(c *gin.Context) {
		c.JSON(200, gin.H{"role": GetRole(c)})
	})
	router.GET("/api/admin/dashboard", AuthRequired(db), AdminRequired(), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	t.Run("deactivated user", func(t *testing.T) {
		user := createUser(t, db, "gone@example.com", models.RoleClient)
		header := bearer(t, user.ID, user.Email, user.Role)
		if w := serve(router, "GET", "/api/auth/me", header); w.Code != http.StatusOK {
			t.Fatalf("active user: status = %d, expected 200", w.Code)
		}
		db.Model(user).Update("is_active", false)
		if w := serve(router, "GET", "/api/auth/me", header); w.Code != http.StatusUnauthorized {
			t.Errorf("deactivated user: status = %d, expected 401", w.Code)
		}
	})

	t.Run("deleted user", func(t *testing.T) {
		header := bearer(t, uuid.New(), "ghost@example.com", models.RoleAdmin)
		if w := serve(router, "GET", "/api/auth/me", header); w.Code != http.StatusUnauthorized {
			t.Errorf("unknown user: status = %d, expected 401", w.Code)
		}
	})

	t.Run("demoted admin", func(t *testing.T) {
		user := createUser(t, db, "ops@example.com", models.RoleAdmin)
		header := bearer(t, user.ID, user.Email, models.RoleAdmin)
		if w := serve(router, "GET", "/api/admin/dashboard", header); w.Code != http.StatusOK {
			t.Fatalf("admin: status = %d, expected 200", w.Code)
		}
		db.Model(user).Update("role", models.RoleClient)
		if w := serve(router, "GET", "/api/admin/dashboard", header); w.Code != http.StatusForbidden {
			t.Errorf("demoted admin: status = %d, expected 403", w.Code)
		}
	})

	t.Run("promoted client", func(t *testing.T) {
		user := createUser(t, db, "lead@example.com", models.RoleClient)
		header := bearer(t, user.ID, user.Email, models.RoleClient)
		db.Model(user).Update("role", models.RoleAdmin)
		if w := serve(router, "GET", "/api/admin/dashboard", header); w.Code != http.StatusOK {
			t.Errorf("promoted client: status = %d, expected 200", w.Code)
		}
	})
}

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role != "" {
			c.Set(ContextRole, role)
		}
		c.Next()
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		role   string
		status int
	}{
		{"", http.StatusForbidden},
		{"client", http.StatusForbidden},
		{"admin", http.StatusOK},
	}
	for _, tt := range tests {
		router := gin.New()
		router.Use(withRole(tt.role), AdminRequired())
		router.GET("/admin", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		w := serve(router, "GET", "/admin", "")
		if w.Code != tt.status {
			t.Errorf("role %q: expected status %d, got %d", tt.role, tt.status, w.Code)
		}
	}
}

func TestRoleRequired(t *testing.T) {
	tests := []struct {
		role   string
		status int
	}{
		{"", http.StatusForbidden},
		{"guest", http.StatusForbidden},
		{"client", http.StatusOK},
		{"admin", http.StatusOK},
	}
	for _, tt := range tests {
		router := gin.New()
		router.Use(withRole(tt.role), RoleRequired("client", "admin"))
		router.GET("/projects", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		w := serve(router, "GET", "/projects", "")
		if w.Code != tt.status {
			t.Errorf("role %q: expected status %d, got %d", tt.role, tt.status, w.Code)
		}
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != uuid.Nil {
		t.Errorf("expected nil uuid for missing user_id, got %s", id)
	}

	id := uuid.New()
	c.Set(ContextUserID, id)
	if got := GetUserID(c); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request, _ = http.NewRequest("GET", "/", nil)
		c.Request.Header.Set("Authorization", tt.header)
		token, ok := BearerToken(c)
		if token != tt.token || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, token, ok)
		}
	}
}
