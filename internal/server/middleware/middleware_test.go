package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret")

func testKeyfunc(*jwt.Token) (any, error) {
	return testSecret, nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func serve(app *App, authHeader string, handler echo.HandlerFunc, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(AppContextMiddleware(app))
	e.GET("/", handler, append([]echo.MiddlewareFunc{AuthMiddleware}, mws...)...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	app := &App{
		Key:            testKeyfunc,
		MasterAPIKey:   "master",
		MasterUserID:   1,
		MasterUserRole: "admin",
	}

	var seen *AppUser
	handler := func(c echo.Context) error {
		seen = c.(*AppContext).User
		return c.NoContent(http.StatusOK)
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser int32
		wantRole string
	}{
		{"Missing", "", http.StatusUnauthorized, 0, ""},
		{"NotBearer", "Basic abc", http.StatusUnauthorized, 0, ""},
		{"Master", "Bearer master", http.StatusOK, 1, "admin"},
		{"Garbage", "Bearer not-a-token", http.StatusUnauthorized, 0, ""},
		{"JWTStringID", "Bearer " + signToken(t, jwt.MapClaims{"id": "42", "role": "user"}), http.StatusOK, 42, "user"},
		{"JWTNumericID", "Bearer " + signToken(t, jwt.MapClaims{"id": 7}), http.StatusOK, 7, "user"},
		{"JWTWithoutID", "Bearer " + signToken(t, jwt.MapClaims{"role": "user"}), http.StatusUnauthorized, 0, ""},
		{"JWTNumericIDOutOfRange", "Bearer " + signToken(t, jwt.MapClaims{"id": 4294967297}), http.StatusUnauthorized, 0, ""},
		{"JWTNegativeIDOutOfRange", "Bearer " + signToken(t, jwt.MapClaims{"id": -2147483649}), http.StatusUnauthorized, 0, ""},
		{"JWTFractionalID", "Bearer " + signToken(t, jwt.MapClaims{"id": 1.5}), http.StatusUnauthorized, 0, ""},
		{"JWTStringIDOutOfRange", "Bearer " + signToken(t, jwt.MapClaims{"id": "4294967297"}), http.StatusUnauthorized, 0, ""},
		{"JWTMaxInt32ID", "Bearer " + signToken(t, jwt.MapClaims{"id": 2147483647}), http.StatusOK, 2147483647, "user"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			rec := serve(app, tc.header, handler)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			if seen == nil || seen.UserID != tc.wantUser || seen.Role != tc.wantRole {
				t.Fatalf("unexpected user %+v", seen)
			}
		})
	}
}

func TestAdminGetsAllPermissions(t *testing.T) {
	app := &App{Key: testKeyfunc}
	var seen *AppUser
	rec := serve(app, "Bearer "+signToken(t, jwt.MapClaims{"id": 3, "role": "admin"}), func(c echo.Context) error {
		seen = c.(*AppContext).User
		return c.NoContent(http.StatusOK)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !HasPermission(seen, "flow.dispatch") || !HasPermission(seen, "flow.view:all") {
		t.Fatalf("admin without explicit permissions must get all of them: %v", seen.Permissions)
	}
}

func TestRequirePermission(t *testing.T) {
	app := &App{Key: testKeyfunc}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	token := signToken(t, jwt.MapClaims{"id": 5, "permissions": []any{"flow.create"}})
	if rec := serve(app, "Bearer "+token, ok, RequirePermission("flow.create")); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec := serve(app, "Bearer "+token, ok, RequirePermission("flow.delete")); rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if rec := serve(app, "Bearer "+token, ok, RequireAnyPermission("flow.delete", "flow.create")); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec := serve(app, "Bearer "+token, ok, RequireAnyPermission("flow.delete", "flow.dispatch")); rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCanAccessFlow(t *testing.T) {
	tests := []struct {
		name string
		user *AppUser
		want bool
	}{
		{"Nil", nil, false},
		{"Owner", &AppUser{UserID: 1}, true},
		{"Stranger", &AppUser{UserID: 2}, false},
		{"Admin", &AppUser{UserID: 2, Role: "admin"}, true},
		{"ViewAll", &AppUser{UserID: 2, Permissions: []string{"flow.view:all"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccessFlow(tc.user, 1); got != tc.want {
				t.Fatalf("CanAccessFlow() = %v, want %v", got, tc.want)
			}
		})
	}
}
