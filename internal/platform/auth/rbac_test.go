package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runRole(t *testing.T, held []string, required ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(context.Background(), "u1", held))
	c := e.NewContext(req, httptest.NewRecorder())
	return RequireRole(required...)(func(echo.Context) error { return nil })(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	if err := runRole(t, []string{"nurse"}, "physician", "nurse"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	err := runRole(t, []string{"patient"}, "physician", "nurse")
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoRoles(t *testing.T) {
	expectStatus(t, runRole(t, nil, "registrar"), http.StatusForbidden)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	if err := runRole(t, []string{"admin"}, "registrar"); err != nil {
		t.Errorf("admin should pass every role check: %v", err)
	}
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "u1", []string{"nurse"})
	if UserIDFromContext(ctx) != "u1" {
		t.Errorf("expected u1, got %q", UserIDFromContext(ctx))
	}
	if UserIDFromContext(context.Background()) != "" || RolesFromContext(context.Background()) != nil {
		t.Error("expected empty identity from empty context")
	}
}
