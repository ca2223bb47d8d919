package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
)

// TenantHeader lets trusted callers pick the tenant when the token carries none.
const TenantHeader = "X-Tenant-ID"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// TenantMiddleware resolves the tenant, acquires a connection whose
// search_path points at the tenant's schema, and stores both in the request
// context for the repositories. The search_path is reset before the
// connection goes back to the pool.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)
			schema, err := SchemaName(tenantID)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer func() {
				if _, err := conn.Exec(context.Background(), "RESET search_path"); err != nil {
					logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("reset search_path failed")
					conn.Conn().Close(context.Background())
				}
				conn.Release()
			}()

			if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
				logger.Error().Err(err).Str("tenant_id", tenantID).Msg("tenant resolution failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			c.SetRequest(c.Request().WithContext(WithTenant(ctx, tenantID, conn)))
			c.Set("tenant_id", tenantID)
			return next(c)
		}
	}
}

// WithTenant returns ctx carrying the tenant id and its scoped connection.
func WithTenant(ctx context.Context, tenantID string, conn *pgxpool.Conn) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	if conn != nil {
		ctx = context.WithValue(ctx, DBConnKey, conn)
	}
	return ctx
}

// extractTenantID prefers the token claim, then the header, then the default.
func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}
	if tid := c.Request().Header.Get(TenantHeader); tid != "" {
		return tid
	}
	return defaultTenant
}

// ConnFromContext returns the tenant-scoped connection, or nil outside a
// tenant request.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}
