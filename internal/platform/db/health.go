package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection usage reported by /health/db.
type PoolStats struct {
	TotalConns    int32 `json:"totalConns"`
	IdleConns     int32 `json:"idleConns"`
	AcquiredConns int32 `json:"acquiredConns"`
	MaxConns      int32 `json:"maxConns"`
}

// DBStatus is the body of GET /health/db.
type DBStatus struct {
	Status      string     `json:"status"`
	Clinic      string     `json:"clinic"`
	Schema      string     `json:"schema"`
	SchemaReady bool       `json:"schemaReady"`
	Error       string     `json:"error,omitempty"`
	Pool        *PoolStats `json:"pool,omitempty"`
}

type healthDB interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaExistsSQL = `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`

// checkClinic pings the database and confirms the clinic's schema has been
// created. The returned code is 200 only when both hold.
func checkClinic(ctx context.Context, d healthDB, clinicID string) (*DBStatus, int) {
	st := &DBStatus{Status: "unhealthy", Clinic: clinicID, Schema: SchemaName(clinicID)}

	if err := d.Ping(ctx); err != nil {
		st.Error = err.Error()
		return st, http.StatusServiceUnavailable
	}
	if err := d.QueryRow(ctx, schemaExistsSQL, st.Schema).Scan(&st.SchemaReady); err != nil {
		st.Error = err.Error()
		return st, http.StatusServiceUnavailable
	}
	if !st.SchemaReady {
		st.Error = "clinic schema not provisioned"
		return st, http.StatusServiceUnavailable
	}
	st.Status = "healthy"
	return st, http.StatusOK
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
	}
}

// HealthHandler serves GET /health/db for the clinic that unscoped requests
// land on. It answers 503 until that clinic's schema exists.
func HealthHandler(pool *pgxpool.Pool, defaultClinic string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		st, code := checkClinic(ctx, pool, defaultClinic)
		st.Pool = poolStats(pool)
		return c.JSON(code, st)
	}
}
