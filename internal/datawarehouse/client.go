// Package datawarehouse reads booked revenue and margin actuals from the
// MS SQL Server warehouse. Achievement reports and the snapshot job use it when
// configured; otherwise actuals come from won opportunities.
package datawarehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/straye-as/pipeline-api/internal/config"
	"go.uber.org/zap"
)

const (
	connectAttempts = 3
	firstBackoff    = time.Second
	maxBackoff      = 8 * time.Second
	pingTimeout     = 5 * time.Second
	defaultPort     = 1433
	logQueryLimit   = 160
)

// Client is a read-only handle on the actuals view
type Client struct {
	db           *sql.DB
	table        string
	queryTimeout time.Duration
	logger       *zap.Logger
}

// HealthStatus is reported under dataWarehouse by the readiness endpoint
type HealthStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
	Open      int    `json:"open_connections,omitempty"`
	InUse     int    `json:"in_use,omitempty"`
	Idle      int    `json:"idle,omitempty"`
	WaitCount int64  `json:"wait_count,omitempty"`
}

// ActualsRow is one owner total as returned by the driver
type ActualsRow struct {
	Owner interface{}
	Total interface{}
}

// NewClient connects to the warehouse. A disabled or incomplete configuration
// yields a nil client and no error so callers fall back to opportunity actuals.
func NewClient(cfg *config.DataWarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Warehouse actuals disabled")
		return nil, nil
	}
	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Warehouse actuals enabled without credentials, ignoring",
			zap.Bool("has_url", cfg.URL != ""),
			zap.Bool("has_user", cfg.User != ""),
			zap.Bool("has_password", cfg.Password != ""),
		)
		return nil, nil
	}

	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := pingWithBackoff(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Warehouse actuals source ready",
		zap.String("table", cfg.ActualsTable),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &Client{
		db:           db,
		table:        cfg.ActualsTable,
		queryTimeout: cfg.QueryTimeoutDuration(),
		logger:       logger,
	}, nil
}

// pingWithBackoff doubles the wait between attempts up to maxBackoff
func pingWithBackoff(db *sql.DB, logger *zap.Logger) error {
	wait := firstBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}

		logger.Warn("Warehouse ping failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		if attempt == connectAttempts {
			break
		}
		time.Sleep(wait)
		wait = min(2*wait, maxBackoff)
	}
	return fmt.Errorf("warehouse unreachable after %d attempts: %w", connectAttempts, err)
}

// DSN turns a host[:port][/database] address into a sqlserver connection URL
func DSN(cfg *config.DataWarehouseConfig) (string, error) {
	address, database, _ := strings.Cut(cfg.URL, "/")

	host, port := address, strconv.Itoa(defaultPort)
	if h, p, err := net.SplitHostPort(address); err == nil {
		host, port = h, p
	}
	if host == "" {
		return "", fmt.Errorf("warehouse url %q has no host", cfg.URL)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("warehouse url %q has invalid port", cfg.URL)
	}

	params := url.Values{}
	params.Set("encrypt", "true")
	params.Set("TrustServerCertificate", "false")
	params.Set("connection timeout", "30")
	params.Set("ApplicationIntent", "ReadOnly")
	if database != "" {
		params.Set("database", database)
	}

	return (&url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(host, port),
		RawQuery: params.Encode(),
	}).String(), nil
}

// IsEnabled reports whether the client holds a live pool
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// Close releases the pool; safe on a nil client
func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close warehouse pool: %w", err)
	}
	c.logger.Info("Warehouse pool closed")
	return nil
}

// HealthCheck pings the warehouse and reports pool usage
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.IsEnabled() {
		return &HealthStatus{Status: "disabled"}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()

	status := &HealthStatus{
		Status:    "healthy",
		LatencyMs: time.Since(start).Milliseconds(),
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
	}
	if err != nil {
		c.logger.Warn("Warehouse health check failed", zap.Error(err))
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// queryTotals runs an owner/total aggregate and returns its raw rows
func (c *Client) queryTotals(ctx context.Context, query string, args ...interface{}) ([]ActualsRow, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("data warehouse client not initialized")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("Actuals query failed",
			zap.String("query", shorten(query)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("actuals query failed: %w", err)
	}
	defer rows.Close()

	var result []ActualsRow
	for rows.Next() {
		var row ActualsRow
		if err := rows.Scan(&row.Owner, &row.Total); err != nil {
			return nil, fmt.Errorf("failed to scan actuals row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read actuals rows: %w", err)
	}

	c.logger.Debug("Actuals query finished",
		zap.Int("rows", len(result)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func shorten(query string) string {
	if len(query) <= logQueryLimit {
		return query
	}
	return query[:logQueryLimit] + "..."
}
