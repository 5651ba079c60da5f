// Package metrics tracks backing-store connection pool usage.
package metrics

import (
	"database/sql"
	"sync"
	"time"
)

// DBPoolStats holds database connection pool statistics.
type DBPoolStats struct {
	OpenConnections int `json:"open_connections"`
	InUse           int `json:"in_use"`
	Idle            int `json:"idle"`

	MaxOpenConnections int `json:"max_open_connections"`

	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

// GetDBPoolStats retrieves pool statistics from a sql.DB instance.
func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{}
	}

	stats := db.Stats()
	return DBPoolStats{
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		MaxOpenConnections: stats.MaxOpenConnections,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}

// PoolHealthStatus indicates the health of a connection pool.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolHealth represents the health assessment of a pool.
type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	Message     string           `json:"message,omitempty"`
}

// AssessDBPoolHealth evaluates the health of a database pool.
func AssessDBPoolHealth(stats DBPoolStats) PoolHealth {
	if stats.MaxOpenConnections == 0 {
		return PoolHealth{Status: PoolHealthy, Message: "unlimited connections"}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)

	var status PoolHealthStatus
	var message string
	switch {
	case utilization >= 0.95:
		status = PoolUnhealthy
		message = "pool nearly exhausted"
	case utilization >= 0.80:
		status = PoolDegraded
		message = "high pool utilization"
	default:
		status = PoolHealthy
		message = "pool operating normally"
	}

	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		if status == PoolHealthy {
			status = PoolDegraded
		}
		message = "elevated connection wait times"
	}

	return PoolHealth{
		Status:      status,
		Utilization: utilization,
		Message:     message,
	}
}

// PoolMonitor tracks multiple connection pools.
type PoolMonitor struct {
	mu    sync.RWMutex
	pools map[string]*sql.DB
}

func NewPoolMonitor() *PoolMonitor {
	return &PoolMonitor{pools: make(map[string]*sql.DB)}
}

// Register adds a database pool to be monitored.
func (m *PoolMonitor) Register(name string, db *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[name] = db
}

// AllStats returns statistics for all registered pools.
func (m *PoolMonitor) AllStats() map[string]DBPoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]DBPoolStats, len(m.pools))
	for name, db := range m.pools {
		result[name] = GetDBPoolStats(db)
	}
	return result
}

// AllHealth returns health assessments for all registered pools.
func (m *PoolMonitor) AllHealth() map[string]PoolHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]PoolHealth, len(m.pools))
	for name, db := range m.pools {
		result[name] = AssessDBPoolHealth(GetDBPoolStats(db))
	}
	return result
}

var (
	globalPoolMonitor     *PoolMonitor
	globalPoolMonitorOnce sync.Once
)

// GlobalPoolMonitor returns the global pool monitor.
func GlobalPoolMonitor() *PoolMonitor {
	globalPoolMonitorOnce.Do(func() {
		globalPoolMonitor = NewPoolMonitor()
	})
	return globalPoolMonitor
}

// RegisterPool registers a pool with the global monitor.
func RegisterPool(name string, db *sql.DB) {
	GlobalPoolMonitor().Register(name, db)
}

// GetAllPoolStats gets all stats from the global pool monitor.
func GetAllPoolStats() map[string]DBPoolStats {
	return GlobalPoolMonitor().AllStats()
}

// GetAllPoolHealth gets health for all pools from the global monitor.
func GetAllPoolHealth() map[string]PoolHealth {
	return GlobalPoolMonitor().AllHealth()
}
