package sweets

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetshop/sweetshop-backend/pkg/db"
	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
	"github.com/sweetshop/sweetshop-backend/pkg/metrics"
)

// stepClock advances one second per reading so createdAt ordering is stable.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type testLedger struct {
	svc      Service
	conn     *gorm.DB
	registry *prometheus.Registry
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()

	dsn := fmt.Sprintf("file:sweets_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&models.Sweet{}))

	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		DB:      db.FromGorm(conn),
		Logger:  logger.Nop(),
		Metrics: metrics.NewInventoryMetrics(reg),
		Clock:   newStepClock().Now,
	})
	require.NoError(t, err)

	return &testLedger{svc: svc, conn: conn, registry: reg}
}

func (l *testLedger) storedQuantity(t *testing.T, id int64) int {
	t.Helper()
	var sweet models.Sweet
	require.NoError(t, l.conn.First(&sweet, "id = ?", id).Error)
	return sweet.Quantity
}

func newCreateInput(name string, category enums.SweetCategory, price string, qty int) CreateInput {
	return CreateInput{
		Name:     name,
		Category: category,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
}

func strPtr(s string) *string {
	return &s
}
