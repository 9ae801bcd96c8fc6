// Package testutil holds fixtures shared by the usecase and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/repository/sqldb"
)

// OpenSQLite returns a migrated, private in-memory database.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, sqldb.Migrate(db))
	return db
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reporter counts drift reports.
type Reporter struct {
	WriteFailed atomic.Int32
	Missing     atomic.Int32
	Dropped     atomic.Int32
	Buckets     atomic.Int32
}

var _ domain.DriftReporter = (*Reporter)(nil)

func (r *Reporter) ProjectionWriteFailed(string)            { r.WriteFailed.Add(1) }
func (r *Reporter) ProjectionMissing(string)                { r.Missing.Add(1) }
func (r *Reporter) RepairDropped()                          { r.Dropped.Add(1) }
func (r *Reporter) DecayBucketProcessed(domain.DecayResult) { r.Buckets.Add(1) }

// RepairQueue records the items sent for repair instead of repairing them.
type RepairQueue struct {
	mu    sync.Mutex
	Items []string
}

var _ domain.RepairWorker = (*RepairQueue)(nil)

func (q *RepairQueue) Start(context.Context) {}

func (q *RepairQueue) Send(itemID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Items = append(q.Items, itemID)
}

func (q *RepairQueue) Sent() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.Items...)
}

// Run starts a background worker and stops it when the test ends.
func Run(t *testing.T, w interface{ Start(ctx context.Context) }) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}
