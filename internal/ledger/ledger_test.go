package ledger_test

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ml_system/internal/domain"
	"ml_system/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite allows one writer; a single connection avoids lock errors in
	// the concurrency tests without changing the semantics under test.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, balance int64) *domain.User {
	t.Helper()
	user := &domain.User{Username: "alice", Password: "x", TokenBalance: balance}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestDebitAndCreditSequence(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.New(db)
	user := newTestUser(t, db, 0)

	require.NoError(t, svc.Credit(user.ID, 10))
	require.NoError(t, svc.Credit(user.ID, 5))
	require.NoError(t, svc.Debit(user.ID, 7))

	balance, err := svc.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), balance)
}

func TestDebitInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.New(db)
	user := newTestUser(t, db, 3)

	err := svc.Debit(user.ID, 5)
	assert.ErrorIs(t, err, ledger.ErrInsufficientTokens)

	// Balance must be untouched by the rejected debit.
	balance, err := svc.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

func TestCreditAmountBounds(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.New(db)
	user := newTestUser(t, db, 0)

	assert.ErrorIs(t, svc.Credit(user.ID, 0), ledger.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Credit(user.ID, -5), ledger.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Credit(user.ID, 101), ledger.ErrInvalidAmount)
	assert.NoError(t, svc.Credit(user.ID, 1))
	assert.NoError(t, svc.Credit(user.ID, 100))

	balance, err := svc.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(101), balance)
}

func TestUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.New(db)

	assert.ErrorIs(t, svc.Debit(999, 1), ledger.ErrUserNotFound)
	assert.ErrorIs(t, svc.Credit(999, 10), ledger.ErrUserNotFound)
	_, err := svc.Balance(999)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
}

// With balance B and cost C, at most floor(B/C) of N concurrent debits may
// succeed, and the final balance equals B minus the successful total.
func TestConcurrentDebits(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.New(db)
	user := newTestUser(t, db, 10)

	const attempts = 30
	var succeeded atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Debit(user.ID, 3); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), succeeded.Load()) // floor(10/3)
	balance, err := svc.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}
