package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

const selectCustomerActive = `SELECT is_active FROM customers WHERE customer_id = \$1 AND is_deleted = FALSE`

func TestIdentityService_IsCustomerActive(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips the store", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		client, redisMock := redismock.NewClientMock()

		redisMock.ExpectGet("customer:active:7").SetVal("1")

		is := NewIdentityService(db, client)
		active, err := is.IsCustomerActive(ctx, 7)
		assert.NoError(t, err)
		assert.True(t, active)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cached inactive flag", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		client, redisMock := redismock.NewClientMock()

		redisMock.ExpectGet("customer:active:7").SetVal("0")

		is := NewIdentityService(db, client)
		active, err := is.IsCustomerActive(ctx, 7)
		assert.NoError(t, err)
		assert.False(t, active)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("cache miss reads the store and backfills", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		client, redisMock := redismock.NewClientMock()

		redisMock.ExpectGet("customer:active:7").RedisNil()
		dbMock.ExpectQuery(selectCustomerActive).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
		redisMock.ExpectSet("customer:active:7", "1", 30*time.Second).SetVal("OK")

		is := NewIdentityService(db, client)
		active, err := is.IsCustomerActive(ctx, 7)
		assert.NoError(t, err)
		assert.True(t, active)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("missing customer counts as inactive", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		client, redisMock := redismock.NewClientMock()

		redisMock.ExpectGet("customer:active:99").RedisNil()
		dbMock.ExpectQuery(selectCustomerActive).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}))
		redisMock.ExpectSet("customer:active:99", "0", 30*time.Second).SetVal("OK")

		is := NewIdentityService(db, client)
		active, err := is.IsCustomerActive(ctx, 99)
		assert.NoError(t, err)
		assert.False(t, active)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("nil redis falls back to the store", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		dbMock.ExpectQuery(selectCustomerActive).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))

		is := NewIdentityService(db, nil)
		active, err := is.IsCustomerActive(ctx, 7)
		assert.NoError(t, err)
		assert.True(t, active)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestIdentityService_InvalidateCustomer(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	client, redisMock := redismock.NewClientMock()

	redisMock.ExpectDel("customer:active:7").SetVal(1)

	is := NewIdentityService(db, client)
	is.InvalidateCustomer(context.Background(), 7)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
