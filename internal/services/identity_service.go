package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// IdentityGate answers whether an account owner may transact. The ledger
// engine consults it during creation-time validation; approval re-checks
// against the store directly, under the row lock.
type IdentityGate interface {
	IsCustomerActive(ctx context.Context, customerID int64) (bool, error)
}

// IdentityService backs the gate with the customers table, fronted by a
// short-lived Redis cache. Runs fine with a nil Redis client.
type IdentityService struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewIdentityService(db *sql.DB, redisClient *redis.Client) *IdentityService {
	return &IdentityService{
		db:       db,
		redis:    redisClient,
		cacheTTL: 30 * time.Second,
	}
}

func customerActiveKey(customerID int64) string {
	return fmt.Sprintf("customer:active:%d", customerID)
}

// IsCustomerActive reports whether the customer exists, is not deleted, and
// is active. A missing customer counts as inactive rather than an error.
func (is *IdentityService) IsCustomerActive(ctx context.Context, customerID int64) (bool, error) {
	if is.redis != nil {
		val, err := is.redis.Get(ctx, customerActiveKey(customerID)).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			log.Printf("[IDENTITY] Cache read failed for customer %d: %v", customerID, err)
		}
	}

	var active bool
	err := is.db.QueryRowContext(ctx, `
		SELECT is_active FROM customers
		WHERE customer_id = $1 AND is_deleted = FALSE`, customerID).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			active = false
		} else {
			return false, err
		}
	}

	if is.redis != nil {
		cached := "0"
		if active {
			cached = "1"
		}
		if err := is.redis.Set(ctx, customerActiveKey(customerID), cached, is.cacheTTL).Err(); err != nil {
			log.Printf("[IDENTITY] Cache write failed for customer %d: %v", customerID, err)
		}
	}

	return active, nil
}

// InvalidateCustomer drops the cached flag after a customer mutation so the
// next check reads the store.
func (is *IdentityService) InvalidateCustomer(ctx context.Context, customerID int64) {
	if is.redis == nil {
		return
	}
	if err := is.redis.Del(ctx, customerActiveKey(customerID)).Err(); err != nil {
		log.Printf("[IDENTITY] Cache invalidation failed for customer %d: %v", customerID, err)
	}
}
