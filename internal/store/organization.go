// Package store loads workflows and organizations from postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"workflow-content/internal/common/logger"
	"workflow-content/internal/common/metrics"
	"workflow-content/internal/models"
)

const (
	organizationCachePrefix = "org:"
	DefaultOrganizationTTL  = 5 * time.Minute
)

var (
	ErrOrganizationNotFound = errors.New("ORGANIZATION_NOT_FOUND")
	ErrQueryFailed          = errors.New("QUERY_EXECUTION_FAILED")
)

// OrganizationStore reads organizations through a redis cache. A cache
// failure never fails the lookup; the row is read from postgres instead.
type OrganizationStore struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewOrganizationStore(db *sql.DB, redis *redis.Client, ttl time.Duration, log logger.Logger) *OrganizationStore {
	if ttl <= 0 {
		ttl = DefaultOrganizationTTL
	}
	return &OrganizationStore{
		db:     db,
		redis:  redis,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"store": "organization"}),
	}
}

func (s *OrganizationStore) FindByID(ctx context.Context, organizationID string) (*models.Organization, error) {
	cacheKey := organizationCachePrefix + organizationID

	if s.redis != nil {
		val, err := s.redis.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			var org models.Organization
			if jsonErr := json.Unmarshal([]byte(val), &org); jsonErr == nil {
				metrics.TierLookups.WithLabelValues("cache").Inc()
				return &org, nil
			}
			s.logger.Warn("discarding unreadable cache entry", map[string]interface{}{
				"key": cacheKey,
			})
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("organization cache read failed", map[string]interface{}{
				"key":   cacheKey,
				"error": err.Error(),
			})
		}
	}

	var org models.Organization
	query := `SELECT id, name, api_service_level FROM organizations WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, organizationID).Scan(&org.ID, &org.Name, &org.APIServiceLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrganizationNotFound, organizationID)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	metrics.TierLookups.WithLabelValues("database").Inc()

	if org.APIServiceLevel == "" {
		org.APIServiceLevel = models.ServiceLevelFree
	}

	if s.redis != nil {
		data, _ := json.Marshal(org)
		if err := s.redis.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil {
			s.logger.Warn("organization cache write failed", map[string]interface{}{
				"key":   cacheKey,
				"error": err.Error(),
			})
		}
	}

	return &org, nil
}

// Invalidate drops the cached entry after a plan change.
func (s *OrganizationStore) Invalidate(ctx context.Context, organizationID string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, organizationCachePrefix+organizationID).Err()
}
