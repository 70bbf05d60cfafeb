package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/repository"
)

const reportCacheKey = "referral:report:csv"

// ReportService renders the CSV export of all referrals. Rendered output
// is cached in Redis under a short TTL; an unreachable cache degrades to
// rendering from the store on every call.
type ReportService struct {
	referrals repository.ReferralRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewReportService builds the service. The cache client may be nil.
func NewReportService(referrals repository.ReferralRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		referrals: referrals,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// RenderCSV produces the report body: a header row followed by one row per
// referral. An empty referral set yields exactly the header row.
func (s *ReportService) RenderCSV(ctx context.Context) ([]byte, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}

	referrals, err := s.referrals.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Referrer ID", "Referred ID", "Successful"}); err != nil {
		return nil, err
	}
	for _, referral := range referrals {
		record := []string{
			referral.ReferrerID,
			referral.ReferredID,
			strconv.FormatBool(referral.Successful),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.toCache(ctx, buf.Bytes())
	return buf.Bytes(), nil
}

func (s *ReportService) fromCache(ctx context.Context) ([]byte, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	cached, err := s.cache.Get(ctx, reportCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("report cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return cached, true
}

func (s *ReportService) toCache(ctx context.Context, body []byte) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, reportCacheKey, body, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("report cache write failed", zap.Error(err))
	}
}
