package requestlimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"digitalbank/internal/ratelimit/metrics"
	"digitalbank/internal/ratelimit/models"
	"digitalbank/internal/ratelimit/store/bucket"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration, time.Time) (*models.RateLimitResult, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Reset(context.Context, string) error { return nil }

type ServiceSuite struct {
	suite.Suite
	metrics *metrics.RequestMetrics
	svc     *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.metrics = metrics.NewRequestMetrics(prometheus.NewRegistry())
	svc, err := New(bucket.NewInMemoryBucketStore(),
		WithMetrics(s.metrics),
		WithLimits(models.RequestLimits{
			models.ClassAuth: {Requests: 2, Window: time.Minute},
			models.ClassRead: {Requests: 0, Window: time.Minute},
		}),
	)
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) TestCheckIP() {
	s.Run("denies once the class budget is spent", func() {
		for range 2 {
			res, err := s.svc.CheckIP(s.ctx, "203.0.113.7", models.ClassAuth)
			s.Require().NoError(err)
			s.True(res.Allowed)
		}
		res, err := s.svc.CheckIP(s.ctx, "203.0.113.7", models.ClassAuth)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RequestsRejected.WithLabelValues("auth")))
	})

	s.Run("other clients keep their own budget", func() {
		res, err := s.svc.CheckIP(s.ctx, "198.51.100.2", models.ClassAuth)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("non-positive overrides keep the default", func() {
		res, err := s.svc.CheckIP(s.ctx, "203.0.113.7", models.ClassRead)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(300, res.Limit)
	})

	s.Run("unknown class is denied", func() {
		res, err := s.svc.CheckIP(s.ctx, "203.0.113.7", models.EndpointClass("export"))
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(missingConfigRetryAfter, res.RetryAfter)
	})
}

func (s *ServiceSuite) TestStoreFailure() {
	svc, err := New(failingStore{})
	s.Require().NoError(err)

	_, err = svc.CheckIP(s.ctx, "203.0.113.7", models.ClassWrite)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}
