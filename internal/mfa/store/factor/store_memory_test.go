package factor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

type InMemoryFactorStoreSuite struct {
	suite.Suite
	store     *InMemoryFactorStore
	ctx       context.Context
	principal id.PrincipalID
	now       time.Time
}

func TestInMemoryFactorStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryFactorStoreSuite))
}

func (s *InMemoryFactorStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.principal = id.NewPrincipalID()
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryFactorStoreSuite) newFactor() *models.Factor {
	return &models.Factor{
		ID:          id.NewFactorID(),
		PrincipalID: s.principal,
		Type:        models.FactorTypeTOTP,
		Secret:      "JBSWY3DPEHPK3PXP",
		Status:      models.FactorStatusUnverified,
		CreatedAt:   s.now,
	}
}

func (s *InMemoryFactorStoreSuite) TestEnrollReplacesPending() {
	first := s.newFactor()
	s.Require().NoError(s.store.Enroll(s.ctx, first))
	second := s.newFactor()
	s.Require().NoError(s.store.Enroll(s.ctx, second))

	_, err := s.store.FindByID(s.ctx, first.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	factors, err := s.store.ListByPrincipal(s.ctx, s.principal)
	s.Require().NoError(err)
	s.Require().Len(factors, 1)
	s.Equal(second.ID, factors[0].ID)
}

func (s *InMemoryFactorStoreSuite) TestMarkVerified() {
	f := s.newFactor()
	s.Require().NoError(s.store.Enroll(s.ctx, f))

	has, err := s.store.HasVerified(s.ctx, s.principal)
	s.Require().NoError(err)
	s.False(has)

	s.Require().NoError(s.store.MarkVerified(s.ctx, f.ID, 100, s.now))

	got, err := s.store.FindByID(s.ctx, f.ID)
	s.Require().NoError(err)
	s.True(got.IsVerified())
	s.Equal(uint64(100), got.LastUsedStep)
	s.Equal(s.now, *got.VerifiedAt)

	s.Run("same or older step is a replay", func() {
		s.ErrorIs(s.store.MarkVerified(s.ctx, f.ID, 100, s.now), sentinel.ErrAlreadyUsed)
		s.ErrorIs(s.store.MarkVerified(s.ctx, f.ID, 99, s.now), sentinel.ErrAlreadyUsed)
	})

	s.Run("later step keeps the first verification time", func() {
		s.Require().NoError(s.store.MarkVerified(s.ctx, f.ID, 101, s.now.Add(time.Hour)))
		got, err := s.store.FindByID(s.ctx, f.ID)
		s.Require().NoError(err)
		s.Equal(s.now, *got.VerifiedAt)
	})

	s.Run("verified factor blocks enrollment", func() {
		s.ErrorIs(s.store.Enroll(s.ctx, s.newFactor()), sentinel.ErrConflict)
		has, err := s.store.HasVerified(s.ctx, s.principal)
		s.Require().NoError(err)
		s.True(has)
	})

	s.Run("unknown factor", func() {
		s.ErrorIs(s.store.MarkVerified(s.ctx, id.NewFactorID(), 1, s.now), sentinel.ErrNotFound)
	})
}

func (s *InMemoryFactorStoreSuite) TestReturnsCopies() {
	f := s.newFactor()
	s.Require().NoError(s.store.Enroll(s.ctx, f))

	got, err := s.store.FindByID(s.ctx, f.ID)
	s.Require().NoError(err)
	got.Status = models.FactorStatusVerified

	again, err := s.store.FindByID(s.ctx, f.ID)
	s.Require().NoError(err)
	s.False(again.IsVerified())
}
