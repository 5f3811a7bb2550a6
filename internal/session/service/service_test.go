package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CredentialStore,RevocationList,FactorChecker,Lockout

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"digitalbank/internal/identity"
	"digitalbank/internal/session/metrics"
	"digitalbank/internal/session/models"
	"digitalbank/internal/session/service/mocks"
	"digitalbank/internal/session/store/revocation"
	"digitalbank/internal/session/token"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	credentials *mocks.MockCredentialStore
	factors     *mocks.MockFactorChecker
	lockout     *mocks.MockLockout
	revocations *revocation.InMemoryRevocationList
	tokens      *token.Service
	service     *Service
	now         time.Time
	jean        *models.Credential
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.credentials = mocks.NewMockCredentialStore(s.ctrl)
	s.factors = mocks.NewMockFactorChecker(s.ctrl)
	s.lockout = mocks.NewMockLockout(s.ctrl)
	s.revocations = revocation.NewInMemory()

	ring, err := token.NewKeyring(token.Key{Version: 1, Secret: []byte("session-test-signing-key-0123456789")})
	s.Require().NoError(err)
	s.tokens = token.NewService(ring, "digitalbank")

	s.service, err = New(s.credentials, s.revocations, s.tokens,
		WithFactorChecker(s.factors),
		WithLockout(s.lockout),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 2, 10, 8, 15, 30, 0, time.UTC)
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.jean = &models.Credential{
		PrincipalID:  id.NewPrincipalID(),
		Email:        "jean.dupont@email.fr",
		PasswordHash: hash,
		Role:         identity.RoleCustomer,
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// login runs a successful Authenticate for jean at s.now.
func (s *ServiceSuite) login() *models.Session {
	s.lockout.EXPECT().Check(gomock.Any(), "login", s.jean.Email).Return(nil)
	s.credentials.EXPECT().FindByEmail(gomock.Any(), s.jean.Email).Return(s.jean, nil)
	s.factors.EXPECT().HasVerifiedFactor(gomock.Any(), s.jean.PrincipalID).Return(false, nil)
	s.credentials.EXPECT().RecordLogin(gomock.Any(), s.jean.PrincipalID, s.now).Return(nil)
	s.lockout.EXPECT().Clear(gomock.Any(), "login", s.jean.Email).Return(nil)

	session, err := s.service.Authenticate(s.ctxAt(s.now), s.jean.Email, "Password123!")
	s.Require().NoError(err)
	return session
}

func TestNew_RequiresCollaborators(t *testing.T) {
	ring, _ := token.NewKeyring(token.Key{Version: 1, Secret: []byte("session-test-signing-key-0123456789")})
	tokens := token.NewService(ring, "digitalbank")

	if _, err := New(nil, revocation.NewInMemory(), tokens); err == nil {
		t.Fatal("expected error without credential store")
	}
	if _, err := New(&noopCredentials{}, nil, tokens); err == nil {
		t.Fatal("expected error without revocation list")
	}
	if _, err := New(&noopCredentials{}, revocation.NewInMemory(), nil); err == nil {
		t.Fatal("expected error without token codec")
	}
}

type noopCredentials struct{}

func (noopCredentials) FindByEmail(context.Context, string) (*models.Credential, error) {
	return nil, nil
}

func (noopCredentials) RecordLogin(context.Context, id.PrincipalID, time.Time) error { return nil }
