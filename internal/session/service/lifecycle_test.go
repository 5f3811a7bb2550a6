package service

import (
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"digitalbank/internal/identity"
	"digitalbank/internal/session/service/mocks"
	"digitalbank/internal/session/token"
	dErrors "digitalbank/pkg/domain-errors"
)

func (s *ServiceSuite) TestVerify_RoundTrip() {
	session := s.login()

	first, err := s.service.Verify(s.ctxAt(s.now.Add(time.Minute)), session.Token)
	s.Require().NoError(err)
	second, err := s.service.Verify(s.ctxAt(s.now.Add(2*time.Minute)), session.Token)
	s.Require().NoError(err)

	s.Equal(first, second, "verify is idempotent")
	s.Equal(session.Claims(), first)
}

func (s *ServiceSuite) TestVerify_ExpiresExactlyAtDeadline() {
	session := s.login()

	_, err := s.service.Verify(s.ctxAt(session.ExpiresAt.Add(-time.Second)), session.Token)
	s.NoError(err)

	_, err = s.service.Verify(s.ctxAt(session.ExpiresAt), session.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))

	_, err = s.service.Verify(s.ctxAt(session.ExpiresAt.Add(time.Hour)), session.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func (s *ServiceSuite) TestVerify_Invalid() {
	_, err := s.service.Verify(s.ctxAt(s.now), "")
	s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))

	_, err = s.service.Verify(s.ctxAt(s.now), "eyJhbGciOiJIUzI1NiJ9.e30.invalid")
	s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))
}

func (s *ServiceSuite) TestInvalidate() {
	session := s.login()
	ctx := s.ctxAt(s.now.Add(time.Hour))

	s.Require().NoError(s.service.Invalidate(ctx, session))
	s.Require().NoError(s.service.Invalidate(ctx, session), "invalidate is idempotent")

	_, err := s.service.Verify(ctx, session.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))

	s.Run("other sessions are unaffected", func() {
		other := s.login()
		_, err := s.service.Verify(ctx, other.Token)
		s.NoError(err)
	})

	s.Run("nil session", func() {
		err := s.service.Invalidate(ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestRevocationListFailures() {
	session := s.login()
	broken := mocks.NewMockRevocationList(s.ctrl)
	svc, err := New(s.credentials, broken, s.tokens)
	s.Require().NoError(err)
	ctx := s.ctxAt(s.now.Add(time.Minute))

	s.Run("verify fails closed", func() {
		broken.EXPECT().IsRevoked(gomock.Any(), session.ID, gomock.Any()).Return(false, errors.New("redis: connection refused"))
		_, err := svc.Verify(ctx, session.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})

	s.Run("invalidate surfaces the failure", func() {
		broken.EXPECT().Revoke(gomock.Any(), session.ID, session.ExpiresAt, gomock.Any()).Return(errors.New("redis: connection refused"))
		err := svc.Invalidate(ctx, session)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})
}

func (s *ServiceSuite) TestElevate() {
	session := s.login()
	ctx := s.ctxAt(s.now.Add(10 * time.Minute))

	elevated, err := s.service.Elevate(ctx, session, identity.MFALevelVerified)
	s.Require().NoError(err)
	s.Equal(session.ID, elevated.ID)
	s.Equal(session.ExpiresAt, elevated.ExpiresAt)
	s.Equal(identity.MFALevelVerified, elevated.Principal.MFALevel)
	s.NotEqual(session.Token, elevated.Token)
	s.Equal(identity.MFALevelNone, session.Principal.MFALevel, "original session is untouched")

	claims, err := s.service.Verify(ctx, elevated.Token)
	s.Require().NoError(err)
	s.Equal(identity.MFALevelVerified, claims.Principal.MFALevel)

	s.Run("same level is a no-op", func() {
		again, err := s.service.Elevate(ctx, elevated, identity.MFALevelVerified)
		s.Require().NoError(err)
		s.Equal(elevated.Token, again.Token)
	})

	s.Run("lowering is rejected", func() {
		_, err := s.service.Elevate(ctx, elevated, identity.MFALevelEnrolled)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown level is rejected", func() {
		_, err := s.service.Elevate(ctx, session, identity.MFALevel("platinum"))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("expired session cannot be elevated", func() {
		_, err := s.service.Elevate(s.ctxAt(session.ExpiresAt), session, identity.MFALevelVerified)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
	})

	s.Run("revoked session cannot be elevated", func() {
		s.Require().NoError(s.service.Invalidate(ctx, session))
		_, err := s.service.Elevate(ctx, session, identity.MFALevelVerified)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid))

		_, err = s.service.Verify(ctx, elevated.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeTokenInvalid), "revocation covers every token of the session")
	})
}

func (s *ServiceSuite) TestVerify_AfterKeyRotation() {
	session := s.login()

	ring, err := token.NewKeyring(
		token.Key{Version: 2, Secret: []byte("rotated-signing-key-0123456789abcdef")},
		token.Key{Version: 1, Secret: []byte("session-test-signing-key-0123456789")},
	)
	s.Require().NoError(err)
	rotated, err := New(s.credentials, s.revocations, token.NewService(ring, "digitalbank"))
	s.Require().NoError(err)

	claims, err := rotated.Verify(s.ctxAt(s.now), session.Token)
	s.Require().NoError(err)
	s.Equal(1, claims.KeyVersion)
}
