package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"digitalbank/internal/identity"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestAuthenticate_Success() {
	session := s.login()

	s.Equal(s.jean.PrincipalID, session.Principal.ID)
	s.Equal(identity.RoleCustomer, session.Principal.Role)
	s.Equal(identity.MFALevelNone, session.Principal.MFALevel)
	s.Equal(s.now, session.IssuedAt)
	s.Equal(s.now.Add(24*time.Hour), session.ExpiresAt)
	s.Equal(1, session.KeyVersion)
	s.NotEmpty(session.Token)
	s.False(session.ID.IsNil())
}

func (s *ServiceSuite) TestAuthenticate_NormalizesEmail() {
	s.lockout.EXPECT().Check(gomock.Any(), "login", s.jean.Email).Return(nil)
	s.credentials.EXPECT().FindByEmail(gomock.Any(), s.jean.Email).Return(s.jean, nil)
	s.factors.EXPECT().HasVerifiedFactor(gomock.Any(), s.jean.PrincipalID).Return(false, nil)
	s.credentials.EXPECT().RecordLogin(gomock.Any(), s.jean.PrincipalID, s.now).Return(nil)
	s.lockout.EXPECT().Clear(gomock.Any(), "login", s.jean.Email).Return(nil)

	_, err := s.service.Authenticate(s.ctxAt(s.now), "  Jean.Dupont@Email.FR ", "Password123!")
	s.NoError(err)
}

func (s *ServiceSuite) TestAuthenticate_EnrolledFactorRaisesLevel() {
	s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.credentials.EXPECT().FindByEmail(gomock.Any(), s.jean.Email).Return(s.jean, nil)
	s.factors.EXPECT().HasVerifiedFactor(gomock.Any(), s.jean.PrincipalID).Return(true, nil)
	s.credentials.EXPECT().RecordLogin(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.lockout.EXPECT().Clear(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	session, err := s.service.Authenticate(s.ctxAt(s.now), s.jean.Email, "Password123!")
	s.Require().NoError(err)
	s.Equal(identity.MFALevelEnrolled, session.Principal.MFALevel)
}

func (s *ServiceSuite) TestAuthenticate_FailuresAreIndistinguishable() {
	ctx := s.ctxAt(s.now)
	s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)
	s.lockout.EXPECT().RecordFailure(gomock.Any(), "login", gomock.Any()).Return(nil).Times(3)

	s.credentials.EXPECT().FindByEmail(gomock.Any(), "nobody@email.fr").Return(nil, sentinel.ErrNotFound)
	_, unknownErr := s.service.Authenticate(ctx, "nobody@email.fr", "Password123!")

	s.credentials.EXPECT().FindByEmail(gomock.Any(), s.jean.Email).Return(s.jean, nil)
	_, wrongErr := s.service.Authenticate(ctx, s.jean.Email, "wrong-password")

	disabled := *s.jean
	disabled.Disabled = true
	s.credentials.EXPECT().FindByEmail(gomock.Any(), s.jean.Email).Return(&disabled, nil)
	_, disabledErr := s.service.Authenticate(ctx, s.jean.Email, "Password123!")

	for _, err := range []error{unknownErr, wrongErr, disabledErr} {
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal(unknownErr.Error(), err.Error())
	}
}

func (s *ServiceSuite) TestAuthenticate_EmptySecretNeverMatches() {
	s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.lockout.EXPECT().RecordFailure(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.credentials.EXPECT().FindByEmail(gomock.Any(), s.jean.Email).Return(s.jean, nil)

	_, err := s.service.Authenticate(s.ctxAt(s.now), s.jean.Email, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func (s *ServiceSuite) TestAuthenticate_LockedOut() {
	s.lockout.EXPECT().Check(gomock.Any(), "login", s.jean.Email).
		Return(dErrors.New(dErrors.CodeRateLimited, "too many attempts, try again later"))

	_, err := s.service.Authenticate(s.ctxAt(s.now), s.jean.Email, "Password123!")
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func (s *ServiceSuite) TestAuthenticate_UpstreamFailures() {
	ctx := s.ctxAt(s.now)

	s.Run("credential store down", func() {
		s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.credentials.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("dial tcp: i/o timeout"))

		_, err := s.service.Authenticate(ctx, s.jean.Email, "Password123!")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})

	s.Run("factor store down", func() {
		s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.credentials.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.jean, nil)
		s.factors.EXPECT().HasVerifiedFactor(gomock.Any(), gomock.Any()).Return(false, errors.New("timeout"))

		_, err := s.service.Authenticate(ctx, s.jean.Email, "Password123!")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})

	s.Run("last login update fails", func() {
		s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.credentials.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.jean, nil)
		s.factors.EXPECT().HasVerifiedFactor(gomock.Any(), gomock.Any()).Return(false, nil)
		s.credentials.EXPECT().RecordLogin(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("read-only replica"))

		_, err := s.service.Authenticate(ctx, s.jean.Email, "Password123!")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})

	s.Run("lockout store down", func() {
		s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeUpstreamUnavailable, "lockout store unavailable"))

		_, err := s.service.Authenticate(ctx, s.jean.Email, "Password123!")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})
}

func (s *ServiceSuite) TestAuthenticate_CancelledBeforeIssue() {
	ctx, cancel := context.WithCancel(s.ctxAt(s.now))
	s.lockout.EXPECT().Check(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.credentials.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.jean, nil)
	s.factors.EXPECT().HasVerifiedFactor(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, any) (bool, error) {
			cancel()
			return false, nil
		})

	session, err := s.service.Authenticate(ctx, s.jean.Email, "Password123!")
	s.Nil(session)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
}
