package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/repository"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
	"github.com/agrovia/agrovia-api/pkg/helpers"
)

// AuthService orchestrates the authentication commands. Each command loads or
// creates a credential snapshot, applies a transition, persists the new
// state, updates the cache indices, drains and dispatches the queued events,
// and (for Register/Login/Refresh) issues a token pair. Persistence, cache
// update and dispatch are three uncoordinated steps: a failure at step N does
// not roll back steps before it.
type AuthService struct {
	Store      repository.CredentialStore
	Users      repository.UserDirectory
	Cache      AuthCache
	Dispatcher EventDispatcher
	JWT        TokenIssuer
	Logger     *logrus.Logger
}

func NewAuthService(store repository.CredentialStore, users repository.UserDirectory, cache AuthCache, dispatcher EventDispatcher, jwt TokenIssuer, logger *logrus.Logger) *AuthService {
	return &AuthService{
		Store:      store,
		Users:      users,
		Cache:      cache,
		Dispatcher: dispatcher,
		JWT:        jwt,
		Logger:     logger,
	}
}

// SessionPayload is the arbitrary JSON payload stored under
// auth:session:<id> at login time.
type SessionPayload struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// AuthResult is returned by the token-issuing commands.
type AuthResult struct {
	UserID    string
	Email     string
	Name      string
	SessionID string
	Tokens    helpers.TokenPair
}

// RequestMeta carries per-request context recorded on domain events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Source   string
	Meta     RequestMeta
}

// Register creates the external user, the credential record and the first
// session. Fails with ValidationError on a weak password or bad email, and
// ConflictError when the email is already registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email, err := valueobject.NewEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := valueobject.ValidatePlaintext(in.Password); err != nil {
		return nil, err
	}

	exists, err := s.Store.EmailExists(ctx, email)
	if err != nil {
		return nil, &apperror.InfrastructureError{Op: "store.email_exists", Err: err}
	}
	if exists {
		return nil, &apperror.ConflictError{Resource: "email"}
	}

	user := &entity.User{
		ID:     uuid.NewString(),
		Email:  email.String(),
		Name:   in.Name,
		Status: entity.UserStatusActive,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, &apperror.InfrastructureError{Op: "directory.create", Err: err}
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	cred, err := entity.NewCredential(user.ID, email.String(), hash, in.Phone)
	if err != nil {
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = "registration"
	}
	cred = cred.RecordRegistration(entity.RegistrationMeta{
		Name:      in.Name,
		IPAddress: in.Meta.IPAddress,
		UserAgent: in.Meta.UserAgent,
		Source:    source,
	})

	if err := s.Store.Save(ctx, &cred); err != nil {
		return nil, err
	}
	s.cacheAuth(ctx, &cred)

	if err := s.Dispatcher.PublishAll(ctx, cred.PullDomainEvents()); err != nil {
		return nil, err
	}

	return s.issueSession(ctx, user.ID, email.String(), in.Name, in.Meta)
}

type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// Login verifies credentials and issues a token pair. Unknown email and wrong
// password fail with the same generic AuthenticationError so callers cannot
// enumerate accounts.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email, err := valueobject.NewEmail(in.Email)
	if err != nil {
		return nil, &apperror.AuthenticationError{}
	}

	cred, err := s.loadByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, &apperror.AuthenticationError{}
	}
	if !helpers.CompareHashAndPassword(cred.PasswordHash.String(), in.Password) {
		return nil, &apperror.AuthenticationError{}
	}

	user, err := s.activeUser(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	next := cred.RecordLogin(entity.LoginMeta{
		IPAddress: in.Meta.IPAddress,
		UserAgent: in.Meta.UserAgent,
		SessionID: sessionID,
	})
	if err := s.Store.Update(ctx, &next); err != nil {
		return nil, err
	}
	s.cacheAuth(ctx, &next)

	if err := s.Dispatcher.PublishAll(ctx, next.PullDomainEvents()); err != nil {
		return nil, err
	}

	return s.issueSessionWithID(ctx, sessionID, user.ID, user.Email, user.Name, in.Meta)
}

type RefreshInput struct {
	RefreshToken string
	Meta         RequestMeta
}

// Refresh exchanges a valid refresh token for a brand-new pair. The old
// refresh token is not invalidated and stays usable until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	claims, err := s.JWT.Verify(in.RefreshToken, helpers.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	pair, err := s.JWT.GenerateTokenPair(claims.Subject, claims.Email, claims.SessionID)
	if err != nil {
		return nil, err
	}

	// Best-effort TokenRefreshed event; a missing credential snapshot does
	// not block re-issuance.
	if cred, loadErr := s.loadByUserID(ctx, claims.Subject); loadErr == nil && cred != nil {
		next := cred.RecordTokenRefresh(entity.TokenRefreshMeta{
			PreviousTokenExpiry: claims.ExpiresAt.Time,
			NewTokenExpiry:      pair.RefreshTokenExpiry,
			RefreshTokenID:      claims.ID,
			IsAutomatic:         false,
			IPAddress:           in.Meta.IPAddress,
			UserAgent:           in.Meta.UserAgent,
		})
		if err := s.Dispatcher.PublishAll(ctx, next.PullDomainEvents()); err != nil {
			return nil, err
		}
	}

	return &AuthResult{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		SessionID: claims.SessionID,
		Tokens:    pair,
	}, nil
}

type LogoutInput struct {
	UserID    string
	SessionID string
	Reason    string
	Meta      RequestMeta
}

// Logout emits the UserLoggedOut event and drops the session entry. Fails
// with NotFoundError when no credential exists for the user.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput) error {
	cred, err := s.loadByUserID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if cred == nil {
		return &apperror.NotFoundError{Resource: "credential"}
	}

	next := cred.RecordLogout(entity.LogoutMeta{
		SessionID:    in.SessionID,
		IPAddress:    in.Meta.IPAddress,
		UserAgent:    in.Meta.UserAgent,
		LogoutMethod: "manual",
		Reason:       in.Reason,
	})
	if err := s.Store.Update(ctx, &next); err != nil {
		return err
	}
	if in.SessionID != "" {
		if err := s.Cache.DeleteSession(ctx, in.SessionID); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("session_id", in.SessionID).Warn("session delete failed")
		}
	}
	return s.Dispatcher.PublishAll(ctx, next.PullDomainEvents())
}

type ChangePasswordInput struct {
	UserID      string
	OldPassword string
	NewPassword string
	Meta        RequestMeta
}

// ChangePassword verifies the current password, validates and hashes the new
// one, persists the new snapshot and refreshes both cache indices.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	cred, err := s.loadByUserID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if cred == nil {
		return &apperror.NotFoundError{Resource: "credential"}
	}
	if !helpers.CompareHashAndPassword(cred.PasswordHash.String(), in.OldPassword) {
		return &apperror.AuthenticationError{}
	}
	if err := valueobject.ValidatePlaintext(in.NewPassword); err != nil {
		return err
	}
	rawHash, err := helpers.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	hash, err := valueobject.NewPasswordHash(rawHash)
	if err != nil {
		return err
	}

	next := cred.ChangePassword(hash, entity.PasswordChangeMeta{
		IPAddress:           in.Meta.IPAddress,
		UserAgent:           in.Meta.UserAgent,
		ChangeMethod:        "self_service",
		OldPasswordVerified: true,
		IsPasswordReset:     false,
	})
	if err := s.Store.Update(ctx, &next); err != nil {
		return err
	}
	s.cacheAuth(ctx, &next)

	return s.Dispatcher.PublishAll(ctx, next.PullDomainEvents())
}

// loadByEmail is the cache-aside read path keyed by email. Cache transport
// errors degrade to a system-of-record read; a store miss returns (nil, nil).
func (s *AuthService) loadByEmail(ctx context.Context, email valueobject.Email) (*entity.Credential, error) {
	if s.Cache != nil {
		cred, err := s.Cache.GetByEmail(ctx, email)
		if err == nil && cred != nil {
			return cred, nil
		}
		if err != nil && s.Logger != nil {
			s.Logger.WithError(err).Warn("cache read failed, falling back to store")
		}
	}
	cred, err := s.Store.FindByEmail(ctx, email)
	if err != nil {
		var nf *apperror.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, &apperror.InfrastructureError{Op: "store.find_by_email", Err: err}
	}
	s.cacheAuth(ctx, cred)
	return cred, nil
}

// loadByUserID mirrors loadByEmail for the user-id index.
func (s *AuthService) loadByUserID(ctx context.Context, userID string) (*entity.Credential, error) {
	if s.Cache != nil {
		cred, err := s.Cache.GetByUserID(ctx, userID)
		if err == nil && cred != nil {
			return cred, nil
		}
		if err != nil && s.Logger != nil {
			s.Logger.WithError(err).Warn("cache read failed, falling back to store")
		}
	}
	cred, err := s.Store.FindByUserID(ctx, userID)
	if err != nil {
		var nf *apperror.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, &apperror.InfrastructureError{Op: "store.find_by_user_id", Err: err}
	}
	s.cacheAuth(ctx, cred)
	return cred, nil
}

// cacheAuth repopulates both indices, logging instead of failing: the cache
// is never authoritative and a write failure must not abort a command that
// has already persisted state.
func (s *AuthService) cacheAuth(ctx context.Context, cred *entity.Credential) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.CacheAuth(ctx, cred, 0); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", cred.UserID).Warn("cache write failed")
	}
}

// activeUser loads the directory user and enforces the activation check. A
// missing or non-active user is an authorization failure.
func (s *AuthService) activeUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		var nf *apperror.NotFoundError
		if errors.As(err, &nf) {
			return nil, &apperror.AuthorizationError{Reason: "account not available"}
		}
		return nil, &apperror.InfrastructureError{Op: "directory.find_by_id", Err: err}
	}
	if !user.IsActive() {
		return nil, &apperror.AuthorizationError{Reason: "account inactive"}
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID, email, name string, meta RequestMeta) (*AuthResult, error) {
	return s.issueSessionWithID(ctx, uuid.NewString(), userID, email, name, meta)
}

func (s *AuthService) issueSessionWithID(ctx context.Context, sessionID, userID, email, name string, meta RequestMeta) (*AuthResult, error) {
	pair, err := s.JWT.GenerateTokenPair(userID, email, sessionID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Error("token pair generation failed")
		}
		return nil, err
	}
	payload := SessionPayload{
		SessionID:  sessionID,
		UserID:     userID,
		Email:      email,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		LoggedInAt: time.Now().UTC(),
	}
	if s.Cache != nil {
		if err := s.Cache.SetSession(ctx, sessionID, payload, 0); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("session_id", sessionID).Warn("session write failed")
		}
	}
	return &AuthResult{
		UserID:    userID,
		Email:     email,
		Name:      name,
		SessionID: sessionID,
		Tokens:    pair,
	}, nil
}
