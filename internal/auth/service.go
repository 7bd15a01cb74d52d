package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube-org/vidtube/backend/internal/audit"
	"github.com/vidtube-org/vidtube/backend/internal/models"
	"github.com/vidtube-org/vidtube/backend/internal/rate"
	"github.com/vidtube-org/vidtube/backend/internal/store"
	"github.com/vidtube-org/vidtube/backend/internal/token"
)

// UserStore defines the interface for account persistence.
type UserStore interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	ByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
	SetRefreshToken(ctx context.Context, id, refreshToken string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// AssetStore defines the interface for profile image storage.
type AssetStore interface {
	UploadImage(ctx context.Context, folder string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// LoginLimiter throttles failed login attempts per identifier.
type LoginLimiter interface {
	Check(ctx context.Context, identifier string) error
	Fail(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// Asset is an uploaded file part from the signup form.
type Asset struct {
	Data        []byte
	ContentType string
}

// RegisterInput carries the signup fields. Avatar is required, Cover optional.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Avatar   *Asset
	Cover    *Asset
}

// Tokens is a freshly minted access/refresh pair.
type Tokens struct {
	Access  string
	Refresh string
}

// Service implements session issuance, verification support, and
// refresh-token rotation against the account store.
type Service struct {
	users   UserStore
	assets  AssetStore
	access  *token.Manager
	refresh *token.Manager
	limiter LoginLimiter
	trail   *audit.Recorder
	log     *slog.Logger
	rotate  bool
}

// NewService wires the session service. limiter and trail may be nil.
func NewService(users UserStore, assets AssetStore, access, refresh *token.Manager,
	limiter LoginLimiter, trail *audit.Recorder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:   users,
		assets:  assets,
		access:  access,
		refresh: refresh,
		limiter: limiter,
		trail:   trail,
		log:     log,
		rotate:  true,
	}
}

// SetRefreshRotation toggles refresh-token rotation. When disabled, a
// successful refresh mints only a new access token and the stored refresh
// token stays valid until its own expiry.
func (s *Service) SetRefreshRotation(enabled bool) { s.rotate = enabled }

// Login checks the credentials and mints an access/refresh pair. The fresh
// refresh token is persisted into the account's single session slot,
// overwriting (and thereby invalidating) any prior value.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.User, Tokens, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return nil, Tokens{}, &ValidationError{Fields: missingOf(map[string]string{
			"username or email": identifier,
			"password":          password,
		})}
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, identifier); err != nil {
			if errors.Is(err, rate.ErrLimited) {
				return nil, Tokens{}, err
			}
			// Throttle backend trouble must not lock everyone out.
			s.log.Warn("login limiter unavailable", "error", err)
		}
	}

	u, err := s.users.ByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNoUser) {
			return nil, Tokens{}, ErrNotFound
		}
		return nil, Tokens{}, fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		s.recordFailure(ctx, identifier, u.ID.Hex())
		return nil, Tokens{}, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, Tokens{}, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, identifier); err != nil {
			s.log.Warn("login limiter reset failed", "error", err)
		}
	}
	s.trail.Record(audit.EventLoginSuccess, u.ID.Hex(), "")

	return u.Sanitized(), pair, nil
}

// Register validates the signup input, uploads the profile assets, and
// creates the account. It does not issue tokens; callers must login.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	missing := missingOf(map[string]string{
		"username": in.Username,
		"email":    in.Email,
		"fullName": in.FullName,
		"password": in.Password,
	})
	if in.Avatar == nil || len(in.Avatar.Data) == 0 {
		missing = append(missing, "avatar")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	// Cheap existence check before touching asset storage. The unique
	// indexes still guard the insert against races.
	for _, identifier := range []string{username, email} {
		if _, err := s.users.ByIdentifier(ctx, identifier); err == nil {
			return nil, ErrConflict
		} else if !errors.Is(err, store.ErrNoUser) {
			return nil, fmt.Errorf("lookup account: %w", err)
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	avatarKey, err := s.assets.UploadImage(ctx, "avatars", in.Avatar.Data, in.Avatar.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	coverKey := ""
	if in.Cover != nil && len(in.Cover.Data) > 0 {
		coverKey, err = s.assets.UploadImage(ctx, "covers", in.Cover.Data, in.Cover.ContentType)
		if err != nil {
			s.removeAsset(ctx, avatarKey)
			return nil, fmt.Errorf("upload cover image: %w", err)
		}
	}

	created, err := s.users.Create(ctx, &models.User{
		Username:   username,
		Email:      email,
		FullName:   strings.TrimSpace(in.FullName),
		Password:   string(hashed),
		Avatar:     avatarKey,
		CoverImage: coverKey,
	})
	if err != nil {
		s.removeAsset(ctx, avatarKey)
		s.removeAsset(ctx, coverKey)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return created.Sanitized(), nil
}

// Refresh validates the presented refresh token against the stored slot and
// rotates it: a new access/refresh pair is minted and the new refresh token
// replaces the old one. A syntactically valid token that no longer equals
// the stored value is a replay and is rejected.
func (s *Service) Refresh(ctx context.Context, presented string) (Tokens, error) {
	if presented == "" {
		return Tokens{}, ErrUnauthenticated
	}

	claims, err := s.refresh.Verify(presented)
	if err != nil {
		return Tokens{}, err
	}

	u, err := s.users.ByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNoUser) {
			return Tokens{}, ErrUnauthenticated
		}
		return Tokens{}, fmt.Errorf("lookup account: %w", err)
	}

	if u.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(u.RefreshToken), []byte(presented)) != 1 {
		s.trail.Record(audit.EventRefreshReplay, u.ID.Hex(), "stored slot mismatch")
		return Tokens{}, ErrUnauthenticated
	}

	var pair Tokens
	if s.rotate {
		pair, err = s.issueTokens(ctx, u)
	} else {
		pair.Access, err = s.signAccess(u)
	}
	if err != nil {
		return Tokens{}, err
	}
	s.trail.Record(audit.EventRefreshSuccess, u.ID.Hex(), "")
	return pair, nil
}

// Logout clears the account's refresh-token slot.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.trail.Record(audit.EventLogout, userID, "")
	return nil
}

// AccessTTL reports the access-token lifetime, used for cookie expiry.
func (s *Service) AccessTTL() time.Duration { return s.access.TTL() }

// RefreshTTL reports the refresh-token lifetime, used for cookie expiry.
func (s *Service) RefreshTTL() time.Duration { return s.refresh.TTL() }

func (s *Service) issueTokens(ctx context.Context, u *models.User) (Tokens, error) {
	id := u.ID.Hex()
	access, err := s.signAccess(u)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.refresh.Sign(token.Claims{UserID: id})
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, id, refresh); err != nil {
		return Tokens{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

func (s *Service) signAccess(u *models.User) (string, error) {
	access, err := s.access.Sign(token.Claims{
		UserID:   u.ID.Hex(),
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
	})
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access, nil
}

// removeAsset is best-effort cleanup after a failed signup.
func (s *Service) removeAsset(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.assets.Remove(ctx, key); err != nil {
		s.log.Warn("remove orphaned asset", "key", key, "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, identifier, userID string) {
	if s.limiter != nil {
		if err := s.limiter.Fail(ctx, identifier); err != nil {
			s.log.Warn("login limiter increment failed", "error", err)
		}
	}
	s.trail.Record(audit.EventLoginFailure, userID, "password mismatch")
}

func missingOf(fields map[string]string) []string {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
