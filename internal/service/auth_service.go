package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/secureexam/portal-backend/internal/clock"
	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidStage       = errors.New("token stage not valid for this operation")
	ErrStaleToken         = errors.New("stage token expired")
	ErrWeakPassword       = errors.New("password does not meet complexity requirements")
	ErrVerifyTokenInvalid = errors.New("verification token invalid or expired")
)

// Stage marks how far a login has progressed.
type Stage string

const (
	// StagePasswordVerified authorizes exactly one operation class:
	// requesting and consuming a one-time code for the same subject.
	StagePasswordVerified Stage = "password_verified"
	// StageFullSession authorizes protected resource access.
	StageFullSession Stage = "full_session"
)

// Claims extends JWT standard claims with the login stage and identity.
// Tokens are self-contained; validity is signature + expiry + stage only.
type Claims struct {
	jwt.RegisteredClaims
	Stage    Stage      `json:"stage"`
	Username string     `json:"username,omitempty"`
	Role     model.Role `json:"role,omitempty"`
}

// UserID returns the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// userStore is the slice of user persistence the auth flows need.
type userStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	GetByVerifyToken(ctx context.Context, token string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	StampLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Mailer delivers out-of-band messages. Delivery failure is logged by the
// caller but never aborts the triggering operation.
type Mailer interface {
	Send(to, subject, body string) error
}

// AuditRecorder accepts audit entries for asynchronous persistence.
type AuditRecorder interface {
	Record(entry model.AuditEntry)
}

// AuthService implements the two-stage login state machine:
// Unauthenticated → PasswordVerified → FullSession.
type AuthService struct {
	cfg    *config.Config
	users  userStore
	otc    *OTCService
	mailer Mailer
	audit  AuditRecorder
	clk    clock.Clock
	log    zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	cfg *config.Config,
	users userStore,
	otc *OTCService,
	mailer Mailer,
	audit AuditRecorder,
	clk clock.Clock,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		cfg:    cfg,
		users:  users,
		otc:    otc,
		mailer: mailer,
		audit:  audit,
		clk:    clk,
		log:    log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ValidatePasswordPolicy enforces minimum credential strength:
// at least 8 characters with uppercase, lowercase, digit, and special.
func ValidatePasswordPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

// Register creates an unverified account and dispatches the verification
// link. Mail failure is logged, not fatal.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if err := ValidatePasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByUsernameOrEmail(ctx, req.Username, req.Email); err == nil && existing != nil {
		s.audit.Record(model.AuditEntry{
			Action:    model.AuditRegister,
			Outcome:   model.AuditFailure,
			Reason:    "duplicate username or email",
			Timestamp: s.clk.Now(),
		})
		return nil, repository.ErrDuplicate
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	token, err := randomHexToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	role := req.Role
	if role == "" {
		role = model.RoleStudent
	}

	expires := s.clk.Now().Add(s.cfg.VerifyTokenTTL)
	user := &model.User{
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: false,
		VerifyToken:   &token,
		VerifyExpires: &expires,
		Active:        true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	link := s.cfg.FrontendURL + "/verify-email/" + token
	if err := s.mailer.Send(user.Email, "Verify Your Email - Secure Exam Portal", verificationEmailBody(link)); err != nil {
		s.log.Error().Err(err).Str("email", user.Email).Msg("verification mail delivery failed")
	}

	s.audit.Record(model.AuditEntry{
		UserID:    &user.ID,
		Action:    model.AuditRegister,
		Outcome:   model.AuditSuccess,
		Timestamp: s.clk.Now(),
	})
	return user, nil
}

// VerifyEmail consumes a verification link token, flipping the account to
// verified exactly once.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.GetByVerifyToken(ctx, token)
	if err != nil {
		return ErrVerifyTokenInvalid
	}
	if user.VerifyExpires == nil || s.clk.Now().After(*user.VerifyExpires) {
		return ErrVerifyTokenInvalid
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.audit.Record(model.AuditEntry{
		UserID:    &user.ID,
		Action:    model.AuditVerifyEmail,
		Outcome:   model.AuditSuccess,
		Timestamp: s.clk.Now(),
	})
	return nil
}

// LoginPassword is stage one. Unknown user, wrong password, unverified
// email, and inactive account all surface as the same generic failure;
// only the audit trail records which it was.
func (s *AuthService) LoginPassword(ctx context.Context, username, password, ip string) (string, error) {
	fail := func(userID *uuid.UUID, reason string) (string, error) {
		s.audit.Record(model.AuditEntry{
			UserID:    userID,
			Action:    model.AuditLoginStage1,
			Outcome:   model.AuditFailure,
			Reason:    reason,
			IPAddress: ip,
			Timestamp: s.clk.Now(),
		})
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return fail(nil, "user not found")
	}
	if !user.EmailVerified {
		return fail(&user.ID, "email not verified")
	}
	if err := s.CheckPassword(user.PasswordHash, password); err != nil {
		return fail(&user.ID, "invalid password")
	}
	if !user.Active {
		return fail(&user.ID, "account inactive")
	}

	token, err := s.signToken(user, StagePasswordVerified, s.cfg.TempTokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign temp token: %w", err)
	}
	return token, nil
}

// RequestCode is stage 2a: issue a one-time code for the subject of a
// password-verified token and dispatch it by mail. Issuance reports success
// even when delivery fails — the delivery channel's existence is not leaked.
func (s *AuthService) RequestCode(ctx context.Context, claims *Claims) error {
	if claims.Stage != StagePasswordVerified {
		return ErrInvalidStage
	}
	userID, err := claims.UserID()
	if err != nil {
		return ErrInvalidStage
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ErrInvalidCredentials
	}

	code, err := s.otc.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}

	if err := s.mailer.Send(user.Email, "Your Login Code - Secure Exam Portal", otcEmailBody(code, s.cfg.OTCTTL)); err != nil {
		s.log.Error().Err(err).Str("email", user.Email).Msg("code mail delivery failed")
	}
	return nil
}

// CompleteMFA is stage 2b: consume the one-time code and promote the
// session to full scope. The OTC is invalidated on success; last login is
// stamped.
func (s *AuthService) CompleteMFA(ctx context.Context, claims *Claims, candidate, ip string) (string, *model.User, error) {
	if claims.Stage != StagePasswordVerified {
		return "", nil, ErrInvalidStage
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", nil, ErrInvalidStage
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := s.otc.Verify(ctx, user.ID, candidate); err != nil {
		s.audit.Record(model.AuditEntry{
			UserID:    &user.ID,
			Action:    model.AuditLoginStage2,
			Outcome:   model.AuditFailure,
			Reason:    err.Error(),
			IPAddress: ip,
			Timestamp: s.clk.Now(),
		})
		return "", nil, err
	}

	now := s.clk.Now()
	if err := s.users.StampLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("stamp last login failed")
	}

	token, err := s.signToken(user, StageFullSession, s.cfg.JWTExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	s.audit.Record(model.AuditEntry{
		UserID:    &user.ID,
		Action:    model.AuditLoginStage2,
		Outcome:   model.AuditSuccess,
		IPAddress: ip,
		Timestamp: now,
	})
	return token, user, nil
}

// GetUser loads a user by id for profile responses.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) signToken(user *model.User, stage Stage, ttl time.Duration) (string, error) {
	now := s.clk.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Stage: stage,
	}
	if stage == StageFullSession {
		claims.Username = user.Username
		claims.Role = user.Role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and validates a stage token, returning the claims.
// Expired tokens report ErrStaleToken; expiry is enforced server-side
// regardless of what the bearer claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrStaleToken
		}
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func randomHexToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
