package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/secureexam/portal-backend/internal/clock"
	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*model.User)}
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) GetByUsernameOrEmail(_ context.Context, username, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) GetByVerifyToken(_ context.Context, token string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerifyToken != nil && *u.VerifyToken == token {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.New()
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *fakeUserStore) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailVerified = true
	u.VerifyToken = nil
	return nil
}

func (s *fakeUserStore) StampLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return assert.AnError
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *fakeAudit) Record(entry model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *fakeAudit) last() model.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

// ─── Harness ────────────────────────────────────────────────────────────────

func authTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:    "test-secret",
		JWTExpiry:    24 * time.Hour,
		TempTokenTTL: 5 * time.Minute,
		BcryptCost:   bcrypt.MinCost,
		OTCTTL:       5 * time.Minute,
		VerifyTokenTTL: 24 * time.Hour,
		FrontendURL:  "http://localhost:3000",
	}
}

type authHarness struct {
	svc    *AuthService
	users  *fakeUserStore
	mailer *fakeMailer
	audit  *fakeAudit
	otc    *OTCService
	clk    clock.Clock
}

func newAuthHarness(clk clock.Clock) *authHarness {
	cfg := authTestConfig()
	users := newFakeUserStore()
	mailer := &fakeMailer{}
	audit := &fakeAudit{}
	otc := NewOTCService(newMemCodeStore(), clk, cfg.OTCTTL, cfg.BcryptCost)
	svc := NewAuthService(cfg, users, otc, mailer, audit, clk, zerolog.Nop())
	return &authHarness{svc: svc, users: users, mailer: mailer, audit: audit, otc: otc, clk: clk}
}

func (h *authHarness) seedUser(t *testing.T, username, password string, verified, active bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  string(hash),
		Role:          model.RoleStudent,
		EmailVerified: verified,
		Active:        active,
	}
	require.NoError(t, h.users.Create(context.Background(), user))
	return user
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestValidatePasswordPolicy(t *testing.T) {
	valid := []string{"Str0ng!Pass", "aB3$efgh", "Pa55word#X"}
	for _, p := range valid {
		assert.NoError(t, ValidatePasswordPolicy(p), p)
	}

	invalid := []string{
		"weakpass",
		"alllowercase1!",
		"ALLUPPERCASE1!",
		"NoDigits!!",
		"NoSpecials11A",
		"Ab1!xyz", // 7 chars
	}
	for _, p := range invalid {
		assert.ErrorIs(t, ValidatePasswordPolicy(p), ErrWeakPassword, p)
	}
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()

	user, err := h.svc.Register(ctx, &model.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
	})
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, model.RoleStudent, user.Role)
	require.NotNil(t, user.VerifyToken)

	// Verification mail went out with the token link.
	require.Len(t, h.mailer.sent, 1)
	assert.Contains(t, h.mailer.sent[0].body, *user.VerifyToken)

	require.NoError(t, h.svc.VerifyEmail(ctx, *user.VerifyToken))
	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	// A consumed token no longer resolves.
	assert.ErrorIs(t, h.svc.VerifyEmail(ctx, *user.VerifyToken), ErrVerifyTokenInvalid)
}

func TestRegisterRejectsWeakPasswordAndDuplicates(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()

	_, err := h.svc.Register(ctx, &model.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "weak",
	})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = h.svc.Register(ctx, &model.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "Str0ng!Pass",
	})
	require.NoError(t, err)

	_, err = h.svc.Register(ctx, &model.RegisterRequest{
		Username: "bob", Email: "other@example.com", Password: "Str0ng!Pass",
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// The rejected attempt still leaves a trace.
	assert.Equal(t, model.AuditRegister, h.audit.last().Action)
	assert.Equal(t, model.AuditFailure, h.audit.last().Outcome)
	assert.Equal(t, "duplicate username or email", h.audit.last().Reason)
}

func TestLoginPasswordUniformFailures(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()

	h.seedUser(t, "verified", "Str0ng!Pass", true, true)
	h.seedUser(t, "unverified", "Str0ng!Pass", false, true)
	h.seedUser(t, "inactive", "Str0ng!Pass", true, false)

	cases := []struct {
		name, username, password, auditReason string
	}{
		{"unknown user", "ghost", "Str0ng!Pass", "user not found"},
		{"wrong password", "verified", "WrongPass1!", "invalid password"},
		{"unverified email", "unverified", "Str0ng!Pass", "email not verified"},
		{"inactive account", "inactive", "Str0ng!Pass", "account inactive"},
	}
	for _, tc := range cases {
		_, err := h.svc.LoginPassword(ctx, tc.username, tc.password, "10.0.0.1")
		// Client sees one generic error for all of them.
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.name)
		// The audit trail keeps the specific cause.
		assert.Equal(t, tc.auditReason, h.audit.last().Reason, tc.name)
		assert.Equal(t, model.AuditFailure, h.audit.last().Outcome, tc.name)
	}
}

func TestLoginPasswordIssuesTempToken(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()
	user := h.seedUser(t, "carol", "Str0ng!Pass", true, true)

	token, err := h.svc.LoginPassword(ctx, "carol", "Str0ng!Pass", "10.0.0.1")
	require.NoError(t, err)

	claims, err := h.svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, StagePasswordVerified, claims.Stage)
	assert.Equal(t, user.ID.String(), claims.Subject)
	// Identity payload is withheld until the second factor clears.
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.Role)
}

func TestFullLoginFlow(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()
	user := h.seedUser(t, "dave", "Str0ng!Pass", true, true)

	tempToken, err := h.svc.LoginPassword(ctx, "dave", "Str0ng!Pass", "10.0.0.1")
	require.NoError(t, err)
	tempClaims, err := h.svc.ValidateToken(tempToken)
	require.NoError(t, err)

	require.NoError(t, h.svc.RequestCode(ctx, tempClaims))
	require.Len(t, h.mailer.sent, 1)

	// Pull the issued code out of the mail body.
	code := extractCode(t, h.mailer.sent[0].body)

	token, loggedIn, err := h.svc.CompleteMFA(ctx, tempClaims, code, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := h.svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, StageFullSession, claims.Stage)
	assert.Equal(t, "dave", claims.Username)
	assert.Equal(t, model.RoleStudent, claims.Role)

	// Last login was stamped.
	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	// The code is single-use.
	_, _, err = h.svc.CompleteMFA(ctx, tempClaims, code, "10.0.0.1")
	assert.ErrorIs(t, err, ErrNoActiveCode)
}

func TestStageEnforcement(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()
	h.seedUser(t, "erin", "Str0ng!Pass", true, true)

	tempToken, err := h.svc.LoginPassword(ctx, "erin", "Str0ng!Pass", "10.0.0.1")
	require.NoError(t, err)
	tempClaims, err := h.svc.ValidateToken(tempToken)
	require.NoError(t, err)

	require.NoError(t, h.svc.RequestCode(ctx, tempClaims))
	code := extractCode(t, h.mailer.sent[0].body)

	fullToken, _, err := h.svc.CompleteMFA(ctx, tempClaims, code, "10.0.0.1")
	require.NoError(t, err)
	fullClaims, err := h.svc.ValidateToken(fullToken)
	require.NoError(t, err)

	// A full-session token cannot re-enter the OTC flow.
	assert.ErrorIs(t, h.svc.RequestCode(ctx, fullClaims), ErrInvalidStage)
	_, _, err = h.svc.CompleteMFA(ctx, fullClaims, code, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	past := clock.Fixed{T: time.Now().Add(-48 * time.Hour)}
	h := newAuthHarness(past)
	ctx := context.Background()
	h.seedUser(t, "frank", "Str0ng!Pass", true, true)

	// Token signed 48h ago with a 5m TTL: stale by now.
	token, err := h.svc.LoginPassword(ctx, "frank", "Str0ng!Pass", "10.0.0.1")
	require.NoError(t, err)

	_, err = h.svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrStaleToken)
}

func TestValidateTokenRejectsForgedSignature(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()
	h.seedUser(t, "grace", "Str0ng!Pass", true, true)

	token, err := h.svc.LoginPassword(ctx, "grace", "Str0ng!Pass", "10.0.0.1")
	require.NoError(t, err)

	other := newAuthHarness(clock.System{})
	other.svc.cfg.JWTSecret = "different-secret"
	_, err = other.svc.ValidateToken(token)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleToken)
}

func TestRequestCodeSucceedsWhenMailFails(t *testing.T) {
	h := newAuthHarness(clock.System{})
	ctx := context.Background()
	h.seedUser(t, "heidi", "Str0ng!Pass", true, true)

	tempToken, err := h.svc.LoginPassword(ctx, "heidi", "Str0ng!Pass", "10.0.0.1")
	require.NoError(t, err)
	tempClaims, err := h.svc.ValidateToken(tempToken)
	require.NoError(t, err)

	h.mailer.fail = true
	// Delivery failure is swallowed so the channel's existence is not leaked.
	assert.NoError(t, h.svc.RequestCode(ctx, tempClaims))
}

// extractCode pulls the 6-digit code out of an OTC mail body.
func extractCode(t *testing.T, body string) string {
	t.Helper()
	for i := 0; i+6 <= len(body); i++ {
		code := body[i : i+6]
		digits := true
		for _, r := range code {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			return code
		}
	}
	t.Fatal("no 6-digit code found in mail body")
	return ""
}
