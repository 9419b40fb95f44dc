package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureexam/portal-backend/internal/clock"
)

// memCodeStore is an in-memory CodeStore for tests.
type memCodeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]CodeRecord
}

func newMemCodeStore() *memCodeStore {
	return &memCodeStore{records: make(map[uuid.UUID]CodeRecord)}
}

func (s *memCodeStore) Put(_ context.Context, subjectID uuid.UUID, rec CodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[subjectID] = rec
	return nil
}

func (s *memCodeStore) Get(_ context.Context, subjectID uuid.UUID) (CodeRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[subjectID]
	return rec, ok, nil
}

func (s *memCodeStore) Delete(_ context.Context, subjectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, subjectID)
	return nil
}

func newTestOTC(clk clock.Clock) (*OTCService, *memCodeStore) {
	store := newMemCodeStore()
	// MinCost keeps bcrypt fast in tests.
	return NewOTCService(store, clk, 5*time.Minute, 4), store
}

func TestIssueProducesSixDigitCode(t *testing.T) {
	svc, _ := newTestOTC(clock.System{})
	subject := uuid.New()

	code, err := svc.Issue(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
	assert.GreaterOrEqual(t, code, "100000")
}

func TestVerifyConsumesCode(t *testing.T) {
	svc, _ := newTestOTC(clock.System{})
	subject := uuid.New()
	ctx := context.Background()

	code, err := svc.Issue(ctx, subject)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, subject, code))

	// Second use of the same code: consumed, so nothing is active.
	assert.ErrorIs(t, svc.Verify(ctx, subject, code), ErrNoActiveCode)
}

func TestVerifyNoActiveCode(t *testing.T) {
	svc, _ := newTestOTC(clock.System{})
	assert.ErrorIs(t, svc.Verify(context.Background(), uuid.New(), "123456"), ErrNoActiveCode)
}

func TestVerifyMismatchDoesNotConsume(t *testing.T) {
	svc, _ := newTestOTC(clock.System{})
	subject := uuid.New()
	ctx := context.Background()

	code, err := svc.Issue(ctx, subject)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.Verify(ctx, subject, wrong), ErrCodeMismatch)

	// The right code still works afterwards.
	assert.NoError(t, svc.Verify(ctx, subject, code))
}

func TestVerifyExpiredEvenWhenCodeMatches(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := &clock.Fixed{T: base}
	svc, _ := newTestOTC(clk)
	subject := uuid.New()
	ctx := context.Background()

	code, err := svc.Issue(ctx, subject)
	require.NoError(t, err)

	// One second past the validity window: expiry wins over the match.
	clk.T = base.Add(5*time.Minute + time.Second)
	assert.ErrorIs(t, svc.Verify(ctx, subject, code), ErrCodeExpired)
}

func TestReissueSupersedesPreviousCode(t *testing.T) {
	svc, _ := newTestOTC(clock.System{})
	subject := uuid.New()
	ctx := context.Background()

	first, err := svc.Issue(ctx, subject)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, subject)
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, svc.Verify(ctx, subject, first), ErrCodeMismatch)
	}
	assert.NoError(t, svc.Verify(ctx, subject, second))
}

func TestIssueIsPerSubject(t *testing.T) {
	svc, _ := newTestOTC(clock.System{})
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	aliceCode, err := svc.Issue(ctx, alice)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, bob)
	require.NoError(t, err)

	// Alice's code does not unlock Bob's pending login.
	err = svc.Verify(ctx, bob, aliceCode)
	assert.Error(t, err)
	assert.NoError(t, svc.Verify(ctx, alice, aliceCode))
}
