package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/secureexam/portal-backend/internal/clock"
	"golang.org/x/crypto/bcrypt"
)

// OTC verification failures. Expiry is checked before the hash comparison,
// so an expired code fails with ErrCodeExpired even when it would match.
var (
	ErrNoActiveCode = errors.New("no active verification code")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("verification code mismatch")
)

// CodeRecord is the stored state of one active code: its bcrypt hash and
// expiry. The raw code is never persisted.
type CodeRecord struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeStore persists at most one active code per subject.
type CodeStore interface {
	Put(ctx context.Context, subjectID uuid.UUID, rec CodeRecord) error
	// Get returns (record, true) when a record exists, (zero, false) otherwise.
	Get(ctx context.Context, subjectID uuid.UUID) (CodeRecord, bool, error)
	Delete(ctx context.Context, subjectID uuid.UUID) error
}

// OTCService manages the one-time verification code lifecycle:
// issue (overwrite-on-resend), verify, single-use invalidation.
type OTCService struct {
	store      CodeStore
	clk        clock.Clock
	ttl        time.Duration
	bcryptCost int

	// Striped per-subject locks so a concurrent issue and verify for the
	// same subject cannot interleave across two different issuances.
	locks [64]sync.Mutex
}

// NewOTCService creates an OTCService.
func NewOTCService(store CodeStore, clk clock.Clock, ttl time.Duration, bcryptCost int) *OTCService {
	return &OTCService{store: store, clk: clk, ttl: ttl, bcryptCost: bcryptCost}
}

func (s *OTCService) lockFor(subjectID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(subjectID[:])
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// Issue generates a uniformly random 6-digit code, stores only its bcrypt
// hash plus expiry, and returns the raw code for out-of-band delivery.
// Any previously active code for the subject is superseded.
func (s *OTCService) Issue(ctx context.Context, subjectID uuid.UUID) (string, error) {
	code, err := randomSixDigits()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	rec := CodeRecord{
		Hash:      string(hash),
		ExpiresAt: s.clk.Now().Add(s.ttl),
	}

	mu := s.lockFor(subjectID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.Put(ctx, subjectID, rec); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify checks a candidate code and consumes it on success. The stored
// record is cleared atomically with the successful comparison, so no code
// can be validated twice.
func (s *OTCService) Verify(ctx context.Context, subjectID uuid.UUID, candidate string) error {
	mu := s.lockFor(subjectID)
	mu.Lock()
	defer mu.Unlock()

	rec, ok, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if !ok {
		return ErrNoActiveCode
	}

	if s.clk.Now().After(rec.ExpiresAt) {
		return ErrCodeExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(candidate)) != nil {
		return ErrCodeMismatch
	}

	if err := s.store.Delete(ctx, subjectID); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// randomSixDigits draws a uniform code in [100000, 999999] from crypto/rand.
func randomSixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ─── Redis-backed store ─────────────────────────────────────────────────────

// redisCodeStore keeps code state in Redis keyed by subject id. The key TTL
// is longer than the code validity so that a recently expired code still
// reports "expired" rather than "no active code".
type redisCodeStore struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRedisCodeStore creates a CodeStore backed by Redis. codeTTL is the
// code validity window; records are retained for an hour beyond it.
func NewRedisCodeStore(rdb *redis.Client, codeTTL time.Duration) CodeStore {
	return &redisCodeStore{rdb: rdb, retention: codeTTL + time.Hour}
}

func otcKey(subjectID uuid.UUID) string {
	return "otc:" + subjectID.String()
}

func (s *redisCodeStore) Put(ctx context.Context, subjectID uuid.UUID, rec CodeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, otcKey(subjectID), data, s.retention).Err()
}

func (s *redisCodeStore) Get(ctx context.Context, subjectID uuid.UUID) (CodeRecord, bool, error) {
	data, err := s.rdb.Get(ctx, otcKey(subjectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CodeRecord{}, false, nil
		}
		return CodeRecord{}, false, err
	}
	var rec CodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return CodeRecord{}, false, err
	}
	return rec, true, nil
}

func (s *redisCodeStore) Delete(ctx context.Context, subjectID uuid.UUID) error {
	return s.rdb.Del(ctx, otcKey(subjectID)).Err()
}
