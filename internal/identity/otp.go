package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix    = "otp:v1:"
	ticketKeyPrefix = "signup:v1:"
)

// OTPStore keeps one pending secret hash per phone number until it expires.
// It holds OTPs and signup tickets, one store each.
type OTPStore interface {
	Put(ctx context.Context, phone string, hash []byte, ttl time.Duration) error
	// Get returns ErrOTPExpired when nothing is pending.
	Get(ctx context.Context, phone string) ([]byte, error)
	Delete(ctx context.Context, phone string) error
}

type pendingOTP struct {
	hash      []byte
	expiresAt time.Time
}

type memoryOTPStore struct {
	mu  sync.Mutex
	now func() time.Time
	otp map[string]pendingOTP
}

// NewMemoryOTPStore keeps OTPs in process memory.
func NewMemoryOTPStore() OTPStore {
	return &memoryOTPStore{now: time.Now, otp: make(map[string]pendingOTP)}
}

func (s *memoryOTPStore) Put(_ context.Context, phone string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp[phone] = pendingOTP{hash: hash, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memoryOTPStore) Get(_ context.Context, phone string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.otp[phone]
	if !ok || !s.now().Before(p.expiresAt) {
		delete(s.otp, phone)
		return nil, ErrOTPExpired
	}
	return p.hash, nil
}

func (s *memoryOTPStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otp, phone)
	return nil
}

// RedisOTPStore relies on key expiry for the OTP lifetime.
type RedisOTPStore struct {
	cache  *redis.Client
	prefix string
}

func NewRedisOTPStore(cache *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{cache: cache, prefix: otpKeyPrefix}
}

// NewRedisTicketStore keeps signup tickets under their own key prefix.
func NewRedisTicketStore(cache *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{cache: cache, prefix: ticketKeyPrefix}
}

func (s *RedisOTPStore) Put(ctx context.Context, phone string, hash []byte, ttl time.Duration) error {
	if err := s.cache.Set(ctx, s.prefix+phone, hash, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) Get(ctx context.Context, phone string) ([]byte, error) {
	hash, err := s.cache.Get(ctx, s.prefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOTPExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}
	return hash, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, phone string) error {
	return s.cache.Del(ctx, s.prefix+phone).Err()
}
