package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
)

type Purpose string

const (
	PurposeRegister Purpose = "register"
	PurposeLogin    Purpose = "login"
)

// CodeStore keeps one pending one-time code per purpose and phone.
type CodeStore interface {
	Save(ctx context.Context, purpose Purpose, phone, code string, ttl time.Duration) error
	Check(ctx context.Context, purpose Purpose, phone, code string) (bool, error)
	Consume(ctx context.Context, purpose Purpose, phone, code string) (bool, error)
}

// consumeScript deletes the key only when it holds the expected code, so a
// wrong guess leaves the pending code usable.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func codeKey(purpose Purpose, phone string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, phone)
}

// Save replaces any pending code for the same purpose and phone.
func (s *RedisCodeStore) Save(ctx context.Context, purpose Purpose, phone, code string, ttl time.Duration) error {
	return s.client.Set(ctx, codeKey(purpose, phone), code, ttl).Err()
}

func (s *RedisCodeStore) Check(ctx context.Context, purpose Purpose, phone, code string) (bool, error) {
	stored, err := s.client.Get(ctx, codeKey(purpose, phone)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return stored == code, nil
}

func (s *RedisCodeStore) Consume(ctx context.Context, purpose Purpose, phone, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{codeKey(purpose, phone)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// generateCode returns a random 6 digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
