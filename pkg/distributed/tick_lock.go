package distributed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// releaseScript 소유자 확인 후 해제 (다른 인스턴스의 락을 지우지 않도록)
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TickLock 매칭 틱을 한 인스턴스만 실행하도록 보장하는 Redis 락
type TickLock struct {
	client     *redis.Client
	key        string
	instanceID string
	ttl        time.Duration
}

// NewTickLock TickLock 생성 (instanceID는 프로세스마다 고유)
func NewTickLock(client *redis.Client, key string, ttl time.Duration) *TickLock {
	return &TickLock{
		client:     client,
		key:        key,
		instanceID: uuid.New().String(),
		ttl:        ttl,
	}
}

// TryAcquire 락 획득 시도. 다른 인스턴스가 보유 중이면 ErrLockNotAcquired
func (l *TickLock) TryAcquire(ctx context.Context) error {
	// SET NX 명령으로 원자적 락 획득
	ok, err := l.client.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotAcquired
	}
	return nil
}

// Release 락 해제. 이 인스턴스가 보유한 경우에만 삭제
func (l *TickLock) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.instanceID).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}
