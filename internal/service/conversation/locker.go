package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockRetryInterval = 25 * time.Millisecond

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// KeyLocker serializes work per key. With Redis the lock spans every relay
// process; without it the lock is process-local.
type KeyLocker struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *zap.Logger

	mutex       sync.Mutex
	memoryLocks map[string]*memoryLock
}

type memoryLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyLocker(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *KeyLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &KeyLocker{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
		memoryLocks: make(map[string]*memoryLock),
	}
}

// Lock blocks until key is held or ctx is done. The returned func releases it.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.redisClient != nil {
		unlock, err := l.lockWithRedis(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logger.Warn("Redis lock failed, falling back to memory",
			zap.String("key", key),
			zap.Error(err))
	}
	return l.lockWithMemory(ctx, key)
}

func (l *KeyLocker) lockWithRedis(ctx context.Context, key string) (func(), error) {
	redisKey := "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.redisClient.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Release must run even if the request context is already gone.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.redisClient, []string{redisKey}, token).Err(); err != nil {
					l.logger.Warn("Failed to release Redis lock",
						zap.String("key", key),
						zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *KeyLocker) lockWithMemory(ctx context.Context, key string) (func(), error) {
	l.mutex.Lock()
	lock, exists := l.memoryLocks[key]
	if !exists {
		lock = &memoryLock{sem: make(chan struct{}, 1)}
		l.memoryLocks[key] = lock
	}
	lock.refs++
	l.mutex.Unlock()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lock, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, lock, true) })
	}, nil
}

func (l *KeyLocker) release(key string, lock *memoryLock, held bool) {
	if held {
		<-lock.sem
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.memoryLocks, key)
	}
}
