// Package cache 提供基于键值存储的泛型缓存实现.
//
// 所有键都落在一个命名空间下（"<namespace>:<key>"），Clear 只清理本命名空间，
// 适合"写入即整体失效"的查询结果缓存.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore, "pubs")
//
//	key := cache.Key("list", req)
//	resp, err := cache.GetOrSet(ctx, c, key, func() (Resp, error) {
//	    return loadFromDB(ctx, req)
//	}, time.Minute)
//
//	// 任意写操作后
//	_ = c.Clear(ctx)
//
// 值使用 JSON（bytedance/sonic）序列化. 缓存未命中不会被视为错误；
// nil *Cache 表示禁用缓存，GetOrSet 直接调用 getter.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/pubvault/pkg/internal/storage/kv"
)

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore   kv.KVStore
	namespace string
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore, namespace string) *Cache {
	return &Cache{
		kvStore:   kvStore,
		namespace: namespace,
	}
}

func (c *Cache) key(k string) string {
	return c.namespace + ":" + k
}

// Key 由任意可序列化的部分生成稳定的短键：name + xxhash(JSON(parts)).
func Key(name string, parts ...any) string {
	data, err := sonic.ConfigStd.Marshal(parts)
	if err != nil {
		data = fmt.Appendf(nil, "%v", parts)
	}

	return name + ":" + strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.key(key))
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.key(key))
}

// GetOrSet 获取缓存值，如果不存在则调用 getter 并写回. 写回失败不影响返回值.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if c == nil {
		return getter()
	}

	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	value, err := getter()
	if err != nil {
		var zero T
		return zero, err
	}

	_ = Set(ctx, c, key, value, ttl)

	return value, nil
}

// Clear 清空本命名空间下的键.
func (c *Cache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}

	keys, err := c.kvStore.Keys(ctx, c.namespace+":*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
