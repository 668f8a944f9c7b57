package kv

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/yeisme/pubvault/pkg/configs"
)

// MemoryKV 基于 sync.Map 的内存 KV 实现，过期在读取时惰性判断.
type MemoryKV struct {
	data sync.Map
	now  func() time.Time
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(context.Context, *configs.KVConfig) (KVStore, error) {
	return &MemoryKV{now: time.Now}, nil
}

func (m *MemoryKV) load(key string) ([]byte, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		return nil, false
	}

	raw, _ := value.([]byte)

	v, expired, _, err := decodeWithTTL(raw, m.now())
	if err != nil || expired {
		m.data.Delete(key)
		return nil, false
	}

	return v, true
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.load(key)
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, _, err := encodeWithTTL(value, ttl, m.now())
	if err != nil {
		return err
	}

	// encodeWithTTL 未包装时返回原切片，复制一份
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data.Store(key, stored)

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.load(key)
	return ok, nil
}

// Keys 获取匹配模式的键，模式语法同 path.Match，空模式匹配全部.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	var matchErr error

	m.data.Range(func(key, _ any) bool {
		k, ok := key.(string)
		if !ok {
			return true
		}

		if _, live := m.load(k); !live {
			return true
		}

		if pattern != "" && pattern != "*" {
			matched, err := path.Match(pattern, k)
			if err != nil {
				matchErr = err
				return false
			}

			if !matched {
				return true
			}
		}

		keys = append(keys, k)

		return true
	})

	return keys, matchErr
}

// Close 内存实现无需操作.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
