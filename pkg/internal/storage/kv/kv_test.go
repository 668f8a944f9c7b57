package kv_test

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/pubvault/pkg/configs"
	"github.com/yeisme/pubvault/pkg/internal/storage/kv"
)

func newMemory(t testing.TB) kv.KVStore {
	t.Helper()

	store, err := kv.New(context.Background(), &configs.KVConfig{Type: string(kv.KVTypeMemory)})
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	return store
}

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	value := []byte("v1")
	if err := store.Set(ctx, "pubs:list:1", value, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// 存储的是副本
	value[0] = 'x'

	got, err := store.Get(ctx, "pubs:list:1")
	if err != nil || string(got) != "v1" {
		t.Fatalf("get = %q, %v", got, err)
	}

	_ = store.Set(ctx, "pubs:list:2", []byte("v2"), 0)
	_ = store.Set(ctx, "other", []byte("v3"), 0)

	keys, err := store.Keys(ctx, "pubs:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}

	slices.Sort(keys)

	if !slices.Equal(keys, []string{"pubs:list:1", "pubs:list:2"}) {
		t.Errorf("keys = %v", keys)
	}

	if err := store.Delete(ctx, "pubs:list:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if ok, _ := store.Exists(ctx, "pubs:list:1"); ok {
		t.Error("key still exists after delete")
	}
}

func TestMemoryKVTTL(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t)

	if err := store.Set(ctx, "short", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	if got, err := store.Get(ctx, "short"); err != nil || string(got) != "v" {
		t.Fatalf("get before expiry = %q, %v", got, err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("expected expiry, got %v", err)
	}

	if keys, _ := store.Keys(ctx, "*"); len(keys) != 0 {
		t.Errorf("expired key listed: %v", keys)
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := kv.New(context.Background(), &configs.KVConfig{Type: "etcd"}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func BenchmarkMemoryKV(b *testing.B) {
	store := newMemory(b)

	benchKV(b, "memory", store)
	benchKVParallel(b, "memory", store)
	_ = store.Close()
}

// 设置 ENABLE_REDIS_BENCH=1 和 REDIS_ADDR（默认 127.0.0.1:6379）启用.
func BenchmarkRedisKV(b *testing.B) {
	if os.Getenv("ENABLE_REDIS_BENCH") == "" {
		b.Skip("set ENABLE_REDIS_BENCH=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	cfg := &configs.KVConfig{Type: string(kv.KVTypeRedis), Redis: configs.RedisKVConfig{Addr: addr}}

	store, err := kv.New(context.Background(), cfg)
	if err != nil {
		b.Skipf("redis not available: %v", err)
		return
	}

	benchKV(b, "redis", store)
	benchKVParallel(b, "redis", store)
	_ = store.Close()
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = crand.Read(b)

	return b
}

// benchKV 执行基本的 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	sizes := []int{32, 1024, 64 * 1024}
	ttls := []time.Duration{0, 5 * time.Second}

	for _, size := range sizes {
		payload := randBytes(size)
		for _, ttl := range ttls {
			b.Run(fmt.Sprintf("%s/size=%d/ttl=%s", name, size, ttl), func(b *testing.B) {
				b.ReportAllocs()

				for i := 0; b.Loop(); i++ {
					key := fmt.Sprintf("bench-%s-%d", name, i)
					if err := store.Set(ctx, key, payload, ttl); err != nil {
						b.Fatalf("set failed: %v", err)
					}

					if _, err := store.Get(ctx, key); err != nil {
						b.Fatalf("get failed: %v", err)
					}

					if err := store.Delete(ctx, key); err != nil {
						b.Fatalf("delete failed: %v", err)
					}
				}
			})
		}
	}
}

// benchKVParallel 执行并行的 Set/Get/Delete 基准测试.
func benchKVParallel(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	payload := randBytes(1024)

	var ctr uint64

	b.Run(name+"/parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				i := atomic.AddUint64(&ctr, 1)

				key := fmt.Sprintf("bench-%s-p-%d", name, i)
				if err := store.Set(ctx, key, payload, 0); err != nil {
					b.Fatalf("set failed: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get failed: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete failed: %v", err)
				}
			}
		})
	})
}
