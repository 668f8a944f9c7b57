package storage

import (
	"context"
	"testing"

	"github.com/yeisme/pubvault/pkg/configs"
	"github.com/yeisme/pubvault/pkg/internal/storage/files"
)

func TestNewLocalDefaults(t *testing.T) {
	cfg := configs.Defaults()
	cfg.DB.DSN = "file:storagetest?mode=memory&cache=shared"
	cfg.DB.MaxOpenConns = 1
	cfg.Attachments.Root = t.TempDir()

	ctx := context.Background()

	mgr, err := New(ctx, &cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := mgr.Files.(*files.AferoBackend); !ok {
		t.Fatalf("Files = %T, want *files.AferoBackend", mgr.Files)
	}

	if mgr.S3 != nil {
		t.Fatal("S3 client should not be created for the local backend")
	}

	if mgr.KV == nil || mgr.MQ == nil {
		t.Fatalf("cache and events are enabled by default: kv=%v mq=%v", mgr.KV, mgr.MQ)
	}

	if err := mgr.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewDisabledOptional(t *testing.T) {
	cfg := configs.Defaults()
	cfg.DB.DSN = "file:storagetest2?mode=memory&cache=shared"
	cfg.Attachments.Root = t.TempDir()
	cfg.Cache.Enabled = false
	cfg.Events.Enabled = false

	mgr, err := New(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer mgr.Close()

	if mgr.KV != nil || mgr.MQ != nil {
		t.Fatal("kv and mq should be nil when disabled")
	}
}
