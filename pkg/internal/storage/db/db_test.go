package db

import (
	"context"
	"slices"
	"testing"

	"github.com/yeisme/pubvault/pkg/configs"
)

func TestRegisteredDBTypes(t *testing.T) {
	got := GetRegisteredDBTypes()

	for _, want := range []configs.DBType{configs.SQLite, configs.MySQL, configs.PostgreSQL, configs.Pg} {
		if !slices.Contains(got, want) {
			t.Errorf("dialector %q not registered, got %v", want, got)
		}
	}
}

func TestNewSQLiteMemory(t *testing.T) {
	cfg := configs.DBConfig{
		Type:         configs.SQLite,
		Database:     "memtest",
		DSN:          "file:dbtest?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}

	client, err := New(context.Background(), cfg, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	if client.Config().Database != "memtest" {
		t.Fatalf("Config() = %+v", client.Config())
	}
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := New(context.Background(), configs.DBConfig{Type: "oracle", DSN: "x"}, false)
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
