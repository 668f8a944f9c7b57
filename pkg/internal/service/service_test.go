package service_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/pubvault/pkg/internal/attachment"
	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/storage/files/filestest"
	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

const (
	storageRoot = "/data"
	publicBase  = "/uploads"
)

type fixture struct {
	store   *store.PublicationStore
	backend *filestest.Backend
	mem     afero.Fs
	att     *attachment.Manager
	opts    []service.Option
}

func openStore(t *testing.T, name string, migrate bool) *store.PublicationStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(name, "/", "_"))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := store.NewPublicationStore(gdb)
	if migrate {
		if err := s.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	return s
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, true)
}

func newFixtureWith(t *testing.T, migrate bool) *fixture {
	t.Helper()

	b, mem := filestest.New(storageRoot)

	var seq atomic.Int64

	nop := zerolog.Nop()

	return &fixture{
		store:   openStore(t, t.Name(), migrate),
		backend: b,
		mem:     mem,
		att:     attachment.NewManager(b, publicBase),
		opts: []service.Option{
			service.WithLogger(&nop),
			service.WithPrefixFunc(func() string { return fmt.Sprintf("p%d-", seq.Add(1)) }),
		},
	}
}

func (f *fixture) publications(extra ...service.Option) *service.PublicationService {
	return service.NewPublicationService(f.store, f.att, append(f.opts, extra...)...)
}

// exists 公开路径对应的文件是否在存储中.
func (f *fixture) exists(t *testing.T, publicPath string) bool {
	t.Helper()

	ok, err := afero.Exists(f.mem, storageRoot+strings.TrimPrefix(publicPath, publicBase))
	if err != nil {
		t.Fatalf("exists %s: %v", publicPath, err)
	}

	return ok
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()

	n, err := f.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	return n
}

func upload(name, content string) *types.FileSource {
	return &types.FileSource{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func strp(s string) *string { return &s }
