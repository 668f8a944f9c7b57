package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/pubvault/pkg/cache"
	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/storage/kv"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/queue"
)

func createReq(title string) *types.CreatePublicationRequest {
	return &types.CreatePublicationRequest{
		PublicationFields: types.PublicationFields{
			Titulo:          title,
			Autores:         "Ana Pérez",
			Anio:            2023,
			TipoPublicacion: "Revista",
		},
		PDF: upload("paper.PDF", "%PDF"),
		Bib: upload("paper.bib", "@article{k, journal={X}}"),
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	svc := f.publications()

	p, err := svc.Create(context.Background(), createReq("  Deep Learning  "))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if p.ID == 0 || p.Title != "Deep Learning" || p.Year != 2023 {
		t.Errorf("unexpected record %+v", p)
	}

	if p.Type == nil || *p.Type != "Revista" {
		t.Errorf("type = %v", p.Type)
	}

	if *p.PDFPath != "/uploads/2023/p1-paper.pdf" || *p.BibPath != "/uploads/2023/p1-paper.bib" {
		t.Errorf("paths = %s, %s", *p.PDFPath, *p.BibPath)
	}

	if !f.exists(t, *p.PDFPath) || !f.exists(t, *p.BibPath) {
		t.Error("attachments not stored")
	}
}

func TestCreateDefaultsYear(t *testing.T) {
	f := newFixture(t)
	svc := f.publications(service.WithClock(func() time.Time {
		return time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC)
	}))

	req := createReq("t")
	req.Anio = 0

	p, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if p.Year != 2031 || !strings.HasPrefix(*p.PDFPath, "/uploads/2031/") {
		t.Errorf("year = %d, path = %s", p.Year, *p.PDFPath)
	}
}

func TestCreateTruncatesTitle(t *testing.T) {
	f := newFixture(t)
	svc := f.publications()

	long := strings.Repeat("é", 300)

	p, err := svc.Create(context.Background(), createReq(long))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if n := utf8.RuneCountInString(p.Title); n != types.MaxTitleLength {
		t.Errorf("title length = %d", n)
	}

	if !strings.HasSuffix(p.Title, types.TitleEllipsis) {
		t.Errorf("title should end with ellipsis: %q", p.Title[len(p.Title)-8:])
	}

	exact := strings.Repeat("a", types.MaxTitleLength)

	p, err = svc.Create(context.Background(), createReq(exact))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if p.Title != exact {
		t.Error("title at the limit must be stored unchanged")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.CreatePublicationRequest)
	}{
		{"empty title", func(r *types.CreatePublicationRequest) { r.Titulo = "   " }},
		{"unknown type", func(r *types.CreatePublicationRequest) { r.TipoPublicacion = "Blog" }},
		{"missing type", func(r *types.CreatePublicationRequest) { r.TipoPublicacion = "" }},
		{"missing pdf", func(r *types.CreatePublicationRequest) { r.PDF = nil }},
		{"missing bib", func(r *types.CreatePublicationRequest) { r.Bib = nil }},
		{"pdf is not a pdf", func(r *types.CreatePublicationRequest) { r.PDF = upload("paper.docx", "x") }},
		{"bib is not a bib", func(r *types.CreatePublicationRequest) { r.Bib = upload("paper.txt", "x") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := createReq("t")
			tt.mutate(req)

			_, err := f.publications().Create(context.Background(), req)
			if !errors.Is(err, types.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}

			if f.count(t) != 0 || len(f.backend.Ops()) != 0 {
				t.Errorf("nothing should be persisted, ops = %v", f.backend.Ops())
			}
		})
	}
}

func TestCreateBibFailureRollsBackPDF(t *testing.T) {
	f := newFixture(t)
	f.backend.FailWrite = func(name string) bool { return strings.HasSuffix(name, ".bib") }

	_, err := f.publications().Create(context.Background(), createReq("t"))
	if !errors.Is(err, types.ErrAttachment) {
		t.Fatalf("err = %v, want ErrAttachment", err)
	}

	if f.exists(t, "/uploads/2023/p1-paper.pdf") {
		t.Error("pdf must be removed after bib failure")
	}

	if f.count(t) != 0 {
		t.Error("no record may be inserted")
	}
}

func TestCreateInsertFailureRemovesFiles(t *testing.T) {
	// 未建表，插入必然失败
	f := newFixtureWith(t, false)

	_, err := f.publications().Create(context.Background(), createReq("t"))
	if !errors.Is(err, types.ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}

	if f.exists(t, "/uploads/2023/p1-paper.pdf") || f.exists(t, "/uploads/2023/p1-paper.bib") {
		t.Error("stored files must be removed after a failed insert")
	}
}

func TestEditReplacesPDFOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications()

	p, err := svc.Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	oldPDF, oldBib := *p.PDFPath, *p.BibPath

	got, err := svc.Edit(ctx, &types.EditPublicationRequest{
		ID:                p.ID,
		PublicationFields: types.PublicationFields{Titulo: "t2", Anio: 2023, TipoPublicacion: "nope"},
		PDF:               upload("v2.pdf", "%PDF-2"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if *got.BibPath != oldBib {
		t.Errorf("bib_path changed to %s", *got.BibPath)
	}

	if *got.PDFPath == oldPDF || !f.exists(t, *got.PDFPath) {
		t.Errorf("new pdf not stored: %s", *got.PDFPath)
	}

	if f.exists(t, oldPDF) {
		t.Error("old pdf must be deleted")
	}

	if got.Type != nil || got.Title != "t2" {
		t.Errorf("scalar fields not updated: %+v", got)
	}

	// 新文件写入先于旧文件删除
	ops := f.backend.Ops()
	write, remove := -1, -1

	for i, op := range ops {
		switch op {
		case "write 2023/p2-v2.pdf":
			write = i
		case "remove 2023/p1-paper.pdf":
			remove = i
		}
	}

	if write < 0 || remove < 0 || write > remove {
		t.Errorf("ops = %v", ops)
	}
}

func TestEditWithoutYearKeepsStoredYear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications(service.WithClock(func() time.Time {
		return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	}))

	p, err := svc.Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Edit(ctx, &types.EditPublicationRequest{
		ID:                p.ID,
		PublicationFields: types.PublicationFields{Titulo: "t2"},
		PDF:               upload("v2.pdf", "%PDF-2"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if got.Year != 2023 {
		t.Errorf("year = %d, want 2023", got.Year)
	}

	if !strings.HasPrefix(*got.PDFPath, publicBase+"/2023/") {
		t.Errorf("replacement stored under %s", *got.PDFPath)
	}
}

func TestEditStoreFailureKeepsOldFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications()

	p, err := svc.Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.backend.FailWrite = func(string) bool { return true }

	got, err := svc.Edit(ctx, &types.EditPublicationRequest{
		ID:                p.ID,
		PublicationFields: types.PublicationFields{Titulo: "renamed", Anio: 2023},
		PDF:               upload("v2.pdf", "x"),
	})
	if !errors.Is(err, types.ErrAttachment) {
		t.Fatalf("err = %v, want ErrAttachment", err)
	}

	if got == nil || got.Title != "renamed" || *got.PDFPath != *p.PDFPath {
		t.Fatalf("scalar edit should apply with old path kept: %+v", got)
	}

	if !f.exists(t, *p.PDFPath) {
		t.Error("old pdf must be kept")
	}

	stored, err := f.store.Get(ctx, p.ID)
	if err != nil || stored.Title != "renamed" {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}

func TestEditValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications()

	_, err := svc.Edit(ctx, &types.EditPublicationRequest{ID: 99, PublicationFields: types.PublicationFields{Titulo: "x"}})
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	_, err = svc.Edit(ctx, &types.EditPublicationRequest{ID: 1, PublicationFields: types.PublicationFields{Titulo: ""}})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	_, err = svc.Edit(ctx, &types.EditPublicationRequest{
		ID:                1,
		PublicationFields: types.PublicationFields{Titulo: "x"},
		Bib:               upload("refs.pdf", "x"),
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestDeleteWithMissingFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications()

	p, err := svc.Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 文件被手动删除
	_ = f.mem.Remove(storageRoot + "/2023/p1-paper.pdf")
	_ = f.mem.Remove(storageRoot + "/2023/p1-paper.bib")

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.store.Get(ctx, p.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("row still present: %v", err)
	}

	if err := svc.Delete(ctx, p.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestDeleteRemovesFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications()

	p, err := svc.Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if f.exists(t, *p.PDFPath) || f.exists(t, *p.BibPath) {
		t.Error("attachments should be deleted")
	}
}

func TestClearAndResetKeepFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.publications()

	p, err := svc.Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if f.count(t) != 0 || !f.exists(t, *p.PDFPath) {
		t.Error("clear empties the table and leaves files")
	}

	if _, err := svc.Create(ctx, createReq("t")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if f.count(t) != 0 || !f.exists(t, *p.PDFPath) {
		t.Error("reset recreates the table and leaves files")
	}
}

func TestListUsesCacheUntilMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	store, err := kv.NewMemoryKV(ctx, nil)
	if err != nil {
		t.Fatalf("kv: %v", err)
	}

	svc := f.publications(service.WithCache(cache.NewCache(store, service.CacheNamespace), time.Minute))

	if _, err := svc.Create(ctx, createReq("Graph Neural Networks")); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := types.ListPublicationsRequest{Search: "graph"}

	resp, err := svc.List(ctx, req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if resp.Total != 1 || resp.Page != 1 || resp.PageSize != types.DefaultPageSize || resp.TotalPages != 1 {
		t.Errorf("resp = %+v", resp)
	}

	// 绕过服务直接清表，缓存仍返回旧结果
	if err := f.store.Truncate(ctx); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	resp, _ = svc.List(ctx, req)
	if resp.Total != 1 {
		t.Errorf("expected cached result, got total %d", resp.Total)
	}

	// 经服务的变更使缓存失效
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	resp, _ = svc.List(ctx, req)
	if resp.Total != 0 || len(resp.Items) != 0 {
		t.Errorf("cache not invalidated: %+v", resp)
	}
}

func TestCreatePublishesEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ps.Close()

	ch, err := ps.Subscribe(ctx, queue.TopicPublicationCreated)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	f := newFixture(t)

	p, err := f.publications(service.WithPublisher(ps)).Create(ctx, createReq("t"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case msg := <-ch:
		env, err := queue.ParsePublicationChanged(msg)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		msg.Ack()

		if env.Payload.Publication.ID != p.ID || env.Payload.Publication.PDFPath != *p.PDFPath {
			t.Errorf("payload = %+v", env.Payload)
		}
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.publications().Get(context.Background(), 42); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v", err)
	}

	if got := f.publications().Types(); len(got) != 6 {
		t.Errorf("types = %v", got)
	}
}

func TestWithTypesRestrictsCreate(t *testing.T) {
	f := newFixture(t)
	svc := f.publications(service.WithTypes(types.NewTypeSet("Preprint")))

	if _, err := svc.Create(context.Background(), createReq("Paper")); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("Revista outside the custom set: err = %v", err)
	}

	req := createReq("Paper")
	req.TipoPublicacion = "Preprint"

	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
}
