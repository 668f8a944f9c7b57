package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

func writeSource(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()

	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestImportPairsAndSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	src := afero.NewMemMapFs()
	writeSource(t, src, map[string]string{
		"/src/2021/A|Title1.pdf": "%PDF",
		"/src/2021/A|Title1.bib": "@article{k}",
		"/src/2021/B.pdf":        "%PDF",
		"/src/2021/notes.txt":    "ignored",
		"/src/misc/C.pdf":        "%PDF",
		"/src/misc/C.bib":        "@article{k}",
	})

	if err := src.MkdirAll("/src/2021/sub.pdf", 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := service.NewIngestService(f.store, f.att, f.opts...).Import(ctx, src, "/src")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.Imported != 1 || res.Skipped != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}

	rows, _, err := f.store.List(ctx, store.ListQuery{Limit: 10})
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, %v", rows, err)
	}

	p := rows[0]
	if p.Authors != "A" || p.Title != "Title1" || p.Year != 2021 {
		t.Errorf("record = %+v", p)
	}

	if p.Type != nil || p.Journal != nil {
		t.Error("import leaves tipo_publicacion and revista NULL")
	}

	if !f.exists(t, *p.PDFPath) || !f.exists(t, *p.BibPath) {
		t.Error("attachments not copied")
	}

	// PDF 与 BibTeX 共用前缀
	if strings.TrimSuffix(*p.PDFPath, ".pdf") != strings.TrimSuffix(*p.BibPath, ".bib") {
		t.Errorf("paths not correlated: %s %s", *p.PDFPath, *p.BibPath)
	}
}

func TestImportContinuesAfterFailedCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.FailWrite = func(name string) bool { return strings.Contains(name, "Broken") }

	src := afero.NewMemMapFs()
	writeSource(t, src, map[string]string{
		"/src/2020/Good.pdf":   "%PDF",
		"/src/2020/Good.bib":   "@misc{g}",
		"/src/2020/Broken.pdf": "%PDF",
		"/src/2020/Broken.bib": "@misc{b}",
		"/src/2022/Other.pdf":  "%PDF",
		"/src/2022/Other.bib":  "@misc{o}",
	})

	res, err := service.NewIngestService(f.store, f.att, append(f.opts, service.WithWorkers(4))...).Import(ctx, src, "/src")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.Imported != 2 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}

	if res.Errors[0].Item != "2020/Broken.pdf" {
		t.Errorf("error item = %q", res.Errors[0].Item)
	}

	if f.count(t) != 2 {
		t.Errorf("count = %d", f.count(t))
	}
}

func TestImportInsertFailureIsItemError(t *testing.T) {
	f := newFixtureWith(t, false)

	src := afero.NewMemMapFs()
	writeSource(t, src, map[string]string{
		"/src/2020/X.pdf": "%PDF",
		"/src/2020/X.bib": "@misc{x}",
	})

	res, err := service.NewIngestService(f.store, f.att, f.opts...).Import(context.Background(), src, "/src")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.Imported != 0 || len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Reason, types.ErrStore.Error()) {
		t.Errorf("result = %+v", res)
	}
}

func TestImportKeepsBackslashInEntryName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	src := afero.NewMemMapFs()
	writeSource(t, src, map[string]string{
		"/src/2019/Ana \\ Luis|Grafos.pdf": "%PDF",
		"/src/2019/Ana \\ Luis|Grafos.bib": "@misc{g}",
		"/src/2019/Grafos.bib":             "@misc{other}",
	})

	res, err := service.NewIngestService(f.store, f.att, f.opts...).Import(ctx, src, "/src")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.Imported != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}

	rows, _, err := f.store.List(ctx, store.ListQuery{Limit: 10})
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, %v", rows, err)
	}

	if rows[0].Authors != `Ana \ Luis` || rows[0].Title != "Grafos" {
		t.Errorf("record = %+v", rows[0])
	}
}

func TestImportMissingRoot(t *testing.T) {
	f := newFixture(t)

	_, err := service.NewIngestService(f.store, f.att, f.opts...).Import(context.Background(), afero.NewMemMapFs(), "/nope")
	if !errors.Is(err, types.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestParseAuthorTitle(t *testing.T) {
	tests := []struct {
		in, authors, title string
	}{
		{"A | Title1", "A", "Title1"},
		{"A|Title1", "A", "Title1"},
		{"  Just a title ", "", "  Just a title "},
		{"A | B | C", "A", "B | C"},
		{"Someone |  ", "Someone", "Someone |  "},
	}

	for _, tt := range tests {
		authors, title := service.ParseAuthorTitle(tt.in)
		if authors != tt.authors || title != tt.title {
			t.Errorf("ParseAuthorTitle(%q) = %q, %q", tt.in, authors, title)
		}
	}
}
