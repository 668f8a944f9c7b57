package service_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/yeisme/pubvault/pkg/internal/model"
	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

func TestCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)

	pubs := []model.Publication{
		{Title: "Uno, con coma", Authors: "A \"quoted\"", Year: 2020, Type: strp("Tesis"), PDFPath: strp("/uploads/2020/a.pdf"), BibPath: strp("/uploads/2020/a.bib")},
		{Title: "Dos\ncon salto", Year: 2021, Journal: strp("Nature")},
	}

	for i := range pubs {
		if err := src.store.Create(ctx, &pubs[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	exporter := service.NewCSVService(src.store, nil, src.opts...)

	var buf bytes.Buffer

	n, err := exporter.Export(ctx, &buf)
	if err != nil || n != 2 {
		t.Fatalf("export = %d, %v", n, err)
	}

	header, _, _ := strings.Cut(buf.String(), "\n")
	if header != strings.Join(model.Columns(), ",") {
		t.Errorf("header = %q", header)
	}

	dst := openStore(t, t.Name()+"_dst", true)

	res, err := service.NewCSVService(dst, nil, src.opts...).Import(ctx, &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.Imported != 2 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}

	want, _ := src.store.Rows(ctx)
	got, _ := dst.Rows(ctx)

	if !reflect.DeepEqual(want, got) {
		t.Errorf("rows differ\nwant %v\ngot  %v", want, got)
	}
}

func TestExportEmptyTable(t *testing.T) {
	f := newFixture(t)
	out := afero.NewMemMapFs()
	svc := service.NewCSVService(f.store, out, f.opts...)

	if _, err := svc.Export(context.Background(), &bytes.Buffer{}); !errors.Is(err, types.ErrIO) {
		t.Errorf("export err = %v, want ErrIO", err)
	}

	if _, err := svc.ExportFile(context.Background(), "/out.csv"); !errors.Is(err, types.ErrIO) {
		t.Errorf("export file err = %v, want ErrIO", err)
	}

	if ok, _ := afero.Exists(out, "/out.csv"); ok {
		t.Error("no file should be created for an empty table")
	}
}

func TestExportImportFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	out := afero.NewMemMapFs()
	svc := service.NewCSVService(f.store, out, f.opts...)

	if err := f.store.Create(ctx, &model.Publication{Title: "x", Year: 2020}); err != nil {
		t.Fatal(err)
	}

	if n, err := svc.ExportFile(ctx, "/backup.csv"); err != nil || n != 1 {
		t.Fatalf("export file = %d, %v", n, err)
	}

	if err := f.store.Truncate(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := svc.ImportFile(ctx, "/backup.csv")
	if err != nil || res.Imported != 1 {
		t.Fatalf("import file = %+v, %v", res, err)
	}

	if _, err := svc.ImportFile(ctx, "/missing.csv"); !errors.Is(err, types.ErrIO) {
		t.Errorf("missing file err = %v, want ErrIO", err)
	}
}

func TestImportMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"unknown column", "id,titulo,color\n1,x,red\n"},
		{"duplicate column", "id,titulo,titulo\n"},
		{"bad quoting", "id,titulo\n1,\"unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := service.NewCSVService(f.store, nil, f.opts...).Import(context.Background(), strings.NewReader(tt.in))
			if !errors.Is(err, types.ErrIO) {
				t.Errorf("err = %v, want ErrIO", err)
			}
		})
	}
}

func TestImportRowErrorsAndNormalization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := "\uFEFFid,titulo,anio,tipo_publicacion\n" +
		"1,Primero,2020,Blog\n" +
		"2,Segundo,no-year,Libro\n" +
		"3,Tercero\n" +
		"4,Cuarto,2022,Libro\n"

	res, err := service.NewCSVService(f.store, nil, f.opts...).Import(ctx, strings.NewReader(in))
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if res.Imported != 2 || len(res.Errors) != 2 {
		t.Fatalf("result = %+v", res)
	}

	if res.Errors[0].Item != "row 2" || res.Errors[1].Item != "row 3" {
		t.Errorf("errors = %+v", res.Errors)
	}

	p, err := f.store.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	if p.Type != nil {
		t.Errorf("unknown type should become NULL, got %q", *p.Type)
	}

	p, _ = f.store.Get(ctx, 4)
	if p == nil || p.Type == nil || *p.Type != "Libro" {
		t.Errorf("row 4 = %+v", p)
	}
}

func TestImportOverwritesExistingID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.store.Create(ctx, &model.Publication{Title: "old", Year: 2019}); err != nil {
		t.Fatal(err)
	}

	_, err := service.NewCSVService(f.store, nil, f.opts...).Import(ctx, strings.NewReader("id,titulo,anio\n1,new,2024\n"))
	if err != nil {
		t.Fatal(err)
	}

	p, err := f.store.Get(ctx, 1)
	if err != nil || p.Title != "new" || p.Year != 2024 {
		t.Errorf("record = %+v, %v", p, err)
	}

	if f.count(t) != 1 {
		t.Errorf("count = %d", f.count(t))
	}
}

func TestCreateAfterImportGetsFreshID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := service.NewCSVService(f.store, nil, f.opts...).Import(ctx, strings.NewReader("id,titulo,anio\n1,a,2020\n2,b,2021\n"))
	if err != nil || res.Imported != 2 {
		t.Fatalf("import = %+v, %v", res, err)
	}

	p, err := f.publications().Create(ctx, createReq("after restore"))
	if err != nil {
		t.Fatalf("create after import: %v", err)
	}

	if p.ID != 3 {
		t.Errorf("id = %d, want 3", p.ID)
	}

	if f.count(t) != 3 {
		t.Errorf("count = %d", f.count(t))
	}
}
