package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

func TestEnrichFillsJournal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pubs := f.publications()

	withJournal := createReq("with journal")
	withJournal.Bib = upload("a.bib", "@article{a,\n  title = {T},\n  journal = {Journal of {B}iology},\n}\n")

	noVenue := createReq("no venue")
	noVenue.Bib = upload("b.bib", "@misc{b, title = {Only a title}}")

	conference := createReq("conference")
	conference.Bib = upload("c.bib", "@inproceedings{c, booktitle = \"Proc. of ICML\"}")

	var ids []uint

	for _, req := range []*types.CreatePublicationRequest{withJournal, noVenue, conference} {
		p, err := pubs.Create(ctx, req)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		ids = append(ids, p.ID)
	}

	svc := service.NewEnrichService(f.store, f.att, f.opts...)

	res, err := svc.Run(ctx, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Scanned != 3 || res.Updated != 2 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}

	want := map[uint]string{ids[0]: "Journal of Biology", ids[2]: "Proc. of ICML"}
	for id, journal := range want {
		p, _ := f.store.Get(ctx, id)
		if p.Journal == nil || *p.Journal != journal {
			t.Errorf("id %d journal = %v, want %q", id, p.Journal, journal)
		}
	}

	// 已补全的记录不再扫描
	res, err = svc.Run(ctx, 0)
	if err != nil || res.Scanned != 1 || res.Updated != 0 {
		t.Errorf("second run = %+v, %v", res, err)
	}
}

func TestEnrichMissingFileIsItemError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.publications().Create(ctx, createReq("t"))
	if err != nil {
		t.Fatal(err)
	}

	_ = f.mem.Remove(storageRoot + strings.TrimPrefix(*p.BibPath, publicBase))

	res, err := service.NewEnrichService(f.store, f.att, f.opts...).Run(ctx, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Errors) != 1 || res.Updated != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestEnrichBatchesAdvancePastUnenrichable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pubs := f.publications()

	noVenue := createReq("no venue")
	noVenue.Bib = upload("a.bib", "@misc{a, title = {T}}")

	withJournal := createReq("with journal")
	withJournal.Bib = upload("b.bib", "@article{b, journal = {J}}")

	var ids []uint

	for _, req := range []*types.CreatePublicationRequest{noVenue, withJournal} {
		p, err := pubs.Create(ctx, req)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		ids = append(ids, p.ID)
	}

	svc := service.NewEnrichService(f.store, f.att, f.opts...)

	for i := 0; i < 2; i++ {
		res, err := svc.Run(ctx, 1)
		if err != nil || res.Scanned != 1 {
			t.Fatalf("run %d = %+v, %v", i, res, err)
		}
	}

	p, _ := f.store.Get(ctx, ids[1])
	if p.Journal == nil || *p.Journal != "J" {
		t.Fatalf("id %d journal = %v after two batches of one", ids[1], p.Journal)
	}

	// 扫到末尾后游标归零，无期刊的记录在下一轮重新扫描
	res, err := svc.Run(ctx, 1)
	if err != nil || res.Scanned != 0 {
		t.Fatalf("end of pass = %+v, %v", res, err)
	}

	res, err = svc.Run(ctx, 1)
	if err != nil || res.Scanned != 1 || res.Updated != 0 {
		t.Fatalf("new pass = %+v, %v", res, err)
	}
}
