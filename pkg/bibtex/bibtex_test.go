package bibtex

import (
	"errors"
	"strings"
	"testing"
)

func TestParseVenue(t *testing.T) {
	tests := []struct {
		name string
		bib  string
		want string
	}{
		{
			name: "journal braces",
			bib: `@article{smith2020,
  title = {Deep Things},
  journal = {Journal of Deep Things},
  year = {2020}
}`,
			want: "Journal of Deep Things",
		},
		{
			name: "journal quotes with nested braces",
			bib: `@article{a,
  journal = "Proceedings of the {IEEE}",
}`,
			want: "Proceedings of the IEEE",
		},
		{
			name: "multi-line value collapses whitespace",
			bib: `@article{a,
  journal = {Transactions on
             Very Long Names},
}`,
			want: "Transactions on Very Long Names",
		},
		{
			name: "booktitle fallback",
			bib: `@inproceedings{b,
  booktitle = {Congreso Nacional de Informática},
}`,
			want: "Congreso Nacional de Informática",
		},
		{
			name: "journal wins over earlier booktitle",
			bib: `@article{c,
  booktitle = {Workshop},
  JOURNAL = {Nature},
}`,
			want: "Nature",
		},
		{
			name: "escapes",
			bib: `@article{d,
  journal = {Science \& Society},
}`,
			want: "Science & Society",
		},
		{
			name: "field on entry line",
			bib:  `@article{e, journal = {Inline}, year = 2001}`,
			want: "Inline",
		},
		{
			name: "several fields on one line",
			bib: `@article{i,
  title = {X}, journal = {Y}, year = 2020,
}`,
			want: "Y",
		},
		{
			name: "booktitle then journal on one line",
			bib: `@article{j,
  booktitle = {W}, JournalTitle = "Z",
}`,
			want: "Z",
		},
		{
			name: "bare macro",
			bib: `@string{nat = "Nature"}
@article{f,
  journal = nat,
}`,
			want: "nat",
		},
		{
			name: "only first entry",
			bib: `@misc{g,
  title = {No venue},
}
@article{h,
  journal = {Second},
}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVenue(strings.NewReader(tt.bib))
			if tt.want == "" {
				if !errors.Is(err, ErrNoVenue) {
					t.Fatalf("ParseVenue() = %q, %v; want ErrNoVenue", got, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseVenue() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("ParseVenue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseVenueEmpty(t *testing.T) {
	if _, err := ParseVenue(strings.NewReader("")); !errors.Is(err, ErrNoVenue) {
		t.Fatalf("want ErrNoVenue, got %v", err)
	}
}
