package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/04pril/minesight/internal/analysis"
)

func sampleImages() []analysis.DebugImage {
	return []analysis.DebugImage{
		{CellID: "3_4", URL: "/debug/a.png", Process: "crop"},
		{CellID: "0_0", URL: "/debug/b.png", Process: "crop"},
		{CellID: "3_4", URL: "/debug/c.png", Process: "threshold"},
		{CellID: "7_1", URL: "/debug/d.png", Process: "crop"},
		{CellID: "0_0", URL: "/debug/e.png", Process: "threshold"},
		{CellID: "3_4", URL: "/debug/f.png", Process: "digit"},
	}
}

func TestParseCellID(t *testing.T) {
	tests := []struct {
		id       string
		row, col int
		ok       bool
	}{
		{"0_0", 0, 0, true},
		{"3_4", 3, 4, true},
		{"7_7", 7, 7, true},
		{"34", 0, 0, false},
		{"a_1", 0, 0, false},
		{"1_b", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		row, col, err := ParseCellID(tt.id)
		if (err == nil) != tt.ok {
			t.Fatalf("%q: err = %v, want ok=%v", tt.id, err, tt.ok)
		}
		if tt.ok && (row != tt.row || col != tt.col) {
			t.Fatalf("%q: got (%d,%d), want (%d,%d)", tt.id, row, col, tt.row, tt.col)
		}
	}
}

func TestGroup_FirstSeenOrder(t *testing.T) {
	g := Group(sampleImages())
	want := []string{"3_4", "0_0", "7_1"}
	keys := g.Keys()
	if len(keys) != len(want) {
		t.Fatalf("keys: got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys: got %v, want %v", keys, want)
		}
	}

	cell := g.Images("3_4")
	wantURLs := []string{"/debug/a.png", "/debug/c.png", "/debug/f.png"}
	for i, u := range wantURLs {
		if cell[i].URL != u {
			t.Fatalf("3_4 image %d: got %q, want %q", i, cell[i].URL, u)
		}
	}
}

func TestGroup_NoLossNoDuplication(t *testing.T) {
	in := sampleImages()
	g := Group(in)
	if g.Len() != len(in) {
		t.Fatalf("len: got %d, want %d", g.Len(), len(in))
	}
	seen := map[string]int{}
	for _, k := range g.Keys() {
		for _, img := range g.Images(k) {
			if img.CellID != k {
				t.Fatalf("image %q filed under %q", img.URL, k)
			}
			seen[img.URL]++
		}
	}
	for _, img := range in {
		if seen[img.URL] != 1 {
			t.Fatalf("%s seen %d times", img.URL, seen[img.URL])
		}
	}
}

func TestGroup_Empty(t *testing.T) {
	g := Group(nil)
	if len(g.Keys()) != 0 || g.Len() != 0 {
		t.Fatal("empty input produced groups")
	}
	gal := NewGallery(g)
	if gal.Visible() {
		t.Fatal("empty gallery is visible")
	}
	var buf bytes.Buffer
	if err := gal.WriteHTML(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("empty gallery wrote %q", buf.String())
	}
}

func TestGallery_Sections(t *testing.T) {
	gal := NewGallery(Group(sampleImages()))
	if !gal.Visible() {
		t.Fatal("gallery hidden")
	}
	titles := []string{"Cell (row 4, col 5)", "Cell (row 1, col 1)", "Cell (row 8, col 2)"}
	for i, s := range gal.Sections {
		if s.Title != titles[i] {
			t.Fatalf("section %d title: got %q, want %q", i, s.Title, titles[i])
		}
		if s.Expanded {
			t.Fatalf("section %d starts expanded", i)
		}
	}
	if got := gal.Sections[0].Images[1].Caption; got != "threshold" {
		t.Fatalf("caption: got %q", got)
	}

	gal.Toggle(1)
	gal.Toggle(99)
	if !gal.Sections[1].Expanded || gal.Sections[0].Expanded {
		t.Fatal("toggle opened the wrong section")
	}
	gal.SetExpanded(true)
	for i, s := range gal.Sections {
		if !s.Expanded {
			t.Fatalf("section %d still collapsed", i)
		}
	}
}

func TestGallery_UnparseableID(t *testing.T) {
	gal := NewGallery(Group([]analysis.DebugImage{{CellID: "corner", URL: "x.png", Process: "p"}}))
	if got := gal.Sections[0].Title; got != "Cell corner" {
		t.Fatalf("title: got %q", got)
	}
}

func TestGallery_WriteHTML(t *testing.T) {
	imgs := append(sampleImages(), analysis.DebugImage{CellID: "1_1", URL: "/d/x.png", Process: `<script>alert(1)</script>`})
	gal := NewGallery(Group(imgs))
	gal.Toggle(0)
	var buf bytes.Buffer
	if err := gal.WriteHTML(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if n := strings.Count(out, "<details"); n != 4 {
		t.Fatalf("sections: got %d, want 4", n)
	}
	if n := strings.Count(out, "<figcaption>"); n != len(imgs) {
		t.Fatalf("captions: got %d, want %d", n, len(imgs))
	}
	if !strings.Contains(out, `<details data-cell="3_4" open>`) {
		t.Fatal("expanded section not open")
	}
	if strings.Index(out, "row 4, col 5") > strings.Index(out, "row 1, col 1") {
		t.Fatal("sections out of first-seen order")
	}
	if strings.Contains(out, "<script>") {
		t.Fatal("caption not escaped")
	}
}

func TestGallery_WriteText(t *testing.T) {
	gal := NewGallery(Group(sampleImages()))
	gal.Toggle(2)
	var buf bytes.Buffer
	if err := gal.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	want := "+ Cell (row 4, col 5) (3)\n" +
		"+ Cell (row 1, col 1) (2)\n" +
		"- Cell (row 8, col 2) (1)\n" +
		"    crop: /debug/d.png\n"
	if buf.String() != want {
		t.Fatalf("text:\n%s\nwant:\n%s", buf.String(), want)
	}
}
