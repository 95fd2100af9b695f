package trace

import (
	"fmt"
	"html/template"
	"io"
)

// Section is one collapsible cell entry of the gallery.
type Section struct {
	CellID   string
	Title    string
	Images   []Item
	Expanded bool
}

// Item is a debug image with its processing-stage caption. URL is opaque and
// is never fetched here.
type Item struct {
	URL     string
	Caption string
}

// Gallery is the collapsible, cell-indexed view of a debug trace.
type Gallery struct {
	Sections []*Section
}

// NewGallery builds one collapsed section per cell, in grouping order.
func NewGallery(g *Grouping) *Gallery {
	gal := &Gallery{}
	for _, id := range g.Keys() {
		sec := &Section{CellID: id, Title: sectionTitle(id)}
		for _, img := range g.Images(id) {
			sec.Images = append(sec.Images, Item{URL: img.URL, Caption: img.Process})
		}
		gal.Sections = append(gal.Sections, sec)
	}
	return gal
}

// Visible is false when there is nothing to show; the container is hidden then.
func (g *Gallery) Visible() bool {
	return g != nil && len(g.Sections) > 0
}

// Toggle flips section i open or closed. Out-of-range indexes are ignored.
func (g *Gallery) Toggle(i int) {
	if g == nil || i < 0 || i >= len(g.Sections) {
		return
	}
	g.Sections[i].Expanded = !g.Sections[i].Expanded
}

// SetExpanded opens or closes every section.
func (g *Gallery) SetExpanded(open bool) {
	if g == nil {
		return
	}
	for _, s := range g.Sections {
		s.Expanded = open
	}
}

func sectionTitle(id string) string {
	row, col, err := ParseCellID(id)
	if err != nil {
		return "Cell " + id
	}
	return fmt.Sprintf("Cell (row %d, col %d)", row+1, col+1)
}

var galleryTmpl = template.Must(template.New("gallery").Parse(`<div class="debug-gallery">
{{- range .Sections}}
<details data-cell="{{.CellID}}"{{if .Expanded}} open{{end}}>
<summary>{{.Title}} <span class="count">({{len .Images}})</span></summary>
{{- range .Images}}
<figure><img src="{{.URL}}" alt="{{.Caption}}" loading="lazy"><figcaption>{{.Caption}}</figcaption></figure>
{{- end}}
</details>
{{- end}}
</div>
`))

// WriteHTML renders the gallery as <details> sections. An invisible gallery
// writes nothing.
func (g *Gallery) WriteHTML(w io.Writer) error {
	if !g.Visible() {
		return nil
	}
	return galleryTmpl.Execute(w, g)
}

// WriteText renders an indented listing; collapsed sections show only their
// header.
func (g *Gallery) WriteText(w io.Writer) error {
	if !g.Visible() {
		return nil
	}
	for _, s := range g.Sections {
		marker := "+"
		if s.Expanded {
			marker = "-"
		}
		if _, err := fmt.Fprintf(w, "%s %s (%d)\n", marker, s.Title, len(s.Images)); err != nil {
			return err
		}
		if !s.Expanded {
			continue
		}
		for _, it := range s.Images {
			if _, err := fmt.Fprintf(w, "    %s: %s\n", it.Caption, it.URL); err != nil {
				return err
			}
		}
	}
	return nil
}
