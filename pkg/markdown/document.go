// Package markdown performs line-level edits on markdown documents: locating
// heading sections, inserting bullets and rewriting field lines while
// leaving everything else byte-for-byte intact.
package markdown

import (
	"regexp"
	"strings"
)

// Section is a heading and the lines that belong to it. End is exclusive and
// points at the next heading of the same or a higher level, or the end of
// the document.
type Section struct {
	Title string
	Level int
	Start int
	End   int
}

// Document is a markdown file split into lines.
type Document struct {
	lines           []string
	trailingNewline bool
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// Parse splits content into a Document.
func Parse(content string) *Document {
	d := &Document{trailingNewline: content == "" || strings.HasSuffix(content, "\n")}
	content = strings.TrimSuffix(content, "\n")
	if content != "" {
		d.lines = strings.Split(content, "\n")
	}
	return d
}

// String renders the document, keeping the original trailing newline state.
// Documents created from nothing end with a newline.
func (d *Document) String() string {
	if len(d.lines) == 0 {
		return ""
	}
	out := strings.Join(d.lines, "\n")
	if d.trailingNewline {
		out += "\n"
	}
	return out
}

// Lines returns the current lines. The slice must not be modified.
func (d *Document) Lines() []string {
	return d.lines
}

// Len returns the number of lines.
func (d *Document) Len() int {
	return len(d.lines)
}

// headingAt reports the level and title of line i if it is a heading.
func (d *Document) headingAt(i int, fenced bool) (int, string, bool) {
	if fenced {
		return 0, "", false
	}
	m := headingRe.FindStringSubmatch(d.lines[i])
	if m == nil {
		return 0, "", false
	}
	return len(m[1]), m[2], true
}

func isFence(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// Sections returns every heading section in document order.
func (d *Document) Sections() []Section {
	var out []Section
	fenced := false
	for i := range d.lines {
		if isFence(d.lines[i]) {
			fenced = !fenced
			continue
		}
		if level, title, ok := d.headingAt(i, fenced); ok {
			out = append(out, Section{Title: title, Level: level, Start: i})
		}
	}
	for i := range out {
		out[i].End = len(d.lines)
		for j := i + 1; j < len(out); j++ {
			if out[j].Level <= out[i].Level {
				out[i].End = out[j].Start
				break
			}
		}
	}
	return out
}

// normalizeTitle strips leading hashes, emphasis and case so that
// "## Suggested Interests" and "suggested interests" compare equal.
func normalizeTitle(s string) string {
	s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "#"))
	s = strings.Trim(s, "*_ ")
	return strings.ToLower(s)
}

// FindSection locates the first heading whose title matches title. The title
// may be given with or without its leading hashes.
func (d *Document) FindSection(title string) (Section, bool) {
	want := normalizeTitle(title)
	for _, s := range d.Sections() {
		if normalizeTitle(s.Title) == want {
			return s, true
		}
	}
	return Section{}, false
}

// FindSectionLevel is FindSection restricted to heading levels min..max.
func (d *Document) FindSectionLevel(title string, min, max int) (Section, bool) {
	want := normalizeTitle(title)
	for _, s := range d.Sections() {
		if s.Level >= min && s.Level <= max && normalizeTitle(s.Title) == want {
			return s, true
		}
	}
	return Section{}, false
}

// Insert places lines before index i. i == Len() appends.
func (d *Document) Insert(i int, lines ...string) {
	if i < 0 {
		i = 0
	}
	if i > len(d.lines) {
		i = len(d.lines)
	}
	out := make([]string, 0, len(d.lines)+len(lines))
	out = append(out, d.lines[:i]...)
	out = append(out, lines...)
	out = append(out, d.lines[i:]...)
	d.lines = out
}

// Replace overwrites line i.
func (d *Document) Replace(i int, line string) {
	d.lines[i] = line
}

// EnsureSection returns the section titled heading, creating it when absent.
// A new section goes directly before the section titled before (if given and
// present) or at the end of the document, followed by preamble lines.
func (d *Document) EnsureSection(heading, before string, preamble ...string) Section {
	if s, ok := d.FindSection(heading); ok {
		return s
	}

	block := []string{heading}
	if len(preamble) > 0 {
		block = append(block, "")
		block = append(block, preamble...)
	}

	at := len(d.lines)
	if before != "" {
		if s, ok := d.FindSection(before); ok {
			at = s.Start
			block = append(block, "")
		}
	}
	if at > 0 && strings.TrimSpace(d.lines[at-1]) != "" {
		block = append([]string{""}, block...)
	}
	d.Insert(at, block...)

	s, _ := d.FindSection(heading)
	return s
}
