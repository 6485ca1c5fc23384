package markdown

import (
	"regexp"
	"strings"
)

// IsBullet reports whether line is a top-level list item.
func IsBullet(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || line == "-" || line == "*"
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// isContinuation reports whether line continues the list item above it.
func isContinuation(line string) bool {
	return !isBlank(line) && (strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t"))
}

// bodyEnd is the index of the first sub-heading of s, or s.End.
func (d *Document) bodyEnd(s Section) int {
	end := s.End
	if end > len(d.lines) {
		end = len(d.lines)
	}
	for i := s.Start + 1; i < end; i++ {
		if headingRe.MatchString(d.lines[i]) {
			return i
		}
	}
	return end
}

// Bullets returns the indices of the top-level bullets inside s.
func (d *Document) Bullets(s Section) []int {
	var out []int
	end := d.bodyEnd(s)
	for i := s.Start + 1; i < end; i++ {
		if IsBullet(d.lines[i]) {
			out = append(out, i)
		}
	}
	return out
}

// InsertAfterPreamble adds line as a bullet of section s. It skips the
// section's introductory text, then appends after the last bullet of the
// first contiguous list so existing entries keep their order. It returns the
// index of the inserted line.
func (d *Document) InsertAfterPreamble(s Section, line string) int {
	end := d.bodyEnd(s)

	first := -1
	for i := s.Start + 1; i < end; i++ {
		if IsBullet(d.lines[i]) {
			first = i
			break
		}
	}

	if first >= 0 {
		last := first
	scan:
		for i := first; i < end; i++ {
			switch {
			case IsBullet(d.lines[i]) || isContinuation(d.lines[i]):
				last = i
			case isBlank(d.lines[i]):
			default:
				break scan
			}
		}
		d.Insert(last+1, line)
		return last + 1
	}

	// No list yet: place it after the last non-blank line of the section.
	pos := s.Start + 1
	for i := s.Start + 1; i < end; i++ {
		if !isBlank(d.lines[i]) {
			pos = i + 1
		}
	}
	block := []string{line}
	idx := pos
	if pos-1 > s.Start {
		block = append([]string{""}, block...)
		idx++
	}
	if pos < len(d.lines) && !isBlank(d.lines[pos]) {
		block = append(block, "")
	}
	d.Insert(pos, block...)
	return idx
}

func fieldPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(\s*(?:[-*]\s+)?\**` + regexp.QuoteMeta(label) + `\**\s*:\s*\**\s*)(.*?)(\s*)$`)
}

// UpdateField rewrites the value of the first "Label: value" line inside s.
// Bold variants such as "**Label:** value" are recognised. It reports
// whether a field line was found.
func (d *Document) UpdateField(s Section, label, value string) bool {
	re := fieldPattern(label)
	end := d.bodyEnd(s)
	for i := s.Start + 1; i < end; i++ {
		m := re.FindStringSubmatch(d.lines[i])
		if m == nil {
			continue
		}
		d.lines[i] = m[1] + value
		return true
	}
	return false
}

// InsertField adds a "**Label:** value" line directly under the heading of s.
func (d *Document) InsertField(s Section, label, value string) {
	d.Insert(s.Start+1, "**"+label+":** "+value)
}
