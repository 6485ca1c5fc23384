package router

import (
	"context"
	"path"
	"strings"
	"unicode"

	"github.com/entrhq/soulcore/pkg/lang"
)

var transliterations = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Slug turns a subject name into the base name of its relationship file:
// "Anna Müller" becomes "anna-mueller".
func Slug(name string) string {
	s := transliterations.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	dash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// findRelationshipFile locates the relationship file for slug. An exact
// "<slug>.md" wins over a surname match such as "<slug>-schmidt.md"; the
// configured language's directory is searched first. "ann" never matches
// "anna.md".
func (r *Router) findRelationshipFile(ctx context.Context, slug string) (string, lang.Table, bool) {
	if slug == "" {
		return "", lang.Table{}, false
	}
	for _, l := range r.languages() {
		tbl := l.Table()
		p := path.Join(tbl.RelationshipsDir, slug+".md")
		if r.files.Exists(ctx, p) {
			return p, tbl, true
		}
	}
	for _, l := range r.languages() {
		tbl := l.Table()
		matches, err := r.files.Glob(ctx, tbl.RelationshipsDir, slug+"-*.md")
		if err != nil {
			r.logger.Warnf("failed to search %s: %v", tbl.RelationshipsDir, err)
			continue
		}
		if len(matches) > 0 {
			return matches[0], tbl, true
		}
	}
	return "", lang.Table{}, false
}
