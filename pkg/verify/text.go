package verify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// plainText returns the visible text of s. Replies rendered as HTML are
// reduced to their text nodes; anything else is returned unchanged.
func plainText(s string) string {
	if !strings.Contains(s, "<") || !strings.Contains(s, ">") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				b.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// maxClaimWords caps the words a claim is matched on.
const maxClaimWords = 5

var stopwords = toSet(
	// English
	"about", "after", "again", "also", "always", "because", "been", "before", "being",
	"could", "does", "doing", "from", "have", "having", "into", "just", "know", "like",
	"mentioned", "more", "most", "much", "once", "only", "other", "really", "remember",
	"said", "should", "some", "such", "talked", "tell", "than", "that", "their", "them",
	"then", "there", "these", "they", "thing", "things", "this", "those", "time", "told",
	"very", "were", "what", "when", "where", "which", "while", "will", "with", "would",
	"your", "yours", "last",
	// German
	"aber", "alle", "auch", "dass", "deine", "deinem", "deinen", "deiner", "deines",
	"dein", "dich", "diese", "diesem", "diesen", "dieser", "doch", "eine", "einem",
	"einen", "einer", "eines", "einmal", "erinnere", "erinnerst", "erwähnt", "erzählt",
	"erzähltest", "etwas", "gesagt", "habe", "haben", "hast", "hatte", "immer", "letztes",
	"mich", "nicht", "noch", "oder", "schon", "sehr", "sein", "seine", "sind", "über",
	"unsere", "viel", "waren", "weil", "wenn", "wird", "wirklich", "wurde",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// contentWords returns up to limit distinct lowercase words of text longer
// than three characters that are not stopwords.
func contentWords(text string, limit int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var out []string
	for _, w := range fields {
		if utf8.RuneCountInString(w) <= 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == limit {
			break
		}
	}
	return out
}

// negationWindow is how many tokens after a negation marker it still
// governs.
const negationWindow = 3

var negations = toSet(
	"not", "never", "no", "stopped", "quit",
	"nicht", "nie", "niemals", "kein", "keine", "keinen", "keinem", "keiner", "aufgehört",
)

func isNegation(tok string) bool {
	return negations[tok] || strings.HasSuffix(tok, "n't")
}

// negatedWords returns the words that occur in text within negationWindow
// tokens after a negation marker. "plays guitar, never liked jazz" negates
// jazz but not guitar.
func negatedWords(text string, words []string) map[string]bool {
	tokens := strings.FieldsFunc(strings.ToLower(strings.ReplaceAll(text, "’", "'")), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := make(map[string]bool)
	last := -negationWindow - 1
	for i, tok := range tokens {
		if isNegation(tok) {
			last = i
			continue
		}
		if i-last > negationWindow {
			continue
		}
		for _, w := range words {
			if strings.Contains(tok, w) {
				out[w] = true
			}
		}
	}
	return out
}
