package verify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/entrhq/soulcore/pkg/lang"
)

// ClaimType classifies an extracted claim.
type ClaimType string

const (
	ClaimRecall  ClaimType = "recall"
	ClaimDate    ClaimType = "date"
	ClaimNumeric ClaimType = "numeric"
)

// Claim is a factual assertion found in generated text. Text is the captured
// assertion, FullMatch the whole matched span including the indicator.
type Claim struct {
	Type      ClaimType `json:"type"`
	Text      string    `json:"text"`
	FullMatch string    `json:"fullMatch"`
}

type patternFamily struct {
	typ      ClaimType
	patterns map[lang.Language][]*regexp.Regexp
}

// lb is a left word boundary that also works before non-ASCII letters.
const lb = `(?:^|[^\p{L}\p{N}])`

const (
	enMonths = `january|february|march|april|may|june|july|august|september|october|november|december`
	deMonths = `januar|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember`
)

// recallBody runs to the end of the sentence. Ordinals ("am 3. Mai") and
// dotted numbers ("3.5.2023", "2.5") do not end it.
const recallBody = `(?:\b\d{1,2}\.\s|\d+(?:\.\d+)+|[^.!?\n])+`

// Families run in this order: recall, date, numeric.
var families = []patternFamily{
	{
		typ: ClaimRecall,
		patterns: map[lang.Language][]*regexp.Regexp{
			lang.English: {
				regexp.MustCompile(`(?i)` + lb + `(?:i remember(?: that)?|remember when|you told me(?: that)?|you mentioned(?: that)?|you said(?: that)?|as you said|last time|we talked about|you once)\s*,?\s*(` + recallBody + `)`),
			},
			lang.German: {
				regexp.MustCompile(`(?i)` + lb + `(?:ich erinnere mich(?:,? dass)?|erinnerst du dich(?:,? dass)?|du hast mir erzählt(?:,? dass)?|du hast (?:mir )?gesagt(?:,? dass)?|du hast erwähnt(?:,? dass)?|wie du gesagt hast|letztes mal|wir haben über|du erzähltest)\s*,?\s*(` + recallBody + `)`),
			},
		},
	},
	{
		typ: ClaimDate,
		patterns: map[lang.Language][]*regexp.Regexp{
			lang.English: {
				regexp.MustCompile(`(?i)` + lb + `((?:` + enMonths + `)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?|\d{1,2}(?:st|nd|rd|th)?\s+of\s+(?:` + enMonths + `)(?:,?\s+\d{4})?|\d{4}-\d{2}-\d{2})`),
			},
			lang.German: {
				regexp.MustCompile(`(?i)` + lb + `(\d{1,2}\.\s*(?:` + deMonths + `)(?:\s+\d{4})?|\d{1,2}\.\d{1,2}\.\d{2,4})`),
			},
		},
	},
	{
		typ: ClaimNumeric,
		patterns: map[lang.Language][]*regexp.Regexp{
			lang.English: {
				regexp.MustCompile(`(?i)` + lb + `((?:about|around|roughly|approximately|nearly|almost|over|more than|less than)\s+\d+(?:[.,]\d+)?\s*(?:%|percent|years?|months?|weeks?|days?|hours?|minutes?|times|kilometers?|km|miles?|kg|pounds?|euros?|dollars?|people))`),
				regexp.MustCompile(`(?i)` + lb + `(\d+\s+years?\s+old)`),
			},
			lang.German: {
				regexp.MustCompile(`(?i)` + lb + `((?:etwa|ungefähr|circa|ca\.|rund|fast|knapp|über|mehr als|weniger als)\s+\d+(?:[.,]\d+)?\s*(?:%|prozent|jahren|jahre|jahr|monaten|monate|wochen|woche|tagen|tage|stunden|minuten|mal|kilometer|km|kilo|kg|euro|leute|personen))`),
				regexp.MustCompile(`(?i)` + lb + `(\d+\s+jahre\s+alt)`),
			},
		},
	},
}

// folded case-folds s. Casers keep state, so each call gets its own.
func folded(s string) string {
	return cases.Fold().String(s)
}

// ExtractClaims finds recall, date and numeric claims in text using the
// patterns of every supported language. Claims are de-duplicated
// case-insensitively by their captured text; the first occurrence wins.
func ExtractClaims(text string) []Claim {
	text = plainText(text)
	seen := make(map[string]bool)
	var claims []Claim
	for _, fam := range families {
		for _, l := range lang.All() {
			for _, re := range fam.patterns[l] {
				for _, m := range re.FindAllStringSubmatch(text, -1) {
					captured := cleanCapture(m[1])
					if captured == "" {
						continue
					}
					key := folded(captured)
					if seen[key] {
						continue
					}
					seen[key] = true
					claims = append(claims, Claim{
						Type:      fam.typ,
						Text:      captured,
						FullMatch: strings.TrimSpace(m[0]),
					})
				}
			}
		}
	}
	return claims
}

func cleanCapture(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ",;:…\"'"))
}

var indicators = map[lang.Language][]string{
	lang.English: {
		"i remember", "remember when", "you told me", "you mentioned", "you said",
		"as you said", "last time", "we talked about", "you once",
	},
	lang.German: {
		"ich erinnere mich", "erinnerst du dich", "du hast mir erzählt", "du hast gesagt",
		"du hast mir gesagt", "du hast erwähnt", "wie du gesagt hast", "letztes mal",
		"wir haben über", "du erzähltest",
	},
}

// HasMemoryReference reports whether text contains a phrase that signals the
// speaker is drawing on memory. Text without one is never verified.
func HasMemoryReference(text string) bool {
	lower := strings.ToLower(plainText(text))
	for _, l := range lang.All() {
		for _, phrase := range indicators[l] {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}
