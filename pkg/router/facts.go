package router

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// lb is a left word boundary that also works before non-ASCII letters.
const lb = `(?:^|[^\p{L}\p{N}])`

const (
	enRelations = `wife|husband|partner|girlfriend|boyfriend|mother|father|mom|mum|dad|sister|brother|son|daughter|grandma|grandpa|grandmother|grandfather|aunt|uncle|cousin|kids|children|family`
	deRelations = `frau|mann|freundin|freund|partnerin|partner|mutter|vater|mama|papa|schwester|bruder|sohn|tochter|oma|opa|großmutter|großvater|tante|onkel|cousine|cousin|kinder|familie`
)

// factPatterns capture self-disclosures. They run in order and each match
// contributes its whole span.
var factPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)` + lb + `((?:i am|i'm) [^.!?\n]{3,})`),
	regexp.MustCompile(`(?i)` + lb + `(my (?:` + enRelations + `)\b[^.!?\n]+)`),
	regexp.MustCompile(`(?i)` + lb + `(i (?:work|live|grew up|studied|moved|have|love|hate|play|remember) [^.!?\n]{3,})`),
	regexp.MustCompile(`(?i)` + lb + `(ich bin [^.!?\n]{3,})`),
	regexp.MustCompile(`(?i)` + lb + `(meine? (?:` + deRelations + `)(?:[^\p{L}][^.!?\n]*)?)`),
	regexp.MustCompile(`(?i)` + lb + `(ich (?:arbeite|wohne|lebe|studiere|habe|liebe|hasse|spiele|erinnere mich) [^.!?\n]{3,})`),
}

var relationWords = func() map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Split(enRelations+"|"+deRelations, "|") {
		m[w] = true
	}
	return m
}()

// folded case-folds s. Casers keep state, so each call gets its own.
func folded(s string) string {
	return cases.Fold().String(s)
}

// ExtractPersonalFacts returns the self-disclosures in text, each cut to at
// most maxLen characters. Sentences mentioning a family relation are taken
// whole. Facts contained in an earlier fact are dropped.
func ExtractPersonalFacts(text string, maxLen int) []string {
	var candidates []string
	for _, re := range factPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidates = append(candidates, m[1])
		}
	}
	for _, sentence := range sentences(text) {
		if mentionsRelation(sentence) {
			candidates = append(candidates, sentence)
		}
	}

	var facts []string
	var keys []string
	for _, c := range candidates {
		c = clipFact(c, maxLen)
		if len([]rune(c)) < 4 {
			continue
		}
		key := folded(c)
		dup := false
		for i, k := range keys {
			if strings.Contains(k, key) {
				dup = true
				break
			}
			if strings.Contains(key, k) {
				facts[i], keys[i] = c, key
				dup = true
				break
			}
		}
		if !dup {
			facts = append(facts, c)
			keys = append(keys, key)
		}
	}
	return facts
}

func sentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mentionsRelation(sentence string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if relationWords[w] {
			return true
		}
	}
	return false
}

func clipFact(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ",;: ")
	if r := []rune(s); maxLen > 0 && len(r) > maxLen {
		s = strings.TrimSpace(string(r[:maxLen]))
	}
	return s
}
