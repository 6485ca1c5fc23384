// Package lang holds the per-language vocabulary of a soul directory:
// file names, section headings and the user-facing disclaimer.
package lang

import (
	"fmt"
	"strings"
)

// Language identifies one of the two supported soul languages.
type Language string

const (
	English Language = "en"
	German  Language = "de"
)

// Default is used when no language is configured.
const Default = English

// Table is the language-specific vocabulary used when reading and writing
// soul documents.
type Table struct {
	InterestsFile      string
	RelationshipsDir   string
	MemoriesDir        string
	SuggestedInterests string
	DormantInterests   string
	PersonalNotes      string
	PersonalPreamble   string
	LastChecked        string
	Suggested          string
	Disclaimer         string
}

var tables = map[Language]Table{
	English: {
		InterestsFile:      "INTERESTS.md",
		RelationshipsDir:   "relationships",
		MemoriesDir:        "memories",
		SuggestedInterests: "## Suggested Interests",
		DormantInterests:   "## Dormant Interests",
		PersonalNotes:      "## Personal Notes",
		PersonalPreamble:   "_Facts shared in conversation._",
		LastChecked:        "Last checked",
		Suggested:          "suggested",
		Disclaimer:         "(Note: I'm not entirely sure about some of these memories. Please correct me if I'm wrong.)",
	},
	German: {
		InterestsFile:      "INTERESSEN.md",
		RelationshipsDir:   "beziehungen",
		MemoriesDir:        "erinnerungen",
		SuggestedInterests: "## Vorgeschlagene Interessen",
		DormantInterests:   "## Ruhende Interessen",
		PersonalNotes:      "## Persönliche Notizen",
		PersonalPreamble:   "_Im Gespräch geteilte Fakten._",
		LastChecked:        "Zuletzt geprüft",
		Suggested:          "vorgeschlagen",
		Disclaimer:         "(Hinweis: Bei einigen dieser Erinnerungen bin ich mir nicht ganz sicher. Korrigiere mich bitte, falls ich falsch liege.)",
	},
}

// Parse converts a configuration value into a Language. The empty string
// yields Default.
func Parse(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Default, nil
	case English:
		return English, nil
	case German:
		return German, nil
	}
	return "", fmt.Errorf("unsupported language %q (want de or en)", s)
}

// All returns every supported language, English first.
func All() []Language {
	return []Language{English, German}
}

// Table returns the vocabulary for l. Unknown languages get the Default table.
func (l Language) Table() Table {
	if t, ok := tables[l]; ok {
		return t
	}
	return tables[Default]
}

// Other returns the second supported language.
func (l Language) Other() Language {
	if l == German {
		return English
	}
	return German
}

func (l Language) String() string {
	return string(l)
}
