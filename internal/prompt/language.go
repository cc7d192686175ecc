package prompt

import (
	"fmt"
	"strings"
)

// Language is the language every text value of a generated plan is written in.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// languageRules is the instruction block injected into the system prompt for
// a language. Adding a language is a new entry in languages.
type languageRules struct {
	Name        string
	Instruction string
}

var languages = map[Language]languageRules{
	English: {
		Name:        "English",
		Instruction: "Write every text value in clear, simple English.",
	},
	Arabic: {
		Name: "Arabic",
		Instruction: "Every textual field of the JSON output MUST be written in Arabic. " +
			"This covers meal names, ingredient names and quantities, instruction steps, alternatives, " +
			"workout names, exercise names, exercise instructions and descriptions, target muscles, equipment, " +
			"notes, progression notes and safety tips. Do not leave any of these values in English and do not " +
			"add transliterations. The client reads these strings exactly as written, with no translation step. " +
			"Keep JSON keys, weekday keys and enum values (breakfast, lunch, dinner, snack) in English, and write " +
			"numbers with Western digits.",
	},
}

// ParseLanguage maps a language code onto a supported Language. An empty
// string selects English.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return English, nil
	}
	if _, ok := languages[l]; !ok {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

// rulesFor falls back to English for an unknown language so prompt building
// stays infallible.
func rulesFor(l Language) languageRules {
	if r, ok := languages[l]; ok {
		return r
	}
	return languages[English]
}
