package enums

import "fmt"

// Language is a user's preferred UI language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageGreek   Language = "el"
	LanguageGerman  Language = "de"
)

var validLanguages = []Language{
	LanguageEnglish,
	LanguageGreek,
	LanguageGerman,
}

func (l Language) String() string {
	return string(l)
}

func (l Language) IsValid() bool {
	for _, candidate := range validLanguages {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLanguage converts raw input into a Language; empty input defaults to English.
func ParseLanguage(value string) (Language, error) {
	if value == "" {
		return LanguageEnglish, nil
	}
	for _, candidate := range validLanguages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid language %q", value)
}
