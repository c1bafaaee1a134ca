package translate

import (
	"fmt"
	"strings"
)

var languageNames = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"pt": "Portuguese",
	"ru": "Russian",
}

// LanguageName maps an ISO 639-1 code to its English name. Unknown codes are
// returned unchanged.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

func SystemPrompt(source, target string) string {
	return fmt.Sprintf(
		"You are a professional translator. Translate %s text to %s accurately and naturally. "+
			"Respond with only the translated text, no explanations.",
		LanguageName(source), LanguageName(target),
	)
}

func UserPrompt(chunk, source, target string) string {
	return fmt.Sprintf("Translate this %s text to %s:\n\n%s", LanguageName(source), LanguageName(target), chunk)
}
