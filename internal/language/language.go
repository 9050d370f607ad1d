package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Supported content languages.
const (
	English = "en"
	Hindi   = "hi"
)

type entry struct {
	code    string
	display string
	tag     language.Tag
}

var supported = []entry{
	{English, "English", language.English},
	{Hindi, "Hindi", language.Hindi},
}

// hindiMarkers flag romanized or mixed text that is still Hindi content.
var hindiMarkers = []string{"योजना"}

func lookup(code string) *entry {
	code = Normalize(code)
	for i := range supported {
		if supported[i].code == code {
			return &supported[i]
		}
	}
	return nil
}

// Normalize returns the ISO 639-1 base of a language code or BCP 47 tag.
// "hi-IN", "HIN", and "hindi" all normalize to "hi". Unparseable input
// returns the trimmed lowercase value.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	for _, e := range supported {
		if strings.EqualFold(code, e.display) {
			return e.code
		}
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return code
	}
	return base.String()
}

// Supported reports whether content can be generated in the language.
func Supported(code string) bool {
	return lookup(code) != nil
}

// Tag returns the BCP 47 tag for a supported language, or language.Und.
func Tag(code string) language.Tag {
	if e := lookup(code); e != nil {
		return e.tag
	}
	return language.Und
}

// DisplayName returns a human-readable name for a supported language.
// Returns "Unknown" for empty input, or the uppercased code otherwise.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Detect guesses the language of extracted text: any Devanagari letter or a
// known Hindi marker word yields Hindi, everything else English.
func Detect(text string) string {
	for _, marker := range hindiMarkers {
		if strings.Contains(text, marker) {
			return Hindi
		}
	}
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return Hindi
		}
	}
	return English
}

// NormalizeList deduplicates and normalizes a list of language codes.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		code := Normalize(lang)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	return normalized
}
