package mask

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// Joiner is the multi-line token placed between segments of one request,
// and the tolerant pattern used to split the translator's answer.
type Joiner struct {
	Sep     string
	Pattern *regexp.Regexp
}

var (
	// DefaultJoiner is used for most target languages.
	DefaultJoiner = Joiner{
		Sep:     "\n[_]\n",
		Pattern: regexp.MustCompile(`\n *\[ *_ *\] *\n`),
	}
	// HashJoiner is used where translators mangle the bracket form.
	HashJoiner = Joiner{
		Sep:     "\n###\n",
		Pattern: regexp.MustCompile(`\n *# *# *# *\n`),
	}
)

// hashJoinerLangs lists base languages that get HashJoiner.
var hashJoinerLangs = []language.Base{
	language.MustParseBase("te"),
}

// JoinerFor returns the joiner for a target language code such as "te",
// "te-IN" or "pt_BR".
func JoinerFor(lang string) Joiner {
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return DefaultJoiner
	}
	base, _ := tag.Base()
	for _, b := range hashJoinerLangs {
		if base == b {
			return HashJoiner
		}
	}
	return DefaultJoiner
}

// Join concatenates parts with the separator.
func (j Joiner) Join(parts []string) string {
	return strings.Join(parts, j.Sep)
}

// Split cuts s on the exact separator. When that does not give want parts
// (or want <= 0) the tolerant pattern is used instead.
func (j Joiner) Split(s string, want int) []string {
	if want > 0 {
		if parts := strings.Split(s, j.Sep); len(parts) == want {
			return parts
		}
	}
	return j.Pattern.Split(s, -1)
}

// Contains reports whether s holds the exact separator.
func (j Joiner) Contains(s string) bool {
	return strings.Contains(s, j.Sep)
}
