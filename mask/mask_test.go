package mask

import (
	"regexp"
	"strings"
	"testing"
)

var placeholder = MustRegexp(`\{\{.+?}}`)

func TestParseRule(t *testing.T) {
	r, err := ParseRule(`/\{\{.+?}}/g`)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if !r.Match("Hello {{name}}") {
		t.Fatal("regexp rule should match placeholder")
	}

	ci, err := ParseRule(`/^ok$/i`)
	if err != nil {
		t.Fatalf("ParseRule(/^ok$/i): %v", err)
	}
	if !ci.Match("OK") {
		t.Fatal("i flag not applied")
	}

	ex, _ := ParseRule("Brand")
	if !ex.Match("Brand") || ex.Match("Brand name") {
		t.Fatal("exact rule should only match equal strings")
	}

	if _, err := ParseRule(`/x/q`); err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if _, err := ParseRule(`/(/`); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if r, _ := ParseRule("/"); r.Match("x") || !r.Match("/") {
		t.Fatal("lone slash should be an exact rule")
	}
}

func TestRuleLocate(t *testing.T) {
	got := Exact("ab").Locate("ab-ab-a")
	if len(got) != 2 || got[0] != [2]int{0, 2} || got[1] != [2]int{3, 5} {
		t.Fatalf("Exact.Locate = %v", got)
	}
	if got := Exact("").Locate("abc"); got != nil {
		t.Fatalf("empty exact rule located %v", got)
	}
	fn := Func("short", func(s string) bool { return len(s) < 4 })
	if got := fn.Locate("abc"); len(got) != 1 || got[0] != [2]int{0, 3} {
		t.Fatalf("Func.Locate = %v", got)
	}
}

func TestJoinerFor(t *testing.T) {
	cases := map[string]string{
		"te":    HashJoiner.Sep,
		"te-IN": HashJoiner.Sep,
		"te_IN": HashJoiner.Sep,
		"ru":    DefaultJoiner.Sep,
		"zh-CN": DefaultJoiner.Sep,
		"???":   DefaultJoiner.Sep,
	}
	for lang, want := range cases {
		if got := JoinerFor(lang).Sep; got != want {
			t.Errorf("JoinerFor(%q).Sep = %q, want %q", lang, got, want)
		}
	}
}

func TestJoinerSplitTolerant(t *testing.T) {
	got := DefaultJoiner.Split("one\n [ _ ] \ntwo\n[_]\nthree", 3)
	if len(got) != 3 || got[1] != "two" {
		t.Fatalf("Split = %q", got)
	}
	got = HashJoiner.Split("a\n# ## \nb", 2)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("HashJoiner.Split = %q", got)
	}
}

func TestMaskReservesPlaceholders(t *testing.T) {
	c := Codec{Reserve: []Rule{placeholder}}
	masked, rec := c.Mask("Hello {{name}}, you have {{count}} messages")

	if strings.Contains(masked, "{{") {
		t.Fatalf("placeholder leaked: %q", masked)
	}
	if len(rec.Tokens()) != 2 {
		t.Fatalf("tokens = %d, want 2", len(rec.Tokens()))
	}
	if want := "Hello A0R0Z0A0R1Z0A0R2Z, you have A0R0Z0A0R1Z1A0R2Z messages"; masked != want {
		t.Fatalf("masked = %q, want %q", masked, want)
	}

	upper := strings.ToUpper(masked)
	if got := c.Unmask(upper, rec); got != "HELLO {{name}}, YOU HAVE {{count}} MESSAGES" {
		t.Fatalf("Unmask(upper) = %q", got)
	}
}

func TestMaskSaltAvoidsCollision(t *testing.T) {
	c := Codec{Reserve: []Rule{placeholder}}
	leaf := "literal A0R0Z0A0R1Z0A0R2Z and {{x}}"
	masked, rec := c.Mask(leaf)
	if !strings.Contains(masked, "A1R0Z0A1R1Z0A1R2Z") {
		t.Fatalf("expected salted token, got %q", masked)
	}
	if got := c.Unmask(masked, rec); got != leaf {
		t.Fatalf("round trip = %q, want %q", got, leaf)
	}
}

func TestMaskExcludesSegments(t *testing.T) {
	c := Codec{
		Exclude: []Rule{Exact("KEEP ME")},
		Reserve: []Rule{placeholder},
	}
	leaf := "first {{a}}\n[_]\nKEEP ME\n[_]\n\n[_]\nlast"
	masked, rec := c.Mask(leaf)

	want := "first A0R0Z0A0R1Z0A0R2Z\n[_]\n-\n[_]\n\n[_]\nlast"
	if masked != want {
		t.Fatalf("masked = %q, want %q", masked, want)
	}
	if rec.Segments() != 4 || rec.Excluded()[1] != "KEEP ME" {
		t.Fatalf("record = segments %d excluded %v", rec.Segments(), rec.Excluded())
	}

	// The translator rewrote the sentinel and the joiner spacing.
	translated := "PREMIER A0R0Z0A0R1Z0A0R2Z\n [_]\nTIRET\n[_]\n\n[_]\nDERNIER"
	got := c.Unmask(translated, rec)
	if got != "PREMIER {{a}}\n[_]\nKEEP ME\n[_]\n\n[_]\nDERNIER" {
		t.Fatalf("Unmask = %q", got)
	}
}

func TestMaskOverlapEarlierRuleWins(t *testing.T) {
	c := Codec{Reserve: []Rule{
		MustRegexp(`\{\{.+?}}`),
		Exact("name"),
		Exact("Hi"),
	}}
	masked, rec := c.Mask("Hi {{name}} name")
	if len(rec.Tokens()) != 3 {
		t.Fatalf("tokens = %v", rec.Tokens())
	}
	if rec.Tokens()[1].Original != "{{name}}" {
		t.Fatalf("second token = %#v", rec.Tokens()[1])
	}
	if got := c.Unmask(masked, rec); got != "Hi {{name}} name" {
		t.Fatalf("round trip = %q", got)
	}
}

func TestMissingTokens(t *testing.T) {
	c := Codec{Reserve: []Rule{placeholder}}
	_, rec := c.Mask("{{a}} {{b}}")
	missing := rec.Missing("A0R0Z0A0R1Z0A0R2Z only")
	if len(missing) != 1 || missing[0].Original != "{{b}}" {
		t.Fatalf("Missing = %v", missing)
	}
}

func TestBypass(t *testing.T) {
	c := Codec{CopyThrough: []Rule{Exact("GitHub"), MustRegexp(`^https?://`)}}
	if !c.Bypass("GitHub") || !c.Bypass("https://example.com") {
		t.Fatal("Bypass should match copy-through rules")
	}
	if c.Bypass("Visit GitHub") {
		t.Fatal("exact copy-through must match the whole leaf")
	}
}

// Identity translation must always give back the original leaf.
func TestMaskRoundTripIdentity(t *testing.T) {
	rules := [][]Rule{
		nil,
		{placeholder},
		{placeholder, Exact("%s"), MustRegexp(`\d+`)},
		{Func("all", func(string) bool { return true })},
	}
	excludes := [][]Rule{
		nil,
		{placeholder},
		{Exact("x"), Func("long", func(s string) bool { return len(s) > 20 })},
	}
	leaves := []string{
		"",
		"plain",
		"Hello {{name}}",
		"{{a}}{{b}}{{c}}",
		"x\n[_]\ny {{z}} 42\n[_]\n",
		"\n[_]\n\n[_]\n",
		"A0R0Z A1R0Z {{q}} %s %s 7",
		"a long segment that exceeds twenty bytes\n[_]\nshort %s",
		"line\nbreaks [_] almost\n [_]\nseparators",
		"unicode: привет {{имя}} 你好 %s",
	}

	for _, res := range rules {
		for _, exc := range excludes {
			c := Codec{Reserve: res, Exclude: exc}
			for _, leaf := range leaves {
				masked, rec := c.Mask(leaf)
				if got := c.Unmask(masked, rec); got != leaf {
					t.Fatalf("round trip mismatch for %q (reserve=%d exclude=%d): got %q", leaf, len(res), len(exc), got)
				}
			}
		}
	}
}

func TestHashJoinerCodec(t *testing.T) {
	c := Codec{Joiner: JoinerFor("te"), Exclude: []Rule{Exact("skip")}}
	masked, rec := c.Mask("a\n###\nskip")
	if masked != "a\n###\n-" {
		t.Fatalf("masked = %q", masked)
	}
	if got := c.Unmask("A\n # ## \nX", rec); got != "A\n###\nskip" {
		t.Fatalf("Unmask = %q", got)
	}
}

func TestRegexpRuleIgnoresEmptyMatches(t *testing.T) {
	r := Regexp(regexp.MustCompile(`x*`))
	if got := r.Locate("abc"); len(got) != 0 {
		t.Fatalf("Locate with empty matches = %v", got)
	}
}

func TestUntranslatable(t *testing.T) {
	c := Codec{
		CopyThrough: []Rule{Exact("GitHub")},
		Exclude:     []Rule{placeholder},
	}
	cases := map[string]bool{
		"":                          true,
		"  \n ":                     true,
		"GitHub":                    true,
		"{{only}}":                  true,
		"{{a}}\n[_]\n\n[_]\n{{b}}":  true,
		"{{a}}\n[_]\ntranslate me":  false,
		"Hello {{name}}":            true,
		"Hello":                     false,
	}
	for leaf, want := range cases {
		if got := c.Untranslatable(leaf); got != want {
			t.Errorf("Untranslatable(%q) = %v, want %v", leaf, got, want)
		}
	}
}
