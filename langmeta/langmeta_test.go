package langmeta

import (
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "zh_Hant", want: "zh-Hant"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		if got := canonicalize(tc.in); got != tc.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("base language", func(t *testing.T) {
		got := Resolve("de")
		if got.Name != "Deutsch" || got.English != "German" || got.Flag != "\U0001F1E9\U0001F1EA" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("gettext form", func(t *testing.T) {
		got := Resolve("pt_BR")
		if got.Code != "pt-BR" || !strings.Contains(got.English, "Portuguese") {
			t.Fatalf("unexpected result: %#v", got)
		}
		if got.Flag != "\U0001F1E7\U0001F1F7" {
			t.Fatalf("Flag = %q", got.Flag)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("not a code")
		if got.Name != "not a code" || got.Flag != "" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestFlag(t *testing.T) {
	if got := Flag("fr"); got != "\U0001F1EB\U0001F1F7" {
		t.Errorf("Flag(fr) = %q", got)
	}
	for _, bad := range []string{"", "USA", "1A"} {
		if got := Flag(bad); got != "" {
			t.Errorf("Flag(%q) = %q, want empty", bad, got)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("de"); got != "\U0001F1E9\U0001F1EA de (Deutsch)" {
		t.Errorf("Label(de) = %q", got)
	}
}
