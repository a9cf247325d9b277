package enhancer

import (
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"basic", "Hello, World!", []string{"hello", "world"}},
		{"drops single runes", "a b cd", []string{"cd"}},
		{"diacritics folded", "instalación rápida", []string{"instalacion", "rapida"}},
		{"digits kept", "version 2 of api2", []string{"version", "of", "api2"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "How can you install the software when the server is not running", "en"},
		{"spanish", "El error ocurre cuando la configuracion de los archivos no es correcta", "es"},
		{"tie favors english", "xyzzy qwerty", "en"},
		{"empty favors english", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTagPOS(t *testing.T) {
	tests := []struct {
		token, lang, want string
	}{
		{"quickly", "en", POSAdverb},
		{"running", "en", POSVerb},
		{"configured", "en", POSVerb},
		{"helpful", "en", POSAdjective},
		{"server", "en", POSNoun},
		{"install", "en", POSNoun},
		{"rapidamente", "es", POSAdverb},
		{"configurar", "es", POSVerb},
		{"servidor", "es", POSNoun},
	}
	for _, tt := range tests {
		if got := tagPOS(tt.token, tt.lang); got != tt.want {
			t.Errorf("tagPOS(%q, %q): got %q, want %q", tt.token, tt.lang, got, tt.want)
		}
	}
}

func TestEnhanceDropsStopwordsAndStems(t *testing.T) {
	res := Enhance("The server is running", Options{Language: "en"})
	terms := strings.Fields(res.EnhancedText)
	for _, term := range terms {
		if term == "the" || term == "is" {
			t.Errorf("stopword %q survived enhancement", term)
		}
	}
	joined := " " + res.EnhancedText + " "
	if !strings.Contains(joined, " server ") {
		t.Errorf("raw token missing: %q", res.EnhancedText)
	}
	if !strings.Contains(joined, " run ") {
		t.Errorf("stem of running missing: %q", res.EnhancedText)
	}
	if res.Language != "en" {
		t.Errorf("language: got %q, want en", res.Language)
	}
}

func TestEnhanceExpandsSynonyms(t *testing.T) {
	res := Enhance("install", Options{Language: "en", MaxSynonyms: 2})
	joined := " " + res.EnhancedText + " "
	if !strings.Contains(joined, " setup ") {
		t.Errorf("expected synonym setup in %q", res.EnhancedText)
	}
	if !strings.Contains(joined, " installation ") {
		t.Errorf("expected synonym installation in %q", res.EnhancedText)
	}
}

func TestEnhanceSynonymBudget(t *testing.T) {
	none := Enhance("error", Options{Language: "en"})
	if strings.Contains(none.EnhancedText, "failure") {
		t.Errorf("synonyms expanded with zero budget: %q", none.EnhancedText)
	}
	one := Enhance("error", Options{Language: "en", MaxSynonyms: 1})
	if !strings.Contains(one.EnhancedText, "failure") {
		t.Errorf("first synonym missing: %q", one.EnhancedText)
	}
	if strings.Contains(one.EnhancedText, "fault") {
		t.Errorf("budget of 1 exceeded: %q", one.EnhancedText)
	}
}

func TestEnhanceDedupesFirstWins(t *testing.T) {
	res := Enhance("Install INSTALL install", Options{Language: "en"})
	count := 0
	for _, term := range strings.Fields(res.EnhancedText) {
		if term == "install" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("install appears %d times, want 1", count)
	}
}

func TestEnhanceNeverEmptyLanguage(t *testing.T) {
	res := Enhance("anything at all", Options{})
	if res.Language == "" {
		t.Error("auto-detection returned empty language")
	}
}

func TestExtractKeywordsCapped(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("uniqueword")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(" term")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(" ")
	}
	kws := ExtractKeywords(sb.String(), "en")
	if len(kws) > MaxKeywords {
		t.Errorf("got %d keywords, cap is %d", len(kws), MaxKeywords)
	}
	if len(kws) != MaxKeywords {
		t.Errorf("expected cap to engage: got %d", len(kws))
	}
}

func TestEnhanceSpanishStopwords(t *testing.T) {
	res := Enhance("el servidor de la empresa", Options{Language: "es"})
	for _, term := range strings.Fields(res.EnhancedText) {
		if term == "el" || term == "de" || term == "la" {
			t.Errorf("spanish stopword %q survived", term)
		}
	}
	if !strings.Contains(res.EnhancedText, "servidor") {
		t.Errorf("content word missing: %q", res.EnhancedText)
	}
}
