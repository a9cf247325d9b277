// Package enhancer produces the "enhanced" text used for keyword matching at
// both index time and query time: tokenization, stopword removal, stemming,
// heuristic POS tagging, and POS-scoped synonym expansion.
//
// The pipeline never fails: any lookup that cannot be served (unknown
// language, unstemmed token) degrades to a reasonable fallback — raw
// lowercase tokens, POS defaulting to noun — so enhancement can never block
// indexing or search.
package enhancer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"docsearch/internal/errlog"
)

// Part-of-speech tags used by the heuristic tagger and the thesaurus.
const (
	POSNoun      = "noun"
	POSVerb      = "verb"
	POSAdjective = "adj"
	POSAdverb    = "adv"
)

// DefaultPOSToExpand is the default set of POS tags eligible for synonym
// expansion.
var DefaultPOSToExpand = []string{POSNoun, POSVerb, POSAdjective}

// MaxKeywords caps the keyword list stored per chunk.
const MaxKeywords = 20

// Options controls a single enhancement run.
type Options struct {
	Language    string   // "en", "es", or "auto" (empty means "auto")
	POSToExpand []string // nil means DefaultPOSToExpand
	MaxSynonyms int      // per-token synonym budget; 0 disables expansion
}

// Result holds the output of an enhancement run.
type Result struct {
	EnhancedText string
	Keywords     []string
	Language     string
	POSTags      map[string]string // surviving token -> POS tag
}

// snowballLang maps ISO language codes to snowball stemmer names.
var snowballLang = map[string]string{
	"en": "english",
	"es": "spanish",
}

// Enhance runs the full pipeline over text. It never returns an error; on a
// degraded path the result simply carries less enrichment.
func Enhance(text string, opts Options) Result {
	lang := opts.Language
	if lang == "" || lang == "auto" {
		lang = DetectLanguage(text)
	}

	posToExpand := opts.POSToExpand
	if posToExpand == nil {
		posToExpand = DefaultPOSToExpand
	}
	expandable := make(map[string]bool, len(posToExpand))
	for _, p := range posToExpand {
		expandable[p] = true
	}

	stops := stopwordSet(lang)
	stemLang, hasStemmer := snowballLang[lang]
	if !hasStemmer {
		errlog.WarnOnce("stemmer-"+lang, "no stemmer for language %q, using raw tokens", lang)
	}

	tokens := Tokenize(text)
	posTags := make(map[string]string)
	seen := make(map[string]bool)
	var out []string

	add := func(term string) {
		key := strings.ToLower(term)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, key)
	}

	for _, tok := range tokens {
		if stops[tok] {
			continue
		}
		pos := tagPOS(tok, lang)
		posTags[tok] = pos

		add(tok)
		if hasStemmer {
			if stem, err := snowball.Stem(tok, stemLang, false); err == nil && stem != tok {
				add(stem)
			}
		}
		if opts.MaxSynonyms > 0 && expandable[pos] {
			for i, syn := range lookupSynonyms(tok, pos, lang) {
				if i >= opts.MaxSynonyms {
					break
				}
				add(syn)
			}
		}
	}

	return Result{
		EnhancedText: strings.Join(out, " "),
		Keywords:     capKeywords(out),
		Language:     lang,
		POSTags:      posTags,
	}
}

// ExtractKeywords runs the enhancement pipeline with a document-sized synonym
// budget (broad recall without exploding the index) and caps the output.
func ExtractKeywords(text, language string) []string {
	res := Enhance(text, Options{Language: language, MaxSynonyms: 1})
	return res.Keywords
}

func capKeywords(terms []string) []string {
	if len(terms) > MaxKeywords {
		terms = terms[:MaxKeywords]
	}
	kw := make([]string, len(terms))
	copy(kw, terms)
	return kw
}

// Tokenize lowercases, folds diacritics, and splits text into alphanumeric
// tokens of length >= 2.
func Tokenize(text string) []string {
	text = foldDiacritics(strings.ToLower(text))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// foldDiacritics strips combining marks so "instalación" matches "instalacion".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// DetectLanguage votes on the language of text using common-word lists.
// Currently distinguishes English and Spanish; ties favor English.
func DetectLanguage(text string) string {
	votes := map[string]int{}
	for _, tok := range Tokenize(text) {
		for lang, words := range commonWords {
			if words[tok] {
				votes[lang]++
			}
		}
	}
	best := "en"
	bestVotes := votes["en"]
	for lang, n := range votes {
		if n > bestVotes {
			best = lang
			bestVotes = n
		}
	}
	return best
}

// tagPOS assigns a heuristic part-of-speech tag by suffix. Unknown shapes
// default to noun, which keeps them eligible for synonym expansion.
func tagPOS(token, lang string) string {
	if lang == "es" {
		switch {
		case strings.HasSuffix(token, "mente"):
			return POSAdverb
		case strings.HasSuffix(token, "ar"), strings.HasSuffix(token, "er"),
			strings.HasSuffix(token, "ir"), strings.HasSuffix(token, "ando"),
			strings.HasSuffix(token, "iendo"):
			return POSVerb
		case strings.HasSuffix(token, "oso"), strings.HasSuffix(token, "osa"),
			strings.HasSuffix(token, "ble"), strings.HasSuffix(token, "ivo"),
			strings.HasSuffix(token, "iva"):
			return POSAdjective
		}
		return POSNoun
	}
	switch {
	case strings.HasSuffix(token, "ly"):
		return POSAdverb
	case strings.HasSuffix(token, "ing"), strings.HasSuffix(token, "ed"),
		strings.HasSuffix(token, "ize"), strings.HasSuffix(token, "ise"):
		return POSVerb
	case strings.HasSuffix(token, "ous"), strings.HasSuffix(token, "ful"),
		strings.HasSuffix(token, "ive"), strings.HasSuffix(token, "able"),
		strings.HasSuffix(token, "ible"), strings.HasSuffix(token, "al"),
		strings.HasSuffix(token, "ic"):
		return POSAdjective
	}
	return POSNoun
}

// lookupSynonyms returns POS-scoped synonyms for a token from the embedded
// thesaurus. Unknown tokens return nil.
func lookupSynonyms(token, pos, lang string) []string {
	byPOS, ok := thesaurus[lang]
	if !ok {
		return nil
	}
	entries, ok := byPOS[pos]
	if !ok {
		return nil
	}
	return entries[token]
}

// stopwordSet returns the stopword list for lang, falling back to English
// when the requested language has no list.
func stopwordSet(lang string) map[string]bool {
	if s, ok := stopwords[lang]; ok {
		return s
	}
	errlog.WarnOnce("stopwords-"+lang, "no stopword list for language %q, falling back to English", lang)
	return stopwords["en"]
}
