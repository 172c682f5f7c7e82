// Package filter rewrites chat lines by replacing undesirable words with
// friendlier substitutes. Matching is done on lemmas, so inflected forms
// ("hated", "idiots") are caught as well as the base word.
package filter

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultReplacements maps filtered base forms to their substitutes.
var DefaultReplacements = map[string]string{
	"stupid":   "super-duper",
	"idiot":    "inspiration",
	"dumb":     "delightful",
	"hate":     "heart-emoji",
	"suck":     "sparkles",
	"ugly":     "unique",
	"bad":      "bodacious",
	"awful":    "awesome-sauce",
	"terrible": "terrific",
	"horrible": "huggable",
	"hell":     "heck",
	"damn":     "darn",
	"crap":     "candy",
}

// Filter is immutable after New and safe for concurrent use.
type Filter struct {
	replacements map[string]string
	tokenizer    Tokenizer
	lemmatizer   Lemmatizer
}

// Option configures a Filter.
type Option func(*Filter)

// WithReplacements overrides DefaultReplacements. Keys are lower-cased.
func WithReplacements(m map[string]string) Option {
	return func(f *Filter) {
		f.replacements = make(map[string]string, len(m))
		for k, v := range m {
			f.replacements[strings.ToLower(k)] = v
		}
	}
}

// WithLemmatizer sets the lemma provider.
func WithLemmatizer(l Lemmatizer) Option {
	return func(f *Filter) { f.lemmatizer = l }
}

// WithTokenizer sets the tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(f *Filter) { f.tokenizer = t }
}

// New builds a Filter. Without WithLemmatizer it uses a RuleLemmatizer over
// the replacement keys.
func New(opts ...Option) *Filter {
	f := &Filter{tokenizer: TreebankTokenizer{}}
	WithReplacements(DefaultReplacements)(f)
	for _, opt := range opts {
		opt(f)
	}
	if f.lemmatizer == nil {
		f.lemmatizer = NewRuleLemmatizer(f.Terms())
	}
	return f
}

// Terms returns the filtered base forms in sorted order.
func (f *Filter) Terms() []string {
	terms := make([]string, 0, len(f.replacements))
	for k := range f.replacements {
		terms = append(terms, k)
	}
	sort.Strings(terms)
	return terms
}

// Apply returns the filtered line and whether any token was replaced.
func (f *Filter) Apply(text string) (string, bool) {
	tokens := f.tokenizer.Tokenize(text)
	out := make([]string, len(tokens))
	modified := false

	for i, tok := range tokens {
		out[i] = tok
		if !isWord(tok) {
			continue
		}
		lemma := f.lemmatizer.Lemma(strings.ToLower(tok))
		sub, ok := f.replacements[lemma]
		if !ok {
			continue
		}
		if first, _ := utf8.DecodeRuneInString(tok); unicode.IsUpper(first) {
			sub = capitalize(sub)
		}
		out[i] = sub
		modified = true
	}

	return f.tokenizer.Detokenize(out), modified
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
