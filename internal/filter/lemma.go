package filter

import (
	"fmt"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer reduces an inflected, lower-cased word to its dictionary form.
// Implementations must be safe for concurrent use.
type Lemmatizer interface {
	Lemma(word string) string
}

// Lemmatizer provider names accepted by NewLemmatizer.
const (
	ProviderGolem = "golem"
	ProviderRules = "rules"
)

// NewLemmatizer builds the named provider. The rules provider resolves
// candidates against vocabulary, which is normally the set of filtered terms.
func NewLemmatizer(provider string, vocabulary []string) (Lemmatizer, error) {
	switch strings.ToLower(provider) {
	case ProviderGolem:
		return NewGolemLemmatizer()
	case ProviderRules, "":
		return NewRuleLemmatizer(vocabulary), nil
	default:
		return nil, fmt.Errorf("unknown lemmatizer provider %q", provider)
	}
}

type golemLemmatizer struct {
	lem *golem.Lemmatizer
}

// NewGolemLemmatizer loads the embedded English dictionary.
func NewGolemLemmatizer() (Lemmatizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english dictionary: %w", err)
	}
	return golemLemmatizer{lem: lem}, nil
}

func (g golemLemmatizer) Lemma(word string) string {
	return g.lem.Lemma(word)
}

// RuleLemmatizer strips common English inflections and accepts the first
// candidate found in its vocabulary. Words with no matching candidate are
// returned unchanged.
type RuleLemmatizer struct {
	vocabulary map[string]bool
}

var irregular = map[string]string{
	"worse": "bad",
	"worst": "bad",
}

// agentNouns end in -er but are nouns in their own right, not comparatives.
var agentNouns = map[string]bool{
	"hater":  true,
	"sucker": true,
}

// NewRuleLemmatizer returns a RuleLemmatizer over the given base forms.
func NewRuleLemmatizer(vocabulary []string) *RuleLemmatizer {
	vocab := make(map[string]bool, len(vocabulary))
	for _, w := range vocabulary {
		vocab[strings.ToLower(w)] = true
	}
	return &RuleLemmatizer{vocabulary: vocab}
}

// Lemma implements Lemmatizer.
func (r *RuleLemmatizer) Lemma(word string) string {
	if r.vocabulary[word] {
		return word
	}
	if base, ok := irregular[word]; ok && r.vocabulary[base] {
		return base
	}
	if agentNouns[word] {
		return word
	}
	for _, candidate := range candidates(word) {
		if r.vocabulary[candidate] {
			return candidate
		}
	}
	return word
}

// candidates lists possible base forms of word, most specific rule first.
func candidates(word string) []string {
	var out []string
	add := func(stem string, extra ...string) {
		if len(stem) < 2 {
			return
		}
		out = append(out, stem)
		for _, e := range extra {
			out = append(out, stem+e)
		}
		if n := len(stem); n >= 3 && stem[n-1] == stem[n-2] {
			out = append(out, stem[:n-1])
		}
	}

	switch {
	case strings.HasSuffix(word, "iest"):
		add(strings.TrimSuffix(word, "iest") + "y")
	case strings.HasSuffix(word, "ier"):
		add(strings.TrimSuffix(word, "ier") + "y")
	case strings.HasSuffix(word, "ies"):
		add(strings.TrimSuffix(word, "ies") + "y")
	}
	if strings.HasSuffix(word, "ing") {
		add(strings.TrimSuffix(word, "ing"), "e")
	}
	if strings.HasSuffix(word, "ed") {
		add(strings.TrimSuffix(word, "ed"), "e")
	}
	if strings.HasSuffix(word, "est") {
		add(strings.TrimSuffix(word, "est"), "e")
	}
	if strings.HasSuffix(word, "er") {
		add(strings.TrimSuffix(word, "er"), "e")
	}
	if strings.HasSuffix(word, "es") {
		add(strings.TrimSuffix(word, "es"))
	}
	if strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		add(strings.TrimSuffix(word, "s"))
	}
	return out
}
