package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits a line into word and punctuation tokens and joins them
// back with natural spacing.
type Tokenizer interface {
	Tokenize(text string) []string
	Detokenize(tokens []string) string
}

// TreebankTokenizer approximates Penn Treebank conventions: punctuation is a
// separate token and English contraction suffixes are split from their stem.
type TreebankTokenizer struct{}

const ellipsis = "..."

var (
	openers = map[string]bool{"(": true, "[": true, "{": true}
	closers = map[string]bool{
		".": true, ",": true, "!": true, "?": true, ";": true, ":": true,
		")": true, "]": true, "}": true, "%": true, ellipsis: true,
	}
	contractions = []string{"n't", "'s", "'re", "'ll", "'ve", "'d", "'m"}
	separators   = map[byte]bool{',': true, ';': true, ':': true, '!': true, '?': true}
)

// Tokenize implements Tokenizer.
func (TreebankTokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		tokens = append(tokens, splitField(field)...)
	}
	return tokens
}

// splitField tokenizes one whitespace-delimited field. Separators inside the
// field ("stupid,dumb", "hell?no") become tokens of their own when they touch
// a letter, so "1,000" and "12:30" stay whole. Fields holding a URL are only
// trimmed at their edges.
func splitField(field string) []string {
	if strings.Contains(field, "://") {
		return splitChunk(field)
	}

	var tokens []string
	start := 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		if !separators[c] || !touchesLetter(field, i) {
			continue
		}
		tokens = append(tokens, splitChunk(field[start:i])...)
		tokens = append(tokens, string(c))
		start = i + 1
	}
	return append(tokens, splitChunk(field[start:])...)
}

func touchesLetter(field string, i int) bool {
	if i > 0 {
		if r, _ := utf8.DecodeLastRuneInString(field[:i]); unicode.IsLetter(r) {
			return true
		}
	}
	r, _ := utf8.DecodeRuneInString(field[i+1:])
	return unicode.IsLetter(r)
}

// splitChunk peels openers, quotes and closers off the ends of chunk and
// splits a contraction suffix from what remains. A leading apostrophe is a
// quote; a trailing one is only split when it closes that quote.
func splitChunk(chunk string) []string {
	var head []string
	singleQuoted := false
	for chunk != "" {
		r, size := utf8.DecodeRuneInString(chunk)
		if r == '\'' && !singleQuoted && len(chunk) > size && !isContraction(chunk) {
			singleQuoted = true
		} else if r != '"' && !openers[string(r)] {
			break
		}
		head = append(head, string(r))
		chunk = chunk[size:]
	}

	var tail []string
	for chunk != "" {
		if strings.HasSuffix(chunk, ellipsis) {
			tail = append(tail, ellipsis)
			chunk = strings.TrimSuffix(chunk, ellipsis)
			continue
		}
		r, size := utf8.DecodeLastRuneInString(chunk)
		if r == '\'' && singleQuoted {
			singleQuoted = false
		} else if r != '"' && !closers[string(r)] {
			break
		}
		tail = append(tail, string(r))
		chunk = chunk[:len(chunk)-size]
	}

	tokens := head
	tokens = append(tokens, splitContraction(chunk)...)
	for i := len(tail) - 1; i >= 0; i-- {
		tokens = append(tokens, tail[i])
	}
	return tokens
}

func splitContraction(word string) []string {
	if word == "" {
		return nil
	}
	lower := strings.ToLower(word)
	for _, suffix := range contractions {
		if len(lower) > len(suffix) && strings.HasSuffix(lower, suffix) {
			cut := len(word) - len(suffix)
			return []string{word[:cut], word[cut:]}
		}
	}
	return []string{word}
}

func isContraction(tok string) bool {
	lower := strings.ToLower(tok)
	for _, suffix := range contractions {
		if lower == suffix {
			return true
		}
	}
	return false
}

// Detokenize implements Tokenizer.
func (TreebankTokenizer) Detokenize(tokens []string) string {
	var b strings.Builder
	quoteOpen, singleOpen := false, false
	glueNext := true

	for _, tok := range tokens {
		attach := closers[tok] || isContraction(tok)
		opening := openers[tok]
		if tok == `"` {
			if quoteOpen {
				attach = true
			} else {
				opening = true
			}
			quoteOpen = !quoteOpen
		}
		if tok == "'" {
			if singleOpen {
				attach = true
			} else {
				opening = true
			}
			singleOpen = !singleOpen
		}

		if !attach && !glueNext {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
		glueNext = opening
	}
	return b.String()
}

// isWord reports whether tok starts with a letter and is therefore a
// candidate for lemma lookup.
func isWord(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsLetter(r)
}
