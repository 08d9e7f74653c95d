// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on runs of non-word characters, keeping
// the byte offsets of every token in the source text. The same Tokenizer
// normalises document bodies and query terms, so an index lookup always
// agrees with a literal match on the original text.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultExtraWordChars are the connector runes kept inside words by default.
const DefaultExtraWordChars = "-_"

// Token is a normalised term and the byte range [Start, End) it was read from.
type Token struct {
	Term  string
	Start int
	End   int
}

// Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	extra map[rune]struct{}
}

var defaultTokenizer = New(DefaultExtraWordChars)

// Default returns the tokenizer built with DefaultExtraWordChars.
func Default() *Tokenizer {
	return defaultTokenizer
}

// New builds a Tokenizer treating letters, digits, combining marks and every
// rune of extraWordChars as word characters.
func New(extraWordChars string) *Tokenizer {
	extra := make(map[rune]struct{}, len(extraWordChars))
	for _, r := range extraWordChars {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		extra[r] = struct{}{}
	}
	return &Tokenizer{extra: extra}
}

// Tokens returns a lazy sequence of the tokens in text, in appearance order.
// The sequence may be ranged over any number of times with identical output.
func (t *Tokenizer) Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		i := 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !t.isWordRune(r) {
				i += size
				continue
			}
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !t.isWordRune(r) {
					break
				}
				i += size
			}
			s, e := t.trimConnectors(text, start, i)
			if s == e {
				continue
			}
			if !yield(Token{Term: strings.ToLower(text[s:e]), Start: s, End: e}) {
				return
			}
		}
	}
}

// Tokenize collects Tokens(text) into a slice.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	for tok := range t.Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Normalize returns the normalised terms of a query string in order.
func (t *Tokenizer) Normalize(term string) []string {
	var terms []string
	for tok := range t.Tokens(term) {
		terms = append(terms, tok.Term)
	}
	return terms
}

func (t *Tokenizer) isWordRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
		return true
	}
	_, ok := t.extra[r]
	return ok
}

func (t *Tokenizer) isConnector(r rune) bool {
	_, ok := t.extra[r]
	return ok
}

// trimConnectors drops connector runes from both ends of text[start:end].
func (t *Tokenizer) trimConnectors(text string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !t.isConnector(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !t.isConnector(r) {
			break
		}
		end -= size
	}
	return start, end
}
