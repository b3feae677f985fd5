package indexing

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {}, "can": {}, "do": {}, "each": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {}, "her": {},
	"his": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "me": {}, "my": {}, "no": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "she": {}, "so": {}, "than": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "while": {}, "who": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// Token is a normalised term and its position among the kept terms.
type Token struct {
	Term     string
	Position int
}

// Tokenizer normalises text for a text index.
type Tokenizer struct {
	stem      bool
	stopWords bool
}

// NewTokenizer returns the tokenizer for a text index language. "english"
// (the default) drops stopwords and applies Porter stemming; "none" only
// lowercases and splits.
func NewTokenizer(language string) Tokenizer {
	if language == domain.LanguageNone {
		return Tokenizer{}
	}
	return Tokenizer{stem: true, stopWords: true}
}

// Tokenize lowercases text, splits it on non-alphanumeric runes and returns
// the kept terms in order. Positions only advance for kept terms, so a
// stopword between two words does not break a phrase.
func (t Tokenizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if t.stopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		term := word
		if t.stem {
			term = porterstemmer.StemString(word)
		}
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	return tokens
}

// Terms is Tokenize without positions.
func (t Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}
