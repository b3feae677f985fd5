package search

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/adfharrison1/idxdb/pkg/indexing"
)

// Query is a parsed text search string.
type Query struct {
	// Terms are OR-combined and drive scoring.
	Terms []string
	// Phrases must each appear as consecutive terms.
	Phrases [][]string
	// Negated excludes documents holding any of the entries. An entry with
	// several terms is a negated phrase.
	Negated [][]string
}

// ParseQuery splits raw into terms, "quoted phrases" and -negations and
// normalises every word with tok. Words of a phrase also count as terms. A
// query without positive terms matches nothing.
func ParseQuery(raw string, tok indexing.Tokenizer) Query {
	var q Query
	rest := raw
	for {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			q.addWords(rest, tok)
			break
		}
		q.addWords(rest[:open], tok)
		rest = rest[open+1:]
		phrase := rest
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			phrase, rest = rest[:end], rest[end+1:]
		} else {
			rest = ""
		}
		if terms := tok.Terms(phrase); len(terms) > 0 {
			q.Phrases = append(q.Phrases, terms)
			q.Terms = append(q.Terms, terms...)
		}
	}
	q.Terms = lo.Uniq(q.Terms)
	return q
}

func (q *Query) addWords(text string, tok indexing.Tokenizer) {
	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		if negated, ok := strings.CutPrefix(word, "-"); ok {
			if terms := tok.Terms(negated); len(terms) > 0 {
				q.Negated = append(q.Negated, terms)
			}
			continue
		}
		q.Terms = append(q.Terms, tok.Terms(word)...)
	}
}

// excludes reports whether the document is removed by a negation.
func (q Query) excludes(ti *indexing.TextIndex, id string) bool {
	for _, neg := range q.Negated {
		if len(neg) == 1 {
			if _, ok := ti.Postings(neg[0])[id]; ok {
				return true
			}
			continue
		}
		if ti.Contains(id, neg) {
			return true
		}
	}
	return false
}

// hasPhrases reports whether the document holds every required phrase.
func (q Query) hasPhrases(ti *indexing.TextIndex, id string) bool {
	for _, phrase := range q.Phrases {
		if !ti.Contains(id, phrase) {
			return false
		}
	}
	return true
}
