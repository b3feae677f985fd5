package indexing

import (
	"sort"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// fieldGap separates the position spaces of indexed fields so that a phrase
// never spans two fields.
const fieldGap = 1 << 20

// Posting records the occurrences of one term in one document.
type Posting struct {
	// Freq is the raw number of occurrences across all indexed fields.
	Freq int
	// Weighted sums occurrences multiplied by their field weight.
	Weighted float64
	// Positions are ascending and offset by field.
	Positions []int
}

// TextIndex is an inverted index over the string fields of a text index.
type TextIndex struct {
	tokenizer Tokenizer
	fields    []string
	weights   []float64
	postings  map[string]map[string]*Posting // term -> document id -> posting
	docTerms  map[string][]string            // document id -> distinct terms
}

func newTextIndex(def domain.IndexDefinition) *TextIndex {
	lang := domain.LanguageEnglish
	var weights map[string]int
	if def.Text != nil {
		if def.Text.Language != "" {
			lang = def.Text.Language
		}
		weights = def.Text.Weights
	}
	ti := &TextIndex{
		tokenizer: NewTokenizer(lang),
		fields:    def.Fields(),
		postings:  make(map[string]map[string]*Posting),
		docTerms:  make(map[string][]string),
	}
	for _, f := range ti.fields {
		w := 1
		if weights[f] > 0 {
			w = weights[f]
		}
		ti.weights = append(ti.weights, float64(w))
	}
	return ti
}

// Tokenizer returns the tokenizer the index was built with; queries must use
// the same one.
func (ti *TextIndex) Tokenizer() Tokenizer { return ti.tokenizer }

// DocCount is the number of indexed documents.
func (ti *TextIndex) DocCount() int { return len(ti.docTerms) }

// TermCount is the number of distinct terms.
func (ti *TextIndex) TermCount() int { return len(ti.postings) }

// Postings returns the documents containing term. The map must not be
// modified.
func (ti *TextIndex) Postings(term string) map[string]*Posting {
	return ti.postings[term]
}

// Contains reports whether the document holds the terms at consecutive
// positions of the same field.
func (ti *TextIndex) Contains(id string, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	lists := make([][]int, len(phrase))
	for i, term := range phrase {
		p, ok := ti.postings[term][id]
		if !ok {
			return false
		}
		lists[i] = p.Positions
	}
	for _, start := range lists[0] {
		matched := true
		for k := 1; k < len(lists); k++ {
			want := start + k
			j := sort.SearchInts(lists[k], want)
			if j == len(lists[k]) || lists[k][j] != want {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (ti *TextIndex) add(id string, doc *domain.Document) {
	postings := make(map[string]*Posting)
	for fi, field := range ti.fields {
		v, ok := doc.Get(field)
		if !ok {
			continue
		}
		pos := fi * fieldGap
		for _, text := range textsOf(v) {
			tokens := ti.tokenizer.Tokenize(text)
			for _, tok := range tokens {
				p := postings[tok.Term]
				if p == nil {
					p = &Posting{}
					postings[tok.Term] = p
				}
				p.Freq++
				p.Weighted += ti.weights[fi]
				p.Positions = append(p.Positions, pos+tok.Position)
			}
			// array elements do not form phrases with each other
			pos += len(tokens) + 1
		}
	}
	terms := make([]string, 0, len(postings))
	for term, p := range postings {
		docs := ti.postings[term]
		if docs == nil {
			docs = make(map[string]*Posting)
			ti.postings[term] = docs
		}
		docs[id] = p
		terms = append(terms, term)
	}
	ti.docTerms[id] = terms
}

func (ti *TextIndex) remove(id string) {
	terms, ok := ti.docTerms[id]
	if !ok {
		return
	}
	for _, term := range terms {
		docs := ti.postings[term]
		delete(docs, id)
		if len(docs) == 0 {
			delete(ti.postings, term)
		}
	}
	delete(ti.docTerms, id)
}

// textsOf extracts the strings of a field value: the string itself or the
// string elements of an array.
func textsOf(v domain.Value) []string {
	switch v.Kind() {
	case domain.KindString:
		return []string{v.Str()}
	case domain.KindArray:
		var out []string
		for _, item := range v.Items() {
			if item.Kind() == domain.KindString {
				out = append(out, item.Str())
			}
		}
		return out
	}
	return nil
}
