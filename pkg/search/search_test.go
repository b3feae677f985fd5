package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

func products(t *testing.T, textIndex domain.IndexDefinition) *storage.StorageEngine {
	t.Helper()
	ctx := context.Background()
	engine := storage.NewStorageEngine()
	for _, p := range []map[string]any{
		{"_id": "a", "title": "Top", "description": "An awesome t-shirt"},
		{"_id": "b", "title": "Book", "description": "awesome book, really awesome"},
		{"_id": "c", "title": "Shirt", "description": "a red shirt"},
		{"_id": "d", "title": "Tee", "description": "awesome tee"},
		{"_id": "e", "title": "Mug"},
	} {
		_, err := engine.Insert(ctx, "products", domain.MustDocument(p))
		require.NoError(t, err)
	}
	_, err := engine.CreateIndex(ctx, "products", textIndex)
	require.NoError(t, err)
	return engine
}

func descriptionIndex() domain.IndexDefinition {
	return domain.IndexDefinition{Keys: []domain.IndexKey{{Field: "description", Direction: domain.TextKey}}}
}

func hitIDs(hits []domain.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery(`"red shirts" cotton -t-shirt -wool`, indexing.NewTokenizer(domain.LanguageEnglish))
	assert.Equal(t, []string{"red", "shirt", "cotton"}, q.Terms)
	assert.Equal(t, [][]string{{"red", "shirt"}}, q.Phrases)
	assert.Equal(t, [][]string{{"t", "shirt"}, {"wool"}}, q.Negated)

	q = ParseQuery(`the "unterminated phrase`, indexing.NewTokenizer(domain.LanguageNone))
	assert.Equal(t, []string{"the", "unterminated", "phrase"}, q.Terms)
	assert.Equal(t, [][]string{{"unterminated", "phrase"}}, q.Phrases)

	q = ParseQuery("-only", indexing.NewTokenizer(domain.LanguageEnglish))
	assert.Empty(t, q.Terms)
}

func TestSearch_Negation(t *testing.T) {
	s := New(products(t, descriptionIndex()))

	hits, err := s.Search(context.Background(), "products", "awesome -t-shirt", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, hitIDs(hits), "b repeats the term so it scores higher")
	assert.Greater(t, hits[0].Score, hits[1].Score)
	require.NotNil(t, hits[0].Document)
	assert.Equal(t, "b", hits[0].Document.ID())

	hits, err = s.Search(context.Background(), "products", "-awesome", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_Ranking(t *testing.T) {
	s := New(products(t, descriptionIndex()))
	ctx := context.Background()

	hits, err := s.Search(ctx, "products", "awesome book", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "d"}, hitIDs(hits), "more distinct terms first, then id")
	assert.GreaterOrEqual(t, hits[0].Score, 2.0)
	assert.Less(t, hits[1].Score, 2.0)
	assert.Equal(t, hits[1].Score, hits[2].Score)

	again, err := s.Search(ctx, "products", "awesome book", 0)
	require.NoError(t, err)
	assert.Equal(t, hits, again)

	limited, err := s.Search(ctx, "products", "awesome book", 2)
	require.NoError(t, err)
	assert.Equal(t, hits[:2], limited)
}

func TestSearch_Phrase(t *testing.T) {
	s := New(products(t, descriptionIndex()))
	ctx := context.Background()

	hits, err := s.Search(ctx, "products", `"awesome t-shirt"`, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hitIDs(hits))

	hits, err = s.Search(ctx, "products", `"t-shirt awesome"`, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Search(ctx, "products", `red "awesome book"`, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(hits), "the phrase is required even when other terms match")
}

func TestSearch_FieldWeights(t *testing.T) {
	def := domain.IndexDefinition{
		Keys: []domain.IndexKey{
			{Field: "title", Direction: domain.TextKey},
			{Field: "description", Direction: domain.TextKey},
		},
		Text: &domain.TextOptions{Weights: map[string]int{"title": 10}},
	}
	s := New(products(t, def))

	hits, err := s.Search(context.Background(), "products", "shirt", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, hitIDs(hits), "c holds shirt in the title and the description")

	hits, err = s.Search(context.Background(), "products", "tee", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, hitIDs(hits))
}

func TestSearch_WritesAreVisible(t *testing.T) {
	ctx := context.Background()
	engine := products(t, descriptionIndex())
	s := New(engine)

	_, err := engine.UpdateById(ctx, "products", "e", domain.MustDocument(map[string]any{"description": "awesome mug"}))
	require.NoError(t, err)
	_, err = engine.DeleteById(ctx, "products", "b")
	require.NoError(t, err)

	hits, err := s.Search(ctx, "products", "awesome", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "d", "e"}, hitIDs(hits))
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()
	engine := products(t, descriptionIndex())
	s := New(engine)

	_, err := s.Search(ctx, "missing", "awesome", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Search(ctx, "products", "   ", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Search(ctx, "products", "awesome", -1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = engine.Insert(ctx, "plain", domain.MustDocument(map[string]any{"description": "awesome"}))
	require.NoError(t, err)
	_, err = s.Search(ctx, "plain", "awesome", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
