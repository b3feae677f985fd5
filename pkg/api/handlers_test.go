package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/planner"
	"github.com/adfharrison1/idxdb/pkg/search"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

func newTestRouter(t *testing.T) (*mux.Router, *storage.StorageEngine) {
	t.Helper()
	engine := storage.NewStorageEngine()
	handler := NewHandler(engine, planner.New(engine), search.New(engine), WithStats(engine))
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, engine
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func seedPeople(t *testing.T, engine *storage.StorageEngine) {
	t.Helper()
	people := []map[string]any{
		{"_id": "a", "name": "Alice", "age": 30, "active": true},
		{"_id": "b", "name": "Bob", "age": 25, "active": false},
		{"_id": "c", "name": "Carol", "age": 35, "active": true},
		{"_id": "d", "name": "Dan", "age": 30, "active": false},
	}
	for _, p := range people {
		_, err := engine.Insert(context.Background(), "people", domain.MustDocument(p))
		require.NoError(t, err)
	}
}

func docIDs(docs []map[string]any) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, fmt.Sprint(d["_id"]))
	}
	return ids
}

func TestHandler_HandleInsert(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "generated id",
			body:           map[string]any{"name": "Alice", "age": 30},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "explicit id",
			body:           map[string]any{"_id": "123", "name": "Bob"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "non-string id",
			body:           map[string]any{"_id": 7},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "ValidationError",
		},
		{
			name:           "malformed body",
			body:           `{"name":`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   "ValidationError",
		},
		{
			name:           "array body",
			body:           `[1, 2]`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   "ValidationError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, engine := newTestRouter(t)

			w := do(t, router, http.MethodPost, "/collections/users", tt.body)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedType != "" {
				resp := decode[ErrorResponse](t, w)
				assert.Equal(t, tt.expectedType, resp.Type)
				assert.Equal(t, tt.expectedStatus, resp.Code)
				return
			}
			resp := decode[InsertResponse](t, w)
			assert.NotEmpty(t, resp.ID)
			n, err := engine.Count("users")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestHandler_DuplicateID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/collections/users", map[string]any{"_id": "x"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/collections/users", map[string]any{"_id": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "UniqueConstraintViolation", decode[ErrorResponse](t, w).Type)
}

func TestHandler_DocumentLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/collections/users", map[string]any{
		"_id":  "u1",
		"name": "Alice",
		"dob":  map[string]any{"age": 30},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodGet, "/collections/users/documents/u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"_id":"u1","name":"Alice","dob":{"age":30}}`, w.Body.String())

	w = do(t, router, http.MethodPatch, "/collections/users/documents/u1", map[string]any{"dob.age": 31, "city": "Oslo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"_id":"u1","name":"Alice","dob":{"age":31},"city":"Oslo"}`, w.Body.String())

	w = do(t, router, http.MethodPatch, "/collections/users/documents/u1", map[string]any{"_id": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/collections/users/documents/u1", map[string]any{"name": "Alice B"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"_id":"u1","name":"Alice B"}`, w.Body.String(), "fields missing from the body are removed")

	w = do(t, router, http.MethodPut, "/collections/users/documents/u1", map[string]any{"_id": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/collections/users/documents/nobody", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodDelete, "/collections/users/documents/u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodDelete, "/collections/users/documents/u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/collections/users/documents/u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPatch, "/collections/users/documents/u1", map[string]any{"a": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HandleFind(t *testing.T) {
	router, engine := newTestRouter(t)
	seedPeople(t, engine)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedIDs    []string
	}{
		{
			name:           "empty filter",
			body:           map[string]any{},
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"a", "b", "c", "d"},
		},
		{
			name: "range with sort",
			body: map[string]any{
				"filter": map[string]any{"age": map[string]any{"$gte": 30}},
				"sort":   []map[string]any{{"field": "age", "direction": -1}},
			},
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"c", "a", "d"},
		},
		{
			name: "skip and limit",
			body: map[string]any{
				"sort":  []map[string]any{{"field": "name", "direction": 1}},
				"skip":  1,
				"limit": 2,
			},
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"b", "c"},
		},
		{
			name:           "unknown operator",
			body:           map[string]any{"filter": map[string]any{"age": map[string]any{"$near": 1}}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative limit",
			body:           map[string]any{"limit": -1},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/collections/people/find", tt.body)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedStatus != http.StatusOK {
				return
			}
			resp := decode[struct {
				Documents []map[string]any `json:"documents"`
				Stats     map[string]any   `json:"executionStats"`
			}](t, w)
			assert.Equal(t, tt.expectedIDs, docIDs(resp.Documents))
			assert.EqualValues(t, len(tt.expectedIDs), resp.Stats["nReturned"])
		})
	}

	t.Run("missing collection", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/collections/nope/find", map[string]any{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("projection", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/collections/people/find", map[string]any{
			"filter":     map[string]any{"_id": "a"},
			"projection": map[string]any{"name": 1},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"_id":"a","name":"Alice"}]`, string(mustField(t, w.Body.Bytes(), "documents")))

		w = do(t, router, http.MethodPost, "/collections/people/find", map[string]any{
			"projection": map[string]any{"name": 1, "name.first": 1},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "colliding projection paths")
	})
}

func mustField(t *testing.T, data []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return m[field]
}

func TestHandler_HandleFindAll(t *testing.T) {
	router, engine := newTestRouter(t)
	seedPeople(t, engine)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedIDs    []string
	}{
		{name: "no params", query: "", expectedStatus: http.StatusOK, expectedIDs: []string{"a", "b", "c", "d"}},
		{name: "number coerced", query: "?age=30", expectedStatus: http.StatusOK, expectedIDs: []string{"a", "d"}},
		{name: "bool coerced", query: "?active=true", expectedStatus: http.StatusOK, expectedIDs: []string{"a", "c"}},
		{name: "string", query: "?name=Bob", expectedStatus: http.StatusOK, expectedIDs: []string{"b"}},
		{name: "sort desc with limit", query: "?sort=-age,name&limit=2", expectedStatus: http.StatusOK, expectedIDs: []string{"c", "a"}},
		{name: "skip", query: "?sort=name&skip=3", expectedStatus: http.StatusOK, expectedIDs: []string{"d"}},
		{name: "bad limit", query: "?limit=ten", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/collections/people/find"+tt.query, nil)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedStatus != http.StatusOK {
				return
			}
			resp := decode[struct {
				Documents []map[string]any `json:"documents"`
			}](t, w)
			assert.Equal(t, tt.expectedIDs, docIDs(resp.Documents))
		})
	}
}

func TestCoerceParam(t *testing.T) {
	assert.Equal(t, 30.0, coerceParam("30"))
	assert.Equal(t, -1.5, coerceParam("-1.5"))
	assert.Equal(t, true, coerceParam("true"))
	assert.Equal(t, false, coerceParam("false"))
	assert.Nil(t, coerceParam("null"))
	assert.Equal(t, "Bob", coerceParam("Bob"))
	for _, s := range []string{"NaN", "nan", "Inf", "-Inf", "+Inf", "infinity", "-Infinity"} {
		assert.Equal(t, s, coerceParam(s), "non-finite numbers stay strings")
	}
	assert.Equal(t, 1e6, coerceParam("1e6"))
}

func TestHandler_HandleExplain(t *testing.T) {
	router, engine := newTestRouter(t)
	seedPeople(t, engine)
	_, err := engine.CreateIndex(context.Background(), "people", domain.IndexDefinition{
		Keys: []domain.IndexKey{{Field: "age", Direction: domain.Ascending}},
	})
	require.NoError(t, err)

	body := map[string]any{"filter": map[string]any{"age": map[string]any{"$gt": 28}}}

	w := do(t, router, http.MethodPost, "/collections/people/explain", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	planOnly := decode[domain.Explanation](t, w)
	require.NotNil(t, planOnly.WinningPlan)
	assert.Equal(t, domain.StageFetch, planOnly.WinningPlan.Stage)
	assert.Equal(t, domain.StageIxScan, planOnly.WinningPlan.Leaf().Stage)
	assert.Equal(t, "age_1", planOnly.WinningPlan.Leaf().IndexName)
	assert.Nil(t, planOnly.Stats)

	w = do(t, router, http.MethodPost, "/collections/people/explain?verbosity=executionStats", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[domain.Explanation](t, w)
	require.NotNil(t, stats.Stats)
	assert.Equal(t, 3, stats.Stats.NReturned)
	assert.Equal(t, 3, stats.Stats.DocsExamined)

	w = do(t, router, http.MethodPost, "/collections/people/explain?verbosity=allPlans", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_HandleSearch(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, doc := range []map[string]any{
		{"_id": "1", "description": "An awesome red shirt"},
		{"_id": "2", "description": "An awesome book about awesome things"},
		{"_id": "3", "description": "A plain mug"},
	} {
		require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/collections/products", doc).Code)
	}

	w := do(t, router, http.MethodPost, "/collections/products/search", SearchRequest{Query: "awesome"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/collections/products/indexes", map[string]any{
		"keys": []map[string]any{{"field": "description", "direction": "text"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "description_text", decode[CreateIndexResponse](t, w).Name)

	w = do(t, router, http.MethodPost, "/collections/products/search", SearchRequest{Query: "awesome"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[SearchResponse](t, w)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "2", resp.Hits[0].ID)
	assert.Equal(t, "1", resp.Hits[1].ID)
	assert.Greater(t, resp.Hits[0].Score, resp.Hits[1].Score)
	require.NotNil(t, resp.Hits[0].Document)

	w = do(t, router, http.MethodPost, "/collections/products/search", SearchRequest{Query: "awesome -shirt", Limit: 5})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[SearchResponse](t, w)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "2", resp.Hits[0].ID)

	w = do(t, router, http.MethodPost, "/collections/products/search", SearchRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Indexes(t *testing.T) {
	router, engine := newTestRouter(t)
	seedPeople(t, engine)

	w := do(t, router, http.MethodPost, "/collections/people/indexes", map[string]any{
		"keys":   []map[string]any{{"field": "name", "direction": 1}},
		"unique": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "name_1", decode[CreateIndexResponse](t, w).Name)

	w = do(t, router, http.MethodPost, "/collections/people/indexes", map[string]any{
		"keys":   []map[string]any{{"field": "age", "direction": 1}},
		"unique": true,
	})
	assert.Equal(t, http.StatusConflict, w.Code, "ages repeat")

	w = do(t, router, http.MethodPost, "/collections/people/indexes", map[string]any{
		"keys": []map[string]any{{"field": "age", "direction": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/collections/people/indexes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[IndexesResponse](t, w)
	require.Len(t, list.Indexes, 2)
	assert.Equal(t, "_id_", list.Indexes[0].Name)
	assert.Equal(t, "name_1", list.Indexes[1].Name)
	assert.Equal(t, domain.KindUnique, list.Indexes[1].Kind)
	assert.Equal(t, 4, list.Indexes[1].Entries)

	w = do(t, router, http.MethodPost, "/collections/people", map[string]any{"name": "Alice"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodDelete, "/collections/people/indexes/_id_", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodDelete, "/collections/people/indexes/name_1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "drops by name")

	w = do(t, router, http.MethodDelete, "/collections/people/indexes/name_1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/collections/nope/indexes", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HandleBatchInsert(t *testing.T) {
	router, engine := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/collections/users/batch", map[string]any{
		"documents": []map[string]any{
			{"_id": "1", "name": "Alice"},
			{"_id": "1", "name": "Duplicate"},
			{"name": "Generated"},
		},
	})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	resp := decode[BatchInsertResponse](t, w)
	assert.Equal(t, 2, resp.InsertedCount)
	assert.Equal(t, "1", resp.InsertedIDs[0])
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Index)
	assert.Equal(t, "UniqueConstraintViolation", resp.Errors[0].Type)

	n, err := engine.Count("users")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	w = do(t, router, http.MethodPost, "/collections/users/batch", map[string]any{
		"documents": []map[string]any{{"name": "Eve"}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/collections/users/batch", map[string]any{"documents": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tooMany := make([]map[string]any, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = map[string]any{"n": i}
	}
	w = do(t, router, http.MethodPost, "/collections/users/batch", map[string]any{"documents": tooMany})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Collections(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPut, "/collections/users", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPut, "/collections/users", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CollectionExists", decode[ErrorResponse](t, w).Type)

	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/collections/orders", map[string]any{"n": 1}).Code)

	w = do(t, router, http.MethodGet, "/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"orders", "users"}, decode[CollectionsResponse](t, w).Collections)

	w = do(t, router, http.MethodDelete, "/collections/users", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodDelete, "/collections/users", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HandleHealth(t *testing.T) {
	router, engine := newTestRouter(t)
	seedPeople(t, engine)

	w := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.Collections)
	assert.Equal(t, 4, resp.Stats.Documents["people"])
}

func TestHandler_DirectVars(t *testing.T) {
	engine := storage.NewStorageEngine()
	handler := NewHandler(engine, planner.New(engine), search.New(engine))
	_, err := engine.Insert(context.Background(), "users", domain.MustDocument(map[string]any{"_id": "u1"}))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/collections/users/documents/u1", nil)
	req = mux.SetURLVars(req, map[string]string{"coll": "users", "id": "u1"})
	w := httptest.NewRecorder()
	handler.HandleGetById(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"_id":"u1"}`, w.Body.String())
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "Method Not Allowed", resp.Error)
	assert.Equal(t, "method not allowed", resp.Message)
}
