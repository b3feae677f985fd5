package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// HandleFind handles POST /collections/{coll}/find with a FindRequest body.
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	var req domain.FindRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.find(w, r, req)
}

// HandleFindAll handles GET /collections/{coll}/find. Every query parameter
// except limit, skip and sort is an equality condition; values that parse as
// numbers or booleans are compared as such. sort is a comma-separated field
// list where a leading "-" sorts descending.
func (h *Handler) HandleFindAll(w http.ResponseWriter, r *http.Request) {
	req, err := findRequestFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.find(w, r, req)
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request, req domain.FindRequest) {
	result, err := h.queries.Find(r.Context(), mux.Vars(r)["coll"], req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func findRequestFromQuery(r *http.Request) (domain.FindRequest, error) {
	req := domain.FindRequest{Filter: make(map[string]any)}
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		var err error
		switch key {
		case "limit":
			req.Limit, err = cast.ToIntE(value)
		case "skip":
			req.Skip, err = cast.ToIntE(value)
		case "sort":
			req.Sort = parseSortParam(value)
		default:
			req.Filter[key] = coerceParam(value)
		}
		if err != nil {
			return req, invalidParam(key, value)
		}
	}
	return req, nil
}

func parseSortParam(value string) []domain.SortKey {
	var keys []domain.SortKey
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dir := domain.Ascending
		if name, desc := strings.CutPrefix(field, "-"); desc {
			field, dir = name, domain.Descending
		}
		keys = append(keys, domain.SortKey{Field: field, Direction: dir})
	}
	return keys
}

// coerceParam turns a query string value into a finite number, boolean or
// null when it reads as one.
func coerceParam(value string) any {
	if value == "null" {
		return nil
	}
	if n, err := cast.ToFloat64E(value); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n
	}
	if value == "true" || value == "false" {
		return cast.ToBool(value)
	}
	return value
}
