package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/idxdb/pkg/config"
	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/planner"
	"github.com/adfharrison1/idxdb/pkg/server"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportThenExplain(t *testing.T) {
	t.Setenv("IDXDB_LOGGING_LEVEL", "error")
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "db.idxb")
	input := filepath.Join(dir, "persons.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"_id": {"$oid": "5f1d7a3b9d1e8a2b3c4d5e6f"}, "dob": {"age": 64}},
		{"dob": {"age": 20}},
		{"dob": {"age": 70}}
	]`), 0o644))

	out, err := run(t, "import", "--data-file", dataFile, "--file", input, "--collection", "contacts", "--drop")
	require.NoError(t, err)
	assert.Contains(t, out, "3 document(s) imported successfully. 0 document(s) failed to import.")

	out, err = run(t, "explain", "--data-file", dataFile, "--collection", "contacts",
		"--filter", `{"dob.age": {"$gt": 60}}`, "--verbosity", "executionStats")
	require.NoError(t, err)

	var explanation domain.Explanation
	require.NoError(t, json.Unmarshal([]byte(out), &explanation))
	assert.Equal(t, domain.StageCollScan, explanation.WinningPlan.Stage)
	require.NotNil(t, explanation.Stats)
	assert.Equal(t, 2, explanation.Stats.NReturned)
	assert.Equal(t, 3, explanation.Stats.DocsExamined)

	out, err = run(t, "import", "--data-file", dataFile, "--file", input, "--collection", "contacts")
	require.NoError(t, err)
	assert.Contains(t, out, "2 document(s) imported successfully. 1 document(s) failed to import.")
}

func TestImport_RequiresFlags(t *testing.T) {
	_, err := run(t, "import", "--collection", "contacts")
	assert.Error(t, err)
}

func TestExplain_MissingCollection(t *testing.T) {
	t.Setenv("IDXDB_LOGGING_LEVEL", "error")
	_, err := run(t, "explain", "--data-file", filepath.Join(t.TempDir(), "none.idxb"), "--collection", "contacts")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoad(t *testing.T) {
	engine := storage.NewStorageEngine()
	srv := server.NewServer(config.Default(), engine)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out, err := run(t, "load", "--url", ts.URL, "--collection", "people", "--count", "250", "--batch", "100", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Progress: 250/250 documents")
	assert.Contains(t, out, "Inserted 250 document(s), 0 rejected")

	n, err := engine.Count("people")
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	res, err := planner.New(engine).Find(context.Background(), "people", domain.FindRequest{
		Filter: map[string]any{"dob.age": map[string]any{"$gte": 18, "$lte": 99}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Documents, 250)
	date, ok := res.Documents[0].Get("dob.date")
	require.True(t, ok)
	assert.True(t, date.IsDate())

	_, err = run(t, "load", "--url", ts.URL, "--batch", "5000")
	assert.Error(t, err)
}
