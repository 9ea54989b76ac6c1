package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wiki-scraper/internal/config"
	"github.com/sells-group/wiki-scraper/internal/model"
	"github.com/sells-group/wiki-scraper/internal/progress"
)

type fixture struct {
	store *progress.Store
	list  string
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	paths := config.PathsConfig{
		CharacterList: filepath.Join(root, "data", "canon_character_list.txt"),
		OutputFile:    filepath.Join(root, "output", "characters.json"),
		FailuresFile:  filepath.Join(root, "output", "scraping_failures.json"),
		ProgressDir:   filepath.Join(root, "output", "progress"),
	}
	ps := progress.New(paths)
	require.NoError(t, ps.Init())

	srv := httptest.NewServer(New(ps, paths.CharacterList).Handler())
	t.Cleanup(srv.Close)
	return &fixture{store: ps, list: paths.CharacterList, srv: srv}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	luffy := model.NewCharacterRecord("Monkey_D._Luffy", "https://onepiece.fandom.com/wiki/Monkey_D._Luffy/")
	luffy["Bounty"] = "3,000,000,000"
	oden := model.NewCharacterRecord("Kōzuki_Oden", "https://onepiece.fandom.com/wiki/Kōzuki_Oden/")
	oden["Status"] = "Deceased"

	_, err := f.store.SaveBatch(model.NewBatch(1, []model.CharacterRecord{luffy, oden}))
	require.NoError(t, err)
	_, err = f.store.Consolidate()
	require.NoError(t, err)
	require.NoError(t, f.store.SaveFailures([]model.FailureEntry{
		{Name: "Ghost", Reason: model.ReasonExtractionFailed},
	}))
	require.NoError(t, progress.WriteIdentifiers(f.list, []string{"Monkey_D._Luffy", "Kōzuki_Oden", "Ghost", "Nami"}))
}

func get(t *testing.T, f *fixture, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	var body map[string]string
	resp := get(t, f, "/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
}

func TestCharacters(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var res model.ConsolidatedResult
	resp := get(t, f, "/characters", &res)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, res.CharacterCount)
	require.Len(t, res.Characters, 2)
	assert.Equal(t, "Monkey_D._Luffy", res.Characters[0].SourceName())
}

func TestCharacters_NoOutputYet(t *testing.T) {
	f := newFixture(t)

	var res model.ConsolidatedResult
	resp := get(t, f, "/characters", &res)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, res.CharacterCount)
	assert.Empty(t, res.Characters)
}

func TestCharacter_ByName(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var rec model.CharacterRecord
	resp := get(t, f, "/characters/Monkey_D._Luffy", &rec)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3,000,000,000", rec["Bounty"])
}

func TestCharacter_EscapedName(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var rec model.CharacterRecord
	resp := get(t, f, "/characters/K%C5%8Dzuki_Oden", &rec)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Deceased", rec["Status"])
}

func TestCharacter_NotFound(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var body map[string]string
	resp := get(t, f, "/characters/Nami", &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "character not found")
}

func TestFailures(t *testing.T) {
	f := newFixture(t)

	var empty []model.FailureEntry
	resp := get(t, f, "/failures", &empty)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	f.seed(t)
	var failures []model.FailureEntry
	get(t, f, "/failures", &failures)
	require.Len(t, failures, 1)
	assert.Equal(t, "Ghost", failures[0].Name)
	assert.Equal(t, model.ReasonExtractionFailed, failures[0].Reason)
}

func TestProgress(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var sum progress.Summary
	resp := get(t, f, "/progress", &sum)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, sum.Requested)
	assert.Equal(t, 2, sum.Scraped)
	assert.Equal(t, 2, sum.Remaining)
	assert.Equal(t, 1, sum.BatchFiles)
	assert.Equal(t, 2, sum.Consolidated)
	assert.Equal(t, 1, sum.Failures)
}

func TestProgress_NoIdentifierList(t *testing.T) {
	f := newFixture(t)

	var sum progress.Summary
	resp := get(t, f, "/progress", &sum)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, sum.Requested)
	assert.Equal(t, 0, sum.Remaining)
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/characters", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	resp := get(t, f, "/webhook/enrich", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
