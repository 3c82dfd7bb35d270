package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/graphstore"
	"github.com/fyrsmithlabs/memcore/internal/memcore"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	blocks, err := blockstore.New(filepath.Join(dir, "blocks"), filepath.Join(dir, "archive"), nil)
	require.NoError(t, err)

	core := memcore.New(
		blocks,
		graphstore.NewMemoryStore(),
		vectorstore.NewMemoryStore(),
		embedder.NewDeterministic(384),
		tokencount.NewHeuristic(4),
		retriever.Config{DefaultTopK: 5, RRFK: 60, Sparse: retriever.SparseBoosts{TitleBoost: 0.2, BodyBoost: 0.1, TagBoost: 0.1, UserBoost: 0.15}},
		nil, nil,
	)

	srv, err := NewServer(core, nil, nil)
	require.NoError(t, err)
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleRecordAndEncode(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(recordRequest{Title: "t", Body: "hello world", InfoType: "static"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blocks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created["id"])

	encodeReq := httptest.NewRequest(http.MethodPost, "/api/v1/blocks/"+created["id"]+"/encode", nil)
	encodeRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(encodeRec, encodeReq)
	require.Equal(t, http.StatusNoContent, encodeRec.Code)
}

func TestHandleEncodeNotFoundReturns404(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blocks/KB-00000000-000/encode", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListBlocks(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(recordRequest{Title: "t", Body: "body", InfoType: "static"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/blocks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Echo().ServeHTTP(httptest.NewRecorder(), req)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/blocks", nil)
	listRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(listRec, listReq)

	require.Equal(t, http.StatusOK, listRec.Code)
	var blocks []*blockstore.Block
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &blocks))
	require.Len(t, blocks, 1)
}
