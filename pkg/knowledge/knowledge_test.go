package knowledge

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grovia-client/pkg/api"
	"grovia-client/pkg/storage"
)

func newKnowledgeClient(t *testing.T, handler http.Handler) (*Client, *int) {
	t.Helper()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := storage.Open(filepath.Join(t.TempDir(), "cache.db"), "test_", "secret", logger)
	t.Cleanup(func() { cache.Close() })

	client, err := api.New(server.URL, "")
	require.NoError(t, err)

	return NewClient(client, cache, time.Hour, logger), &requests
}

func TestDiseasesCached(t *testing.T) {
	kb, requests := newKnowledgeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"disease_id": "blight", "disease_name": "Late Blight"}]`))
	}))

	ctx := context.Background()
	first, err := kb.Diseases(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "Late Blight", first[0].DiseaseName)

	second, err := kb.Diseases(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, *requests)
}

func TestDiseaseDetailCached(t *testing.T) {
	kb, requests := newKnowledgeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/knowledge/diseases/blight", r.URL.Path)
		w.Write([]byte(`{"disease_id": "blight", "disease_name": "Late Blight", "symptoms": ["Dark spots"], "treatment": ["Fungicide"]}`))
	}))

	ctx := context.Background()
	detail, err := kb.Disease(ctx, "blight")
	require.NoError(t, err)
	require.Equal(t, "Late Blight", detail.DiseaseName)
	require.Equal(t, []string{"Dark spots"}, detail.Symptoms)

	_, err = kb.Disease(ctx, "blight")
	require.NoError(t, err)
	require.Equal(t, 1, *requests)
}

func TestDiseasesFetchFailure(t *testing.T) {
	kb, _ := newKnowledgeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := kb.Diseases(context.Background())
	require.Error(t, err)
}

func TestParseDiseaseList(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		count   int
		wantErr bool
	}{
		{
			name:  "Bare array",
			body:  `[{"disease_id": "a"}, {"disease_id": "b"}]`,
			count: 2,
		},
		{
			name:  "Data array",
			body:  `{"data": [{"disease_id": "a"}]}`,
			count: 1,
		},
		{
			name:  "Nested diseases",
			body:  `{"success": true, "data": {"diseases": [{"disease_id": "a"}]}}`,
			count: 1,
		},
		{
			name:    "Unrecognized",
			body:    `{"status": "ok"}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := parseDiseaseList([]byte(tc.body))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, list, tc.count)
		})
	}
}
