package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/persona-core/internal/types"
)

type fakeMemoryReader struct {
	rows []types.MemorySummary
}

func (f *fakeMemoryReader) ListMemories(ctx context.Context, limit int, importanceMin float64) ([]types.MemorySummary, error) {
	out := make([]types.MemorySummary, 0, len(f.rows))
	for _, r := range f.rows {
		if r.Importance >= importanceMin {
			out = append(out, r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func TestHandleMemoriesFiltersByImportance(t *testing.T) {
	reader := &fakeMemoryReader{rows: []types.MemorySummary{
		{ID: "1", Content: "low", Importance: 0.1, Timestamp: time.Now()},
		{ID: "2", Content: "high", Importance: 0.9, Timestamp: time.Now()},
	}}
	s := NewServer(NewInspector(nil, nil), reader)

	req := httptest.NewRequest(http.MethodGet, "/memories?importance_min=0.5", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "high")
	assert.NotContains(t, rec.Body.String(), "\"low\"")
}

func TestHandleMemoriesNilReaderReturnsEmpty(t *testing.T) {
	s := NewServer(NewInspector(nil, nil), nil)
	req := httptest.NewRequest(http.MethodGet, "/memories", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"memories":[]`)
}

func TestInspectorAwakeDefaultsTrue(t *testing.T) {
	i := NewInspector(nil, nil)
	assert.True(t, i.Awake())
	i.SetAwake(false)
	assert.False(t, i.Awake())
}
