package sink_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypost-systems/waypost/internal/models"
	"github.com/waypost-systems/waypost/internal/sink"
)

// newFakeOpenSearch returns an httptest server that acknowledges pings and
// index requests, recording the index calls it sees.
func newFakeOpenSearch(t *testing.T, indexStatus int) (*httptest.Server, func() []indexedDoc) {
	t.Helper()

	var (
		mu   sync.Mutex
		docs []indexedDoc
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"version":{"number":"2.11.0","distribution":"opensearch"}}`)
			return
		}

		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		docs = append(docs, indexedDoc{path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(indexStatus)
		io.WriteString(w, `{"result":"created"}`)
	}))
	t.Cleanup(srv.Close)

	captured := func() []indexedDoc {
		mu.Lock()
		defer mu.Unlock()
		return append([]indexedDoc(nil), docs...)
	}
	return srv, captured
}

type indexedDoc struct {
	path string
	body []byte
}

func TestWarehouseSink_Deliver(t *testing.T) {
	srv, captured := newFakeOpenSearch(t, http.StatusCreated)

	s, err := sink.NewWarehouseSink(sink.WarehouseConfig{
		URL:   srv.URL,
		Index: "waypost-staging",
	})
	require.NoError(t, err)

	receivedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := locationEntry("55555555-5555-5555-5555-555555555555", "u-1", receivedAt, models.EventLocationUpdate)
	entry.Raw.ReceivedAt = receivedAt

	require.NoError(t, s.Deliver(context.Background(), entry))

	docs := captured()
	require.Len(t, docs, 1)
	assert.Equal(t, "/waypost-staging/_doc/55555555-5555-5555-5555-555555555555", docs[0].path)

	var doc struct {
		Key        string                  `json:"idempotency_key"`
		Record     models.NormalizedRecord `json:"record"`
		ReceivedAt string                  `json:"received_at"`
	}
	require.NoError(t, json.Unmarshal(docs[0].body, &doc))
	assert.Equal(t, entry.Key, doc.Key)
	assert.Equal(t, "u-1", doc.Record.UserID())
	assert.Equal(t, receivedAt.Format(time.RFC3339Nano), doc.ReceivedAt)
}

func TestWarehouseSink_IndexError(t *testing.T) {
	srv, _ := newFakeOpenSearch(t, http.StatusServiceUnavailable)

	s, err := sink.NewWarehouseSink(sink.WarehouseConfig{
		URL:   srv.URL,
		Index: "waypost-staging",
	})
	require.NoError(t, err)

	entry := locationEntry("66666666-6666-6666-6666-666666666666", "u-1", time.Now(), models.EventLocationUpdate)
	assert.Error(t, s.Deliver(context.Background(), entry))
}

func TestWarehouseSink_UnreachableCluster(t *testing.T) {
	_, err := sink.NewWarehouseSink(sink.WarehouseConfig{
		URL:   "http://127.0.0.1:1",
		Index: "waypost-staging",
	})
	assert.Error(t, err)
}
