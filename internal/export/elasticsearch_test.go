package export_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/export"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

type fakeCluster struct {
	mu     sync.Mutex
	status int
	docs   map[string]export.SegmentDocument
	paths  []string
}

func newFakeCluster(t *testing.T, status int) (*fakeCluster, *httptest.Server) {
	t.Helper()
	fc := &fakeCluster{status: status, docs: map[string]export.SegmentDocument{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodHead || r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}

		fc.mu.Lock()
		defer fc.mu.Unlock()
		fc.paths = append(fc.paths, r.Method+" "+r.URL.Path)
		if fc.status != http.StatusCreated {
			w.WriteHeader(fc.status)
			_, _ = w.Write([]byte(`{"error":"index_closed_exception"}`))
			return
		}
		var doc export.SegmentDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fc.docs[r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]] = doc
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)
	return fc, srv
}

func sampleResult() *domain.PageResult {
	return &domain.PageResult{
		URL: "https://shop.example/list",
		Segments: []domain.Segment{
			{Index: 0, HTML: "<li>A</li>", Text: "A"},
			{Index: 1, HTML: "<li>B</li>", Text: "B"},
		},
		Accepted: map[string][]string{
			"naive_bayes":         {"<li>A</li>", "<li>B</li>"},
			"logistic_regression": {"<li>B</li>"},
			"adaboost":            {},
		},
		ProcessedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDocuments(t *testing.T) {
	t.Parallel()

	docs := export.Documents(sampleResult())
	require.Len(t, docs, 3)
	assert.Equal(t, "logistic_regression", docs[0].Classifier)
	assert.Equal(t, 1, docs[0].SegmentIndex)
	assert.Equal(t, "B", docs[0].Text)
	assert.Equal(t, "naive_bayes", docs[1].Classifier)
	assert.Equal(t, 0, docs[1].SegmentIndex)
	assert.Equal(t, 1, docs[2].SegmentIndex)
}

func TestDocumentID_Stable(t *testing.T) {
	t.Parallel()

	a := export.DocumentID("u", "naive_bayes", 1)
	assert.Equal(t, a, export.DocumentID("u", "naive_bayes", 1))
	assert.NotEqual(t, a, export.DocumentID("u", "naive_bayes", 2))
	assert.Len(t, a, 32)
}

func TestElasticsearchSink_Export(t *testing.T) {
	t.Parallel()

	fc, srv := newFakeCluster(t, http.StatusCreated)
	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	sink := export.NewElasticsearchSink(client, "product_segments", logger.NewNop())
	n, err := sink.Export(context.Background(), "https://shop.example/list", sampleResult())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	require.Len(t, fc.docs, 3)
	id := export.DocumentID("https://shop.example/list", "naive_bayes", 0)
	assert.Equal(t, "PUT /product_segments/_doc/"+id, fc.paths[1])
	assert.Equal(t, "<li>A</li>", fc.docs[id].HTML)
}

func TestElasticsearchSink_ExportStopsOnError(t *testing.T) {
	t.Parallel()

	_, srv := newFakeCluster(t, http.StatusServiceUnavailable)
	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)

	sink := export.NewElasticsearchSink(client, "product_segments", logger.NewNop())
	n, err := sink.Export(context.Background(), "https://shop.example/list", sampleResult())
	require.ErrorIs(t, err, export.ErrIndexFailed)
	assert.Equal(t, 0, n)
}

func TestElasticsearchSink_CircuitOpensAfterFailures(t *testing.T) {
	t.Parallel()

	fc, srv := newFakeCluster(t, http.StatusServiceUnavailable)
	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}, DisableRetry: true})
	require.NoError(t, err)

	sink := export.NewElasticsearchSink(client, "product_segments", logger.NewNop()).
		WithBreaker(circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, Cooldown: time.Hour}))

	for range 2 {
		_, err = sink.Export(context.Background(), "https://shop.example/list", sampleResult())
		require.ErrorIs(t, err, export.ErrIndexFailed)
	}
	_, err = sink.Export(context.Background(), "https://shop.example/list", sampleResult())
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Len(t, fc.paths, 2)
}

func TestNewClient_Pings(t *testing.T) {
	t.Parallel()

	_, srv := newFakeCluster(t, http.StatusCreated)
	client, err := export.NewClient(context.Background(), config.ElasticsearchConfig{URL: srv.URL}, logger.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, client)
}
