// Package export ships classification results to Elasticsearch.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/product-detector/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/retry"
)

const pingTimeout = 5 * time.Second

var ErrIndexFailed = errors.New("elasticsearch index request failed")

// NewClient connects to cfg.URL and verifies the cluster answers a ping.
func NewClient(ctx context.Context, cfg config.ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	addr := normalizeURL(cfg.URL)
	client, err := es.NewClient(es.Config{Addresses: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	err = retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		res, err := client.Ping(client.Ping.WithContext(pingCtx))
		if err != nil {
			return err
		}
		defer func() { _ = res.Body.Close() }()
		if res.IsError() {
			return fmt.Errorf("ping: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect elasticsearch at %s: %w", addr, err)
	}
	log.Info("Elasticsearch connection established", logger.String("url", addr))
	return client, nil
}

func normalizeURL(raw string) string {
	if raw == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "http://" + raw
	}
	return raw
}

// SegmentDocument is one accepted (classifier, segment) pair.
type SegmentDocument struct {
	URL          string    `json:"url"`
	Classifier   string    `json:"classifier"`
	SegmentIndex int       `json:"segment_index"`
	HTML         string    `json:"html"`
	Text         string    `json:"text"`
	DetectedAt   time.Time `json:"detected_at"`
}

// DocumentID is stable for a (url, classifier, segment) triple so that
// re-exporting a page overwrites instead of duplicating.
func DocumentID(url, classifier string, segmentIndex int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%d", url, classifier, segmentIndex))
	return hex.EncodeToString(sum[:16])
}

// Documents flattens r into one document per accepted segment, ordered by
// classifier name then document order.
func Documents(r *domain.PageResult) []SegmentDocument {
	bySegment := make(map[string]domain.Segment, len(r.Segments))
	for _, seg := range r.Segments {
		if _, dup := bySegment[seg.HTML]; !dup {
			bySegment[seg.HTML] = seg
		}
	}

	var docs []SegmentDocument
	for _, name := range r.ClassifierNames() {
		for _, html := range r.Accepted[name] {
			seg, ok := bySegment[html]
			if !ok {
				seg = domain.Segment{Index: -1, HTML: html}
			}
			docs = append(docs, SegmentDocument{
				URL:          r.URL,
				Classifier:   name,
				SegmentIndex: seg.Index,
				HTML:         html,
				Text:         seg.Text,
				DetectedAt:   r.ProcessedAt,
			})
		}
	}
	return docs
}

// ElasticsearchSink indexes accepted segments. Repeated index failures
// open a circuit breaker so a batch run stops waiting on a down cluster.
type ElasticsearchSink struct {
	client  *es.Client
	index   string
	log     logger.Logger
	breaker *circuitbreaker.Breaker
}

func NewElasticsearchSink(client *es.Client, index string, log logger.Logger) *ElasticsearchSink {
	s := &ElasticsearchSink{client: client, index: index, log: log}
	s.breaker = circuitbreaker.New(circuitbreaker.Config{
		OnStateChange: func(from, to circuitbreaker.State) {
			s.log.Warn("Elasticsearch export circuit changed state",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return s
}

// WithBreaker replaces the default circuit breaker.
func (s *ElasticsearchSink) WithBreaker(b *circuitbreaker.Breaker) *ElasticsearchSink {
	s.breaker = b
	return s
}

// Export indexes every accepted pair of result and returns how many were
// written. It stops at the first failed request.
func (s *ElasticsearchSink) Export(ctx context.Context, pageURL string, result *domain.PageResult) (int, error) {
	if result.URL == "" {
		cp := *result
		cp.URL = pageURL
		result = &cp
	}

	written := 0
	for _, doc := range Documents(result) {
		if err := s.breaker.Execute(func() error { return s.index1(ctx, doc) }); err != nil {
			return written, err
		}
		written++
	}
	s.log.Info("Exported accepted segments",
		logger.String("url", pageURL),
		logger.String("index", s.index),
		logger.Int("documents", written),
	)
	return written, nil
}

func (s *ElasticsearchSink) index1(ctx context.Context, doc SegmentDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal segment document: %w", err)
	}

	id := DocumentID(doc.URL, doc.Classifier, doc.SegmentIndex)
	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithDocumentID(id),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index segment %s: %w", id, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("%w: %s: %s", ErrIndexFailed, res.Status(), bytes.TrimSpace(msg))
	}
	return nil
}
