// Package service owns the fitted vectorizer and classifier ensemble and
// exposes page-level detection and classification.
package service

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/north-cloud/product-detector/internal/aggregator"
	"github.com/jonesrussell/north-cloud/product-detector/internal/artifact"
	"github.com/jonesrussell/north-cloud/product-detector/internal/detector"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/ensemble"
	"github.com/jonesrussell/north-cloud/product-detector/internal/extract"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/telemetry"
	"github.com/jonesrussell/north-cloud/product-detector/internal/vectorizer"
)

var ErrNotInitialized = errors.New("service: not initialized")

type models struct {
	vec *vectorizer.Vectorizer
	ens *ensemble.Ensemble
}

// Service is safe for concurrent use. Detect works at any time; Classify
// requires a successful Init.
type Service struct {
	extractor extract.Extractor
	log       logger.Logger
	metrics   *telemetry.Metrics
	models    atomic.Pointer[models]
}

// New returns an uninitialised service. metrics may be nil.
func New(extractor extract.Extractor, log logger.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{extractor: extractor, log: log, metrics: metrics}
}

// Init installs a loaded bundle. It fails when the vectorizer is missing or
// unfitted, or when no classifier loaded; individual load failures are
// logged and skipped.
func (s *Service) Init(b *artifact.Bundle) error {
	if b == nil || b.Vectorizer == nil || !b.Vectorizer.Fitted() {
		return fmt.Errorf("init: %w", vectorizer.ErrNotFitted)
	}
	for name, err := range b.Failures {
		s.log.Warn("Classifier failed to load", logger.String("classifier", name), logger.Error(err))
		s.metrics.RecordClassifier(name, 0, true)
	}

	ens, err := ensemble.New(b.Models)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	s.models.Store(&models{vec: b.Vectorizer, ens: ens})
	s.log.Info("Detector initialized",
		logger.Int("features", b.Vectorizer.Dim()),
		logger.Strings("classifiers", ens.Names()),
		logger.Int("failed_classifiers", len(b.Failures)),
	)
	return nil
}

// Ready reports whether Init has succeeded.
func (s *Service) Ready() bool { return s.models.Load() != nil }

// Classifiers lists loaded classifier names, or nil before Init.
func (s *Service) Classifiers() []string {
	if m := s.models.Load(); m != nil {
		return m.ens.Names()
	}
	return nil
}

// Detect returns the minimal product containers of page.
func (s *Service) Detect(page string) ([]domain.Segment, error) {
	start := time.Now()
	segments, err := detector.Detect(strings.NewReader(page))
	s.metrics.RecordPage("detect", err, len(segments), time.Since(start))
	return segments, err
}

// Classify detects segments in page and labels each with every classifier.
// Classifiers that fail are reported in PageResult.Failures; an error is
// returned only when none succeeded.
func (s *Service) Classify(url, page string) (*domain.PageResult, error) {
	start := time.Now()
	res, err := s.classify(url, page)
	segments := 0
	if res != nil {
		segments = len(res.Segments)
	}
	s.metrics.RecordPage("classify", err, segments, time.Since(start))
	return res, err
}

func (s *Service) classify(url, page string) (*domain.PageResult, error) {
	m := s.models.Load()
	if m == nil {
		return nil, ErrNotInitialized
	}

	segments, err := detector.Detect(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	res := &domain.PageResult{
		URL:         url,
		Segments:    segments,
		Accepted:    make(map[string][]string),
		ProcessedAt: time.Now().UTC(),
	}
	if len(segments) == 0 {
		for _, name := range m.ens.Names() {
			res.Accepted[name] = []string{}
		}
		return res, nil
	}

	pageText, err := s.extractor.Extract(page)
	if err != nil {
		return nil, fmt.Errorf("extract page text: %w", err)
	}
	segmentTexts := make([]string, len(segments))
	for i, seg := range segments {
		if segmentTexts[i], err = s.extractor.Extract(seg.HTML); err != nil {
			return nil, fmt.Errorf("extract segment %d text: %w", i, err)
		}
	}

	x, err := m.vec.FusePage(pageText, segmentTexts)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}

	preds, predErr := m.ens.Predict(x)
	if preds == nil {
		return nil, fmt.Errorf("predict: %w", predErr)
	}
	accepted, aggFailures := aggregator.Group(segments, preds.Labels)
	res.Accepted = accepted

	failures := make(map[string]error, len(preds.Failures)+len(aggFailures))
	for name, ferr := range preds.Failures {
		failures[name] = ferr
	}
	for name, ferr := range aggFailures {
		failures[name] = ferr
	}
	if len(failures) > 0 {
		res.Failures = make(map[string]string, len(failures))
	}
	for name, ferr := range failures {
		res.Failures[name] = ferr.Error()
		s.log.Warn("Classifier failed", logger.String("classifier", name), logger.String("url", url), logger.Error(ferr))
		s.metrics.RecordClassifier(name, 0, true)
	}
	for name, html := range accepted {
		s.metrics.RecordClassifier(name, len(html), false)
	}

	if predErr != nil {
		return res, fmt.Errorf("classify: %w", predErr)
	}
	return res, nil
}
