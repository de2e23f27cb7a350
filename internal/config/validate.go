package config

import (
	"errors"
	"fmt"
	"slices"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// KnownModels are the classifier kinds the model package can build.
var KnownModels = []string{
	"random_forest", "adaboost", "linear_svc", "gradient_boosting", "logistic_regression", "naive_bayes",
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Port < 1 || c.Service.Port > 65535 {
		errs = append(errs, &ValidationError{Field: "service.port", Message: "must be between 1 and 65535"})
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error, fatal"})
	}
	if c.Fetcher.Mode != "http" && c.Fetcher.Mode != "browser" {
		errs = append(errs, &ValidationError{Field: "fetcher.mode", Message: "must be http or browser"})
	}
	if c.Fetcher.RequestsPerSecond < 0 {
		errs = append(errs, &ValidationError{Field: "fetcher.requests_per_second", Message: "must not be negative"})
	}
	if c.Vectorizer.MaxFeatures < 1 {
		errs = append(errs, &ValidationError{Field: "vectorizer.max_features", Message: "must be positive"})
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		errs = append(errs, &ValidationError{Field: "training.test_size", Message: "must be in (0, 1)"})
	}
	if c.Training.Concurrency < 1 {
		errs = append(errs, &ValidationError{Field: "training.concurrency", Message: "must be positive"})
	}
	for _, m := range c.Training.Models {
		if !slices.Contains(KnownModels, m) {
			errs = append(errs, &ValidationError{Field: "training.models", Message: fmt.Sprintf("unknown model %q", m)})
		}
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "mysql" {
		errs = append(errs, &ValidationError{Field: "database.driver", Message: "must be postgres or mysql"})
	}

	return errors.Join(errs...)
}
