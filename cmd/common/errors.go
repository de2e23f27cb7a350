package common

import "errors"

var (
	ErrLoggerRequired = errors.New("logger is required")
	ErrConfigRequired = errors.New("config is required")
	ErrNoURLs         = errors.New("no page URLs given")
)
