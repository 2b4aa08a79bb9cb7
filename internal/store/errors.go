package store

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAmbiguousPrefix = errors.New("ambiguous id prefix")
)
