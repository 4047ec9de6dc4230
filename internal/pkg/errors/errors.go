package errors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalid            = errors.New("invalid")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal")
	ErrConfig             = errors.New("invalid configuration")
	ErrInvalidName        = errors.New("invalid database name")
	ErrEmptyIndex         = errors.New("no documents indexed")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrEmbeddingProvider  = errors.New("embedding provider failure")
	ErrGenerationProvider = errors.New("generation provider failure")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsEmptyIndex(err error) bool {
	return errors.Is(err, ErrEmptyIndex)
}
