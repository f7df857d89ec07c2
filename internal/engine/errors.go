package engine

import (
	"errors"

	"flexbase-backend/internal/store"
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, store.ErrUniqueViolation)
}
