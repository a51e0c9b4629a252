package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// Sentinel errors for the in-memory backend
var (
	ErrNotFound        = goerr.New("not found", goerr.T(types.ErrTagNotFound))
	ErrVersionMismatch = goerr.New("embedding model version mismatch")
)

// Memory is an in-memory Repository implementation for development and tests
type Memory struct {
	index *indexRepository
}

var _ interfaces.Repository = &Memory{}

// New creates a new in-memory repository
func New() *Memory {
	return &Memory{
		index: newIndexRepository(),
	}
}

// Index returns the index repository
func (m *Memory) Index() interfaces.IndexRepository {
	return m.index
}

// Close is a no-op for the in-memory backend
func (m *Memory) Close() error {
	return nil
}
