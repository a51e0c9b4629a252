package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// Sentinel errors for the Firestore backend
var (
	ErrNotFound        = goerr.New("not found", goerr.T(types.ErrTagNotFound))
	ErrVersionMismatch = goerr.New("embedding model version mismatch")
)

// Firestore is the durable Repository implementation backed by Cloud
// Firestore vector search.
type Firestore struct {
	client *firestore.Client
	index  *indexRepository
}

var _ interfaces.Repository = &Firestore{}

// Option configures the Firestore repository
type Option func(*Firestore)

// WithCollectionPrefix prefixes all collection names, used to isolate test runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.index.collectionPrefix = prefix
	}
}

// New creates a new Firestore repository. databaseID may be empty to use
// the project's default database.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client: client,
		index:  newIndexRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Index returns the index repository
func (f *Firestore) Index() interfaces.IndexRepository {
	return f.index
}

// Close releases the Firestore client
func (f *Firestore) Close() error {
	if err := f.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}
