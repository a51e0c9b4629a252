package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// VenueID identifies the venue whose review corpus is indexed and queried.
// Every index and query operation is scoped to exactly one VenueID.
type VenueID string

// Validate checks if the VenueID is valid
func (v VenueID) Validate() error {
	if v == "" {
		return goerr.New("venue ID cannot be empty")
	}
	return nil
}

// String returns the string representation of VenueID
func (v VenueID) String() string {
	return string(v)
}

// ReviewID identifies a source review. It is assigned by the ingestion
// collaborator and treated as opaque here.
type ReviewID string

// Validate checks if the ReviewID is valid
func (r ReviewID) Validate() error {
	if r == "" {
		return goerr.New("review ID cannot be empty")
	}
	return nil
}

// String returns the string representation of ReviewID
func (r ReviewID) String() string {
	return string(r)
}

// AuthorID identifies a reviewer. Optional: reviews without an author still
// index, but lose the reviewer-independence signal in confidence scoring.
type AuthorID string

// String returns the string representation of AuthorID
func (a AuthorID) String() string {
	return string(a)
}

// ChunkID is a UUID-based identifier for a Chunk
type ChunkID string

// DeriveChunkID derives a deterministic UUID v5 ChunkID from the chunk's
// provenance. Rebuilding an index from the same reviews yields the same
// chunk IDs, which keeps citations reproducible across rebuilds.
func DeriveChunkID(reviewID ReviewID, startOffset, endOffset int) ChunkID {
	name := fmt.Sprintf("%s:%d-%d", reviewID, startOffset, endOffset)
	return ChunkID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String())
}

// String returns the string representation of ChunkID
func (c ChunkID) String() string {
	return string(c)
}
