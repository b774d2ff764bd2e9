package ports

import (
	"context"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/domain/document"
)

// Store defines the interface to the remote document store.
// This is a port in hexagonal architecture - the access layer never knows
// which backend is behind it. Implementations are chosen once at startup
// by configuration, never per call.
type Store interface {
	// Connect validates connectivity and credentials. It is idempotent and
	// safe to call concurrently; the access layer invokes it during
	// initialization with bounded retries.
	Connect(ctx context.Context) error

	// Get retrieves a single document by ID. Absence is reported with
	// found=false, not an error.
	Get(ctx context.Context, collection, id string) (document.Document, bool, error)

	// Query evaluates a declarative query against a collection and returns
	// the matching documents in query order.
	Query(ctx context.Context, collection string, q document.Query) ([]document.Document, error)

	// Set writes a document under a caller-chosen ID. With merge=true the
	// supplied fields are merged into any existing document; otherwise the
	// document is replaced in full.
	Set(ctx context.Context, collection, id string, fields document.Fields, merge bool) error

	// Add writes a document under a store-generated ID and returns that ID.
	Add(ctx context.Context, collection string, fields document.Fields) (string, error)

	// Update applies a partial update to an existing document.
	Update(ctx context.Context, collection, id string, fields document.Fields) error

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// RunTransaction executes fn against a transactional view. Writes issued
	// through the transaction commit atomically when fn returns nil and are
	// discarded when it returns an error.
	RunTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// ServerTimestamp returns the sentinel the store replaces with its own
	// commit-time clock.
	ServerTimestamp() any
}

// Transaction is the write surface available inside RunTransaction.
type Transaction interface {
	// Get reads a document within the transaction.
	Get(collection, id string) (document.Document, bool, error)

	// Set buffers a full or merged write.
	Set(collection, id string, fields document.Fields, merge bool) error

	// Update buffers a partial update.
	Update(collection, id string, fields document.Fields) error

	// Delete buffers a deletion.
	Delete(collection, id string) error
}
