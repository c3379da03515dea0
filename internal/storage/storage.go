package storage

import (
	"context"
	"errors"

	"github.com/fitcheckhq/fitcheck/internal/model"
)

var ErrObjectNotFound = errors.New("object not found")

// Object is one stored image as reported by the remote store.
type Object struct {
	// Handle identifies the object for deletion.
	Handle string
	// Name is the user-facing filename the object was uploaded with.
	Name string
	// Link is a stable, dereferenceable URL for viewable pixels.
	Link string
}

// Store is the narrow contract to the remote asset store. Implementations
// partition objects by category and are scoped to a single user.
type Store interface {
	// List returns the category's objects, oldest upload first.
	List(ctx context.Context, category model.Category) ([]Object, error)

	// Upload stores an inline-encoded image under the category and
	// returns the confirmed object.
	Upload(ctx context.Context, category model.Category, name, dataURI string) (Object, error)

	// Delete removes the object identified by handle.
	Delete(ctx context.Context, handle string) error
}

// UserStores scopes a shared store to one user's namespace.
type UserStores interface {
	ForUser(userID string) Store
}
