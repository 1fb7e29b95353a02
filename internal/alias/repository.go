package alias

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no live record matches the lookup.
	ErrNotFound = errors.New("alias not found")
	// ErrCodeTaken is returned when a requested code is already in use.
	ErrCodeTaken = errors.New("code already taken")
	// ErrForbidden is returned when a caller mutates a record they do not own.
	ErrForbidden = errors.New("not the alias owner")
)

// ListFilter narrows a paginated listing.
type ListFilter struct {
	Page       int
	Limit      int
	Search     string
	Tags       []string
	ActiveOnly bool
}

// Page is one page of listed records.
type Page struct {
	Items []*Record
	Page  int
	Limit int
	Total int64
}

// Repository is the durable store of alias records. Deletes are soft:
// deleted records stay referencable by analytics but disappear from reads
// and from code uniqueness.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByCode(ctx context.Context, code string) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, ownerID string, filter ListFilter) (*Page, error)

	// TopCodesByClicks returns the codes with the highest click volume
	// since the given time, busiest first. Used by cache warming.
	TopCodesByClicks(ctx context.Context, n int, since time.Time) ([]string, error)
}
