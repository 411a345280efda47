// Package idgen generates identifiers that sort by creation time.
package idgen

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewSortableID returns a new ULID. IDs generated by one process are strictly
// increasing, so ordering by id orders by creation.
func NewSortableID() string {
	return ulid.Make().String()
}

// TimeOf returns the creation time encoded in a sortable id.
func TimeOf(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sortable id '%s': %w", id, err)
	}
	return ulid.Time(u.Time()), nil
}
