// Package engineers holds the narrow engineer view the access-control core needs.
// Full engineer records, skill sheets and their CRUD live with the persistence layer.
package engineers

import "context"

// Status is the availability status of an engineer.
type Status string

const (
	StatusWaiting     Status = "WAITING"
	StatusWaitingSoon Status = "WAITING_SOON"
	StatusAssigned    Status = "ASSIGNED"
	StatusInactive    Status = "INACTIVE"
)

// Engineer is the projection of an engineer record used for visibility decisions.
type Engineer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Directory looks up engineers. Find returns errors.ErrNotFound for unknown ids.
type Directory interface {
	Find(ctx context.Context, id string) (*Engineer, error)
}
