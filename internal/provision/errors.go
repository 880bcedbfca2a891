package provision

import (
	"errors"
	"fmt"
)

// ErrUnknownAPN is returned when a requested APN is not configured on nG1.
var ErrUnknownAPN = errors.New("APN does not exist on nG1")

// ErrUnknownDatacenter is returned when a requested datacenter is not in the catalog.
var ErrUnknownDatacenter = errors.New("datacenter not in catalog")

// CreateError is a create call that failed for a reason other than the
// object already existing. Remote objects created earlier in the run stay.
type CreateError struct {
	Kind string // "service" or "domain"
	Name string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("creating %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// ResolutionError means an object was created (or reported as existing)
// but its id could not be determined unambiguously afterwards.
type ResolutionError struct {
	Kind     string
	Name     string
	ParentID int // domains only
	Matches  int
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Kind == "domain" {
		return fmt.Sprintf("resolving id of domain %q under parent %d: %d matches after create", e.Name, e.ParentID, e.Matches)
	}
	return fmt.Sprintf("resolving id of %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
