package dashboard

import "errors"

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrListNotFound     = errors.New("list not found")
	ErrNotTaskOwner     = errors.New("only the creator may discard this task")
	ErrInvalidPriority  = errors.New("priority must be high, medium or low")
	ErrInvalidDecision  = errors.New("decision not allowed for this task")
	ErrNoControlAccess  = errors.New("not authorised to access the control dashboard")
	ErrForbidden        = errors.New("not allowed to perform this operation")
	ErrNotInRole        = errors.New("address does not hold that role")
	ErrAlreadyInRole    = errors.New("address already holds that role")
	ErrEmptySubject     = errors.New("task heading can't be left empty")
	ErrUnknownRole      = errors.New("unknown role")
	ErrUnknownSortField = errors.New("unknown sort field")
)
