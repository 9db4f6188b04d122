package scheduler

import "errors"

// Rejections returned by engine operations. None of them mean local state
// changed.
var (
	ErrReadOnly        = errors.New("event is read-only")
	ErrDragInProgress  = errors.New("a drag is already in progress")
	ErrNotDragging     = errors.New("no drag in progress")
	ErrEventNotFound   = errors.New("event not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidSlot     = errors.New("invalid date or time slot")
	ErrUnsupportedFeed = errors.New("source has no change feed")
)
