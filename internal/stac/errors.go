package stac

import (
	"errors"
	"fmt"
)

var (
	ErrBBoxLength         = errors.New("bbox must be [west, south, east, north]")
	ErrInvalidCollections = errors.New("invalid collections")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrPageLimit          = errors.New("page limit reached")
	ErrNotChunkable       = errors.New("query has neither a datetime range nor a spatial extent")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stac %s: status=%d body=%q", e.Op, e.Code, e.Body)
}
