package flickr

import "errors"

var (
	// ErrNotFound means upstream confirmed the entity is absent (stat=fail
	// or an empty collection where content was expected). Safe to cache as
	// a negative result.
	ErrNotFound = errors.New("flickr: not found")

	// ErrUnavailable means upstream could not be reached or answered with a
	// non-2xx status. Absence was NOT confirmed; callers must not cache.
	ErrUnavailable = errors.New("flickr: upstream unavailable")
)
