package database

import "errors"

// ErrClosed is returned when the store is used after Close
var ErrClosed = errors.New("store closed")
