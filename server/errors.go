package server

import "errors"

// ErrNotImplemented is returned by operations the relay protocol cannot
// support; bulk transfer goes through PackZipfile/UnpackZipfile instead.
var ErrNotImplemented = errors.New("not implemented")
