package models

import "errors"

// Failure taxonomy shared across services and handlers. Write-path store
// failures are wrapped as ErrPersistence and propagated; read/list failures
// are logged and swallowed into empty results by the catalog service.
var (
	ErrAuth        = errors.New("authentication failed")
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("not found")
)
