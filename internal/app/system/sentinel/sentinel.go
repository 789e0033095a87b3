// internal/app/system/sentinel/sentinel.go
package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so the lifecycle engine can translate them into coded domain errors
// without depending on the MongoDB driver.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrConflict  = errors.New("conflict")
)
