package engine

import "errors"

// ErrNotWebMap is returned when the requested item exists but is not a web
// map. The operation aborts before any mutation is attempted.
var ErrNotWebMap = errors.New("item is not a web map")

// ErrUpdateDeclined is returned by global operations when the content store
// acknowledges the update request with a falsy result. Nothing durable was
// confirmed, so the operation reports no updated layers.
var ErrUpdateDeclined = errors.New("content store declined the update")

// ErrVerificationFailed is returned by global filter runs when the re-fetched
// document does not show the intended filter on any layer that matched the
// target field before the save.
var ErrVerificationFailed = errors.New("saved changes could not be verified")

// SaveErrorKey is the reserved key under which per-layer operations record a
// persistence failure in their Errors map. Layer outcomes computed before the
// failed save are still reported alongside it.
const SaveErrorKey = "_save"
