// Package scoutstub declares the interface a contract-suggestion profiler
// would need to satisfy. No implementation lives in this module; a real
// profiler (inferring rule candidates from a sample of a dataset) is
// out-of-scope collaborator work, not part of the validation core.
package scoutstub

import (
	"github.com/kontra-dev/kontra/internal/contract"
	"github.com/kontra-dev/kontra/internal/handle"
)

// Profiler suggests candidate rule specs for a dataset handle, e.g. for a
// future "kontra scout" command that bootstraps a contract from data rather
// than validating against one. The core orchestrator never calls this.
type Profiler interface {
	Suggest(h handle.Handle) ([]contract.RuleSpec, error)
}
