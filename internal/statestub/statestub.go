// Package statestub declares the interface a run-history persistence layer
// would need to satisfy. Run() returns a RunOutput and a Status; saving that
// result anywhere durable (a database, a file, an API) is the caller's job,
// not the core's.
package statestub

import "github.com/kontra-dev/kontra/internal/result"

// Sink persists a completed run's output. No implementation lives in this
// module — cmd/kontra writes results to stdout only.
type Sink interface {
	Save(out *result.RunOutput, status result.Status) error
}
