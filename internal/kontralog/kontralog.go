// Package kontralog wraps zerolog with the environment-driven verbosity
// toggles a CLI-driven validation run needs (spec.md §6): KONTRA_VERBOSE
// for general diagnostic logging, KONTRA_IO_DEBUG for per-materializer I/O
// detail.
package kontralog

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	once       sync.Once
	ioDebugOn  bool
)

// Init configures the global zerolog logger once per process, matching the
// env-driven level selection pattern the rest of the ambient stack uses
// (KONTRA_VERBOSE / KONTRA_IO_DEBUG, spec.md §6).
func Init() {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		level := zerolog.InfoLevel
		if os.Getenv("KONTRA_VERBOSE") == "1" {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false})
		ioDebugOn = os.Getenv("KONTRA_IO_DEBUG") == "1"
	})
}

// IODebugEnabled reports whether KONTRA_IO_DEBUG=1 was set, used by the
// orchestrator to decide whether to attach materializer io_debug() output
// to RunStats (spec.md §6).
func IODebugEnabled() bool {
	return ioDebugOn
}

// Phase logs one "phase complete" event carrying an orchestrator phase's
// name and duration; stats.Builder.EndPhase calls it for every phase it
// records in RunStats `phases_ms` (spec.md §6).
func Phase(name string, dur time.Duration) {
	log.Info().Str("phase", name).Dur("duration", dur).Msg("phase complete")
}

// Event returns a zerolog event builder at info level for ad-hoc
// structured logging (rule decisions, tier transitions).
func Event() *zerolog.Event {
	return log.Info()
}

// Debug returns a zerolog event builder at debug level, only emitted when
// KONTRA_VERBOSE=1.
func Debug() *zerolog.Event {
	return log.Debug()
}

// Error returns a zerolog event builder at error level for run-fatal
// conditions (resource errors, contract errors, spec.md §7).
func Error(err error) *zerolog.Event {
	return log.Error().Err(err)
}
