package main

import "github.com/kontra-dev/kontra/internal/result"

// Exit codes (spec.md §6): 0 passed, 1 validation failed, 2 config error,
// 3 runtime error.
type exitCode int

const (
	exitPassed           exitCode = 0
	exitValidationFailed exitCode = 1
	exitConfigError      exitCode = 2
	exitRuntimeError     exitCode = 3
)

func exitCodeFor(s result.Status) exitCode {
	switch s {
	case result.StatusPassed:
		return exitPassed
	case result.StatusValidationFailed:
		return exitValidationFailed
	case result.StatusConfigError:
		return exitConfigError
	default:
		return exitRuntimeError
	}
}
