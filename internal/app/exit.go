package app

import (
	"errors"

	"go.trai.ch/loam/internal/core/domain"
)

// Exit codes returned by the CLI. Full success is 0; the non-zero codes let
// callers tell a resolution failure from a build failure from an integrity
// failure without parsing output.
const (
	ExitFailure    = 1
	ExitResolution = 2
	ExitBuild      = 3
	ExitIntegrity  = 4
)

var resolutionErrors = []error{
	domain.ErrConstraintConflict,
	domain.ErrCycleDetected,
	domain.ErrResolutionDidNotConverge,
	domain.ErrNotFound,
}

var buildErrors = []error{
	domain.ErrUnsupportedBuildType,
	domain.ErrMissingFile,
	domain.ErrHeaderNotFound,
	domain.ErrExternalDependencyNotFound,
	domain.ErrCompileFailed,
	domain.ErrToolNotFound,
	domain.ErrToolFailed,
	domain.ErrScriptFailed,
	domain.ErrScriptTimeout,
	domain.ErrScriptEscape,
	domain.ErrBuildFailed,
	domain.ErrUnpackFailed,
	domain.ErrTreeWrite,
}

// ExitCode maps an operation error onto the process exit code. Integrity
// wins over build classification: a run that failed both ways is reported as
// tampered, never as merely broken.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, domain.ErrIntegrityViolation) {
		return ExitIntegrity
	}
	for _, sentinel := range buildErrors {
		if errors.Is(err, sentinel) {
			return ExitBuild
		}
	}
	for _, sentinel := range resolutionErrors {
		if errors.Is(err, sentinel) {
			return ExitResolution
		}
	}
	return ExitFailure
}
