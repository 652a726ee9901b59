package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// StageError reports a stage whose external tool invocation failed.
type StageError struct {
	// Stage is the name of the failed stage.
	Stage string
	// Err is the underlying tool error, typically an execx.ExitError.
	Err error
}

func (e *StageError) Error() string {
	if e == nil {
		return "stage failed"
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsStageError reports whether err indicates a failed stage.
func IsStageError(err error) bool {
	var target *StageError
	return errors.As(err, &target)
}

// PrerequisiteError reports a stage invoked before its prerequisites completed.
type PrerequisiteError struct {
	// Stage is the stage that was blocked.
	Stage string
	// Missing lists the prerequisite stages that are not completed.
	Missing []string
}

func (e *PrerequisiteError) Error() string {
	if e == nil {
		return "prerequisite stage not completed"
	}
	return fmt.Sprintf("stage %q requires completed stages: %s", e.Stage, strings.Join(e.Missing, ", "))
}

// IsPrerequisiteError reports whether err indicates a missing prerequisite stage.
func IsPrerequisiteError(err error) bool {
	var target *PrerequisiteError
	return errors.As(err, &target)
}

// PermissionError reports insufficient AWS permissions for the deployment.
type PermissionError struct {
	// Detail is the captured checker output explaining what is missing.
	Detail string
}

func (e *PermissionError) Error() string {
	if e == nil || e.Detail == "" {
		return "insufficient AWS permissions"
	}
	return "insufficient AWS permissions: " + e.Detail
}

// IsPermissionError reports whether err indicates insufficient permissions.
func IsPermissionError(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}
