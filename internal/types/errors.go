package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies pipeline failures and validator violations.
type ErrorCode string

const (
	// Infeasibility
	CodeAllocationInfeasible ErrorCode = "ALLOCATION_INFEASIBLE"
	CodeUnschedulableItem    ErrorCode = "UNSCHEDULABLE_ITEM"

	// Hard gates
	CodeVaultViolation     ErrorCode = "VAULT_VIOLATION"
	CodeAvoidTierViolation ErrorCode = "AVOID_TIER_VIOLATION"
	CodePageTypeViolation  ErrorCode = "PAGE_TYPE_VIOLATION"
	CodeInsufficientDiv    ErrorCode = "INSUFFICIENT_DIVERSITY"
	CodeFlyerViolation     ErrorCode = "FLYER_REQUIREMENT_VIOLATION"
	CodeTimingCollision    ErrorCode = "TIMING_COLLISION"

	// Contract
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeStaleCertificate ErrorCode = "STALE_CERTIFICATE"
	CodeCancelled        ErrorCode = "CANCELLED"
)

// Stage names a pipeline step.
type Stage string

const (
	StageInput     Stage = "input"
	StageTriggers  Stage = "triggers"
	StageAllocator Stage = "allocator"
	StageTiming    Stage = "timing"
	StagePricing   Stage = "pricing"
	StageFollowup  Stage = "followup"
	StageValidator Stage = "validator"
	StagePersist   Stage = "persist"
)

// Sentinel errors, matched with errors.Is against any *StageError of the
// same code.
var (
	ErrAllocationInfeasible = errors.New("allocation infeasible")
	ErrUnschedulableItem    = errors.New("unschedulable item")
	ErrInvalidInput         = errors.New("invalid input")
	ErrStaleCertificate     = errors.New("stale certificate")
)

var sentinels = map[ErrorCode]error{
	CodeAllocationInfeasible: ErrAllocationInfeasible,
	CodeUnschedulableItem:    ErrUnschedulableItem,
	CodeInvalidInput:         ErrInvalidInput,
	CodeStaleCertificate:     ErrStaleCertificate,
}

// FieldError represents a single field's contract violation.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// StageError is the structured error the pipeline surfaces to callers.
type StageError struct {
	Stage  Stage
	Code   ErrorCode
	Detail string
	Fields []FieldError
	Err    error
}

// NewStageError builds a StageError.
func NewStageError(stage Stage, code ErrorCode, format string, args ...interface{}) *StageError {
	return &StageError{Stage: stage, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Stage, e.Code)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Error()
		}
		fmt.Fprintf(&sb, " [%s]", strings.Join(parts, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *StageError) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a StageError.
func CodeOf(err error) ErrorCode {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
