// Package compileerr defines the typed error surface the rest of the
// compiler returns (spec §7). Every kind carries enough context to
// reproduce the failure without re-running the compiler in debug mode.
package compileerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies which of the documented failure modes an error is.
type Kind string

const (
	KindParseError            Kind = "parse_error"
	KindUnknownReference       Kind = "unknown_reference"
	KindAssetMissing           Kind = "asset_missing"
	KindAssetProbeFailed       Kind = "asset_probe_failed"
	KindExpressionParseError   Kind = "expression_parse_error"
	KindUnresolvableExpression Kind = "unresolvable_expression"
	KindExpressionEvalError    Kind = "expression_eval_error"
	KindDurationOverflow       Kind = "duration_overflow"
	KindInvalidFilterInputs    Kind = "invalid_filter_inputs"
	KindAppRenderTimeout       Kind = "app_render_timeout"
	KindContainerRenderFailed  Kind = "container_render_failed"
	KindEncoderNotFound        Kind = "encoder_not_found"
	KindEncoderFailed          Kind = "encoder_failed"
	KindCancelled              Kind = "cancelled"
	KindDuplicateID            Kind = "duplicate_id"
	KindInvalidDimensions      Kind = "invalid_dimensions"
	KindInvalidFPS             Kind = "invalid_fps"
	KindMultipleErrors         Kind = "multiple_errors"
)

// Error is the concrete type returned for every documented failure
// mode. Fields beyond Kind/Message are populated selectively depending
// on Kind; see the constructors below.
type Error struct {
	Kind    Kind
	Message string
	cause   error

	// Context, populated per-kind.
	Line, Col          int
	FragmentID         string
	TargetName         string
	Path               string
	Text               string
	FragmentIDs        []string
	Requested          int64
	Available          int64
	FilterName         string
	AppID              string
	ContainerID        string
	ExitCode           int
	StderrTail         string
	EntityKind         string
	Width, Height, FPS int
	Errs               []error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func ParseError(line, col int, message string) error {
	return &Error{Kind: KindParseError, Message: message, Line: line, Col: col}
}

func UnknownReference(fragmentID, targetName string) error {
	return &Error{
		Kind:       KindUnknownReference,
		Message:    fmt.Sprintf("fragment %q references unknown target %q", fragmentID, targetName),
		FragmentID: fragmentID,
		TargetName: targetName,
	}
}

func AssetMissing(path string) error {
	return &Error{Kind: KindAssetMissing, Message: fmt.Sprintf("asset not found: %s", path), Path: path}
}

func AssetProbeFailed(path string, cause error) error {
	return &Error{
		Kind:    KindAssetProbeFailed,
		Message: fmt.Sprintf("failed to probe asset: %s", path),
		Path:    path,
		cause:   errors.WithStack(cause),
	}
}

func ExpressionParseError(text string, cause error) error {
	return &Error{
		Kind:    KindExpressionParseError,
		Message: fmt.Sprintf("could not parse expression %q", text),
		Text:    text,
		cause:   cause,
	}
}

func UnresolvableExpression(fragmentIDs []string) error {
	return &Error{
		Kind:        KindUnresolvableExpression,
		Message:     fmt.Sprintf("could not resolve timing for fragments: %v", fragmentIDs),
		FragmentIDs: fragmentIDs,
	}
}

func ExpressionEvalError(text string, cause error) error {
	return &Error{
		Kind:    KindExpressionEvalError,
		Message: fmt.Sprintf("failed to evaluate expression %q", text),
		Text:    text,
		cause:   cause,
	}
}

func DurationOverflow(fragmentID string, requested, available int64) error {
	return &Error{
		Kind:       KindDurationOverflow,
		Message:    fmt.Sprintf("fragment %q requests %dms but only %dms is available", fragmentID, requested, available),
		FragmentID: fragmentID,
		Requested:  requested,
		Available:  available,
	}
}

func InvalidFilterInputs(filterName, details string) error {
	return &Error{
		Kind:       KindInvalidFilterInputs,
		Message:    details,
		FilterName: filterName,
	}
}

func AppRenderTimeout(appID string) error {
	return &Error{Kind: KindAppRenderTimeout, Message: fmt.Sprintf("app %q did not signal render completion in time", appID), AppID: appID}
}

func ContainerRenderFailed(containerID string, cause error) error {
	return &Error{
		Kind:        KindContainerRenderFailed,
		Message:     fmt.Sprintf("failed to rasterize container %q", containerID),
		ContainerID: containerID,
		cause:       cause,
	}
}

func EncoderNotFound(cause error) error {
	return &Error{Kind: KindEncoderNotFound, Message: "encoder binary not found", cause: cause}
}

func EncoderFailed(exitCode int, stderrTail string) error {
	return &Error{
		Kind:       KindEncoderFailed,
		Message:    fmt.Sprintf("encoder exited with code %d", exitCode),
		ExitCode:   exitCode,
		StderrTail: stderrTail,
	}
}

func Cancelled() error {
	return &Error{Kind: KindCancelled, Message: "operation cancelled"}
}

func DuplicateID(entityKind, id string) error {
	return &Error{
		Kind:       KindDuplicateID,
		Message:    fmt.Sprintf("duplicate %s id %q", entityKind, id),
		EntityKind: entityKind,
		TargetName: id,
	}
}

func InvalidDimensions(name string, width, height int) error {
	return &Error{
		Kind:    KindInvalidDimensions,
		Message: fmt.Sprintf("output %q has invalid dimensions %dx%d", name, width, height),
		TargetName: name,
		Width:   width,
		Height:  height,
	}
}

func InvalidFPS(name string, fps int) error {
	return &Error{
		Kind:       KindInvalidFPS,
		Message:    fmt.Sprintf("output %q has invalid fps %d", name, fps),
		TargetName: name,
		FPS:        fps,
	}
}

// Many aggregates zero or more errors accumulated during a validation
// pass into a single error so a caller sees every problem at once
// rather than stopping at the first. An empty errs yields an Error
// with an empty Message, so call sites check len(errs) > 0 first.
func Many(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &Error{
		Kind:    KindMultipleErrors,
		Message: strings.Join(msgs, "; "),
		Errs:    errs,
	}
}

// As is a convenience wrapper around errors.As for the common case of
// switching on Kind.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
