package services

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomy markers. Enqueue-time markers are returned synchronously to the
// caller; render-time markers are recorded per group in the job log.
var (
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrNoMatchingFiles   = errors.New("no matching files")
	ErrInvalidGroupSize  = errors.New("invalid group size")
	ErrEmptyInput        = errors.New("empty input")
	ErrOutputExists      = errors.New("output already exists")
	ErrCodecUnavailable  = errors.New("codec unavailable")
	ErrCorruptInput      = errors.New("corrupt input")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind is the user-facing taxonomy name of an error.
type Kind string

const (
	KindDirectoryNotFound Kind = "DirectoryNotFound"
	KindNoMatchingFiles   Kind = "NoMatchingFiles"
	KindUnmatchedFiles    Kind = "UnmatchedFiles"
	KindInvalidGroupSize  Kind = "InvalidGroupSize"
	KindEmptyInput        Kind = "EmptyInput"
	KindOutputExists      Kind = "OutputAlreadyExists"
	KindCodecUnavailable  Kind = "CodecUnavailable"
	KindCorruptInput      Kind = "CorruptInput"
	KindExternalTool      Kind = "ExternalTool"
	KindValidation        Kind = "Validation"
	KindConfiguration     Kind = "Configuration"
	KindNotFound          Kind = "NotFound"
	KindTimeout           Kind = "Timeout"
	KindTransient         Kind = "Transient"
)

// kindOrder lists markers most specific first. EmptyInput wraps
// NoMatchingFiles during planning, so it must be checked before it.
var kindOrder = []struct {
	marker error
	kind   Kind
	hint   string
}{
	{ErrEmptyInput, KindEmptyInput, "add matching image and audio files to both folders"},
	{ErrDirectoryNotFound, KindDirectoryNotFound, "check the folder path exists"},
	{ErrNoMatchingFiles, KindNoMatchingFiles, "check the folder holds files with a supported extension"},
	{ErrInvalidGroupSize, KindInvalidGroupSize, "use a group size of at least 1 or all"},
	{ErrOutputExists, KindOutputExists, "remove the existing file or set render.on_existing"},
	{ErrCodecUnavailable, KindCodecUnavailable, "install ffmpeg with the configured encoder (run stillcut deps)"},
	{ErrCorruptInput, KindCorruptInput, "re-export or replace the listed file"},
	{ErrTimeout, KindTimeout, "raise render.timeout_seconds or check the encoder"},
	{ErrExternalTool, KindExternalTool, "inspect the ffmpeg output in the log"},
	{ErrValidation, KindValidation, "check the job parameters"},
	{ErrConfiguration, KindConfiguration, "check the configuration file"},
	{ErrNotFound, KindNotFound, "check the identifier"},
	{ErrTransient, KindTransient, "retry the job"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ServiceError carries a taxonomy marker plus the context it was raised in.
type ServiceError struct {
	marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.Cause}
}

// ErrorDetails summarises an error for structured logging.
type ErrorDetails struct {
	Kind      Kind
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts logging details from err. Errors outside the taxonomy
// report KindTransient.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindTransient, Message: err.Error()}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.marker) {
			details.Kind = entry.kind
			details.Hint = entry.hint
			break
		}
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		details.Operation = svcErr.Operation
		if svcErr.Message != "" {
			details.Message = svcErr.Message
		}
		details.Cause = svcErr.Cause
	}
	return details
}

// KindOf returns the taxonomy name for err.
func KindOf(err error) Kind {
	return Details(err).Kind
}

// IsEnqueueError reports whether err should reject a job before it is queued.
func IsEnqueueError(err error) bool {
	for _, marker := range []error{ErrDirectoryNotFound, ErrNoMatchingFiles, ErrInvalidGroupSize, ErrEmptyInput} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
