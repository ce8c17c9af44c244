// Package errors provides the typed error hierarchy for remapflame.
// Every failure in a run is fatal, but the type still tells the driver
// what to report: a usage problem, an unreadable file, or a bad mapping line.
package errors

import (
	goerrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// ErrorType represents the category of error for classification and reporting.
type ErrorType string

// Error type constants.
const (
	ErrTypeFile        ErrorType = "file"
	ErrTypeConfig      ErrorType = "config"
	ErrTypeParsing     ErrorType = "parsing"
	ErrTypeReplacement ErrorType = "replacement"
	ErrTypeBackup      ErrorType = "backup"
)

// RemapError is the base error type that carries the category, the file
// involved (if any) and the underlying cause. Every specific error type
// embeds it, so errors.As with *RemapError reaches the category of any
// failure, and Unwrap exposes the cause to errors.Is.
type RemapError struct {
	Type    ErrorType
	Path    string
	Message string
	Cause   error
}

func (e *RemapError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *RemapError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RemapError of the same type, so that
// errors.Is(err, &RemapError{Type: ErrTypeParsing}) works through wrapping.
func (e *RemapError) Is(target error) bool {
	t, ok := target.(*RemapError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// FileError represents file system operation errors on a single path.
// The more specific file errors embed it; a bare FileError is returned only
// when the failure is neither a missing file nor a permission problem.
type FileError struct {
	*RemapError
}

// NewFileError creates a file operation error with context.
func NewFileError(path, message string, cause error) *FileError {
	return &FileError{
		RemapError: &RemapError{
			Type:    ErrTypeFile,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// FileNotFoundError is returned when an input file does not exist.
type FileNotFoundError struct {
	*FileError
}

// NewFileNotFoundError creates a file not found error.
func NewFileNotFoundError(path string, cause error) *FileNotFoundError {
	return &FileNotFoundError{
		FileError: NewFileError(path, "file not found", cause),
	}
}

// FileNotWritableError is returned when the output file cannot be created or written.
type FileNotWritableError struct {
	*FileError
}

// NewFileNotWritableError creates a file write error.
func NewFileNotWritableError(path string, cause error) *FileNotWritableError {
	return &FileNotWritableError{
		FileError: NewFileError(path, "file not writable", cause),
	}
}

// FileNotReadableError is returned when an input file exists but cannot be read.
type FileNotReadableError struct {
	*FileError
}

// NewFileNotReadableError creates a file read error.
func NewFileNotReadableError(path string, cause error) *FileNotReadableError {
	return &FileNotReadableError{
		FileError: NewFileError(path, "file not readable", cause),
	}
}

// ConfigError represents usage and configuration validation errors.
// It is raised before any file is opened: a wrong argument count, a bad
// flag value or an unreadable --config file. Path is set only in the last case.
type ConfigError struct {
	*RemapError
}

// NewConfigError creates a configuration error without path context.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		RemapError: &RemapError{
			Type:    ErrTypeConfig,
			Message: message,
			Cause:   cause,
		},
	}
}

// NewConfigErrorWithPath creates a configuration error tied to a config file.
func NewConfigErrorWithPath(path, message string, cause error) *ConfigError {
	return &ConfigError{
		RemapError: &RemapError{
			Type:    ErrTypeConfig,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// ParsingError represents malformed input: a mapping line without a comma,
// or a target that is not a valid profile in pprof mode. Line is 1-based
// and zero when the failure is not tied to a single line.
type ParsingError struct {
	*RemapError
	Line int
}

// NewParsingError creates a parsing error with file and context information.
func NewParsingError(path, message string, cause error) *ParsingError {
	return &ParsingError{
		RemapError: &RemapError{
			Type:    ErrTypeParsing,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// NewParsingErrorAtLine creates a parsing error for a specific mapping line.
func NewParsingErrorAtLine(path string, line int, message string) *ParsingError {
	err := NewParsingError(path, fmt.Sprintf("line %d: %s", line, message), nil)
	err.Line = line
	return err
}

// ReplacementError represents a failure while streaming the transformed
// output into its staging file. The target was readable; the write side broke
// part way, so no output file was committed. Path names the output file.
type ReplacementError struct {
	*RemapError
}

// NewReplacementError creates a replacement operation error.
func NewReplacementError(path, message string, cause error) *ReplacementError {
	return &ReplacementError{
		RemapError: &RemapError{
			Type:    ErrTypeReplacement,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// BackupError represents errors while backing up an existing output file.
type BackupError struct {
	*RemapError
}

// NewBackupError creates a backup operation error.
func NewBackupError(path, message string, cause error) *BackupError {
	return &BackupError{
		RemapError: &RemapError{
			Type:    ErrTypeBackup,
			Path:    path,
			Message: message,
			Cause:   cause,
		},
	}
}

// WrapReadError classifies an error raised while opening or reading path.
// fs.ErrNotExist becomes a FileNotFoundError and fs.ErrPermission a
// FileNotReadableError; anything else is a plain FileError. The reported path
// is absolute, and a nil err returns nil.
func WrapReadError(path string, err error) error {
	if err == nil {
		return nil
	}

	absPath := absOrSelf(path)
	switch {
	case goerrors.Is(err, fs.ErrNotExist):
		return NewFileNotFoundError(absPath, err)
	case goerrors.Is(err, fs.ErrPermission):
		return NewFileNotReadableError(absPath, err)
	default:
		return NewFileError(absPath, "file operation failed", err)
	}
}

// WrapWriteError classifies an error raised while creating or writing path.
// Any write failure is reported as not writable.
func WrapWriteError(path string, err error) error {
	if err == nil {
		return nil
	}
	return NewFileNotWritableError(absOrSelf(path), err)
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
