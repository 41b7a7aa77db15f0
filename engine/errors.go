package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures.
type ErrorKind int

const (
	// SourceUnsupported means no engine can be built for the route.
	SourceUnsupported ErrorKind = iota + 1
	// EngineInitFailed means the engine could not be constructed or configured.
	EngineInitFailed
	// ManifestLoadFailed means the stream description could not be fetched or parsed.
	ManifestLoadFailed
	// PlaybackStalled is recoverable and only ever surfaces as buffering.
	PlaybackStalled
	// FatalEngineError is an unrecoverable failure, usually after retries ran out.
	FatalEngineError
)

var kindNames = map[ErrorKind]string{
	SourceUnsupported:  "SourceUnsupported",
	EngineInitFailed:   "EngineInitFailed",
	ManifestLoadFailed: "ManifestLoadFailed",
	PlaybackStalled:    "PlaybackStalled",
	FatalEngineError:   "FatalEngineError",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ErrorInfo is a structured engine failure.
type ErrorInfo struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Newf creates an ErrorInfo with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *ErrorInfo {
	return &ErrorInfo{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an ErrorInfo around err.
func Wrap(kind ErrorKind, err error, message string) *ErrorInfo {
	return &ErrorInfo{Kind: kind, Message: message, Err: err}
}

func (e *ErrorInfo) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
}

func (e *ErrorInfo) Unwrap() error {
	return e.Err
}

// HasKind reports whether any ErrorInfo in err's chain has the given kind.
func HasKind(err error, kind ErrorKind) bool {
	for err != nil {
		var info *ErrorInfo
		if !errors.As(err, &info) {
			return false
		}
		if info.Kind == kind {
			return true
		}
		err = info.Err
	}
	return false
}

// AsInfo converts any error into an ErrorInfo, defaulting to FatalEngineError.
func AsInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}
	return Wrap(FatalEngineError, err, "")
}
