// Package syncerr defines the error taxonomy shared by every syncr package,
// following the error handling design of spec §7.
package syncerr

import (
	"errors"
	"fmt"
)

// Code classifies a SyncError into one of the kinds from spec §7.
type Code string

const (
	// CodeVerification marks a hash or signature mismatch. The caller must
	// abandon the datum and try another peer.
	CodeVerification Code = "VERIFICATION"
	// CodePeerFailure marks a connect error, timeout, decode error, or
	// semantic ERROR response. The caller advances to the next peer.
	CodePeerFailure Code = "PEER_FAILURE"
	// CodeNotFound marks locally missing metadata or absent peer records.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConfiguration marks a missing or incomplete config file. Fatal.
	CodeConfiguration Code = "CONFIGURATION"
	// CodePermission marks a non-owner attempting to publish. Fatal to the
	// operation, not to the process.
	CodePermission Code = "PERMISSION"
	// CodeIO marks a filesystem error, surfaced with path context.
	CodeIO Code = "IO"
)

// SyncError is the concrete error type returned by every syncr operation
// that can fail in a way the caller needs to branch on.
type SyncError struct {
	Code      Code
	Message   string
	Path      string // set for CodeIO
	Peer      string // set for CodePeerFailure
	Retryable bool
	Cause     error
}

func (e *SyncError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	case e.Peer != "":
		return fmt.Sprintf("%s: %s (peer: %s)", e.Code, e.Message, e.Peer)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *SyncError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, syncerr.Verification) style matching on code
// alone, ignoring message/cause.
func (e *SyncError) Is(target error) bool {
	var other *SyncError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Sentinel values for errors.Is comparisons against a bare code.
var (
	Verification  = &SyncError{Code: CodeVerification}
	PeerFailure   = &SyncError{Code: CodePeerFailure}
	NotFound      = &SyncError{Code: CodeNotFound}
	Configuration = &SyncError{Code: CodeConfiguration}
	Permission    = &SyncError{Code: CodePermission}
	IOFailure     = &SyncError{Code: CodeIO}
)

// NewVerification builds a CodeVerification error, never retryable: the
// datum is poisoned and must come from elsewhere.
func NewVerification(message string, cause error) *SyncError {
	return &SyncError{Code: CodeVerification, Message: message, Cause: cause, Retryable: false}
}

// NewPeerFailure builds a CodePeerFailure error for the given peer.
func NewPeerFailure(message, peer string, cause error) *SyncError {
	return &SyncError{Code: CodePeerFailure, Message: message, Peer: peer, Cause: cause, Retryable: true}
}

// NewNotFound builds a CodeNotFound error.
func NewNotFound(message string) *SyncError {
	return &SyncError{Code: CodeNotFound, Message: message, Retryable: false}
}

// NewConfiguration builds a CodeConfiguration error.
func NewConfiguration(message string, cause error) *SyncError {
	return &SyncError{Code: CodeConfiguration, Message: message, Cause: cause, Retryable: false}
}

// NewPermission builds a CodePermission error.
func NewPermission(message string) *SyncError {
	return &SyncError{Code: CodePermission, Message: message, Retryable: false}
}

// NewIO builds a CodeIO error with path context.
func NewIO(message, path string, cause error) *SyncError {
	return &SyncError{Code: CodeIO, Message: message, Path: path, Cause: cause, Retryable: false}
}
