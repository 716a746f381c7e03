// Package errors provides structured error handling for arena transitions.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Transition rejections. Every one of these is fail-closed: the rejected
	// transition leaves no trace in any state or tree.
	CodeAuthenticationFailure Code = "AUTHENTICATION_FAILURE"
	CodeOrderingViolation     Code = "ORDERING_VIOLATION"
	CodeConsistencyFailure    Code = "CONSISTENCY_FAILURE"
	CodeRangeViolation        Code = "RANGE_VIOLATION"
	CodeReplayOrSpoofing      Code = "REPLAY_OR_SPOOFING"
	CodeOverflow              Code = "OVERFLOW"

	// Input and storage errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeIntegrity       Code = "INTEGRITY_VIOLATION"
)

// GRPCCode returns the appropriate gRPC status code for this error code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeAuthenticationFailure:
		return codes.Unauthenticated
	case CodeReplayOrSpoofing:
		return codes.PermissionDenied
	case CodeOrderingViolation,
		CodeConsistencyFailure:
		return codes.FailedPrecondition
	case CodeRangeViolation,
		CodeOverflow:
		return codes.OutOfRange
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeIntegrity:
		return codes.DataLoss
	case CodeUnknown:
		return codes.Unknown
	default:
		return codes.Internal
	}
}

// Rejection reports whether the code is one of the transition rejection codes.
func (c Code) Rejection() bool {
	switch c {
	case CodeAuthenticationFailure,
		CodeOrderingViolation,
		CodeConsistencyFailure,
		CodeRangeViolation,
		CodeReplayOrSpoofing,
		CodeOverflow:
		return true
	default:
		return false
	}
}
