package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNetwork covers transport failures, timeouts and server-side faults;
	// the call may be retried.
	ErrNetwork = errors.New("network failure")
	// ErrValidation means the service rejected the request; retrying will not help.
	ErrValidation = errors.New("validation failure")
	// ErrNotFound means the target no longer exists remotely.
	ErrNotFound = errors.New("not found on remote")
	// ErrUnauthorized means the access token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
)

type Failure int

const (
	FailureNone Failure = iota
	FailureNetwork
	FailureValidation
	FailureNotFound
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "ok"
	case FailureNetwork:
		return "network"
	case FailureValidation:
		return "validation"
	case FailureNotFound:
		return "not_found"
	}
	return "unknown"
}

// Classify maps err to the failure kind the engine acts on. Unauthorized and
// unrecognized errors are treated as retryable network failures.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrNotFound):
		return FailureNotFound
	default:
		return FailureNetwork
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.OutOfRange:
		return fmt.Errorf("%w: %s", ErrValidation, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s", ErrNetwork, st.Code(), st.Message())
	}
}
