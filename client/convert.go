package client

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/frobware/go-flowreprog"
)

// ErrInvalidArgument marks a request the server refused as malformed.
var ErrInvalidArgument = errors.New("invalid argument")

// fromStatus turns a gRPC status back into the domain error the server
// mapped it from, so callers can use errors.Is and errors.As the same
// way against local and remote clients.
func fromStatus(err error, name string) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := st.Message()
	switch st.Code() {
	case codes.NotFound:
		return flowreprog.ErrFlowNotFound{Name: name}
	case codes.FailedPrecondition:
		if strings.Contains(msg, flowreprog.ErrPriorityOverflow.Error()) {
			return fmt.Errorf("%s: %w", trimSentinel(msg, flowreprog.ErrPriorityOverflow), flowreprog.ErrPriorityOverflow)
		}
	case codes.InvalidArgument:
		for _, sentinel := range []error{flowreprog.ErrReservedSuffix, flowreprog.ErrEmptyName, flowreprog.ErrZeroPriority} {
			if strings.Contains(msg, sentinel.Error()) {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, sentinel)
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
	}
	return err
}

// trimSentinel drops a trailing ": <sentinel>" from msg.
func trimSentinel(msg string, sentinel error) string {
	return strings.TrimSuffix(strings.TrimSuffix(msg, sentinel.Error()), ": ")
}
