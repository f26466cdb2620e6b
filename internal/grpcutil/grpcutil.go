package grpcutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrorCode extracts a gRPC error code from an error, looking through wrapped
// errors. Context errors are mapped to their gRPC counterparts. For any other
// non-gRPC error, it returns codes.Unknown.
func ErrorCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}

	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code()
	}

	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}

	return codes.Unknown
}

func IsCanceled(err error) bool {
	return ErrorCode(err) == codes.Canceled
}

// IsUnavailable returns true if the call failed because the member could not be
// reached or dropped the connection.
func IsUnavailable(err error) bool {
	return ErrorCode(err) == codes.Unavailable
}

// TrailerValue returns the first value of the key in the metadata, or an empty string.
func TrailerValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}

	return ""
}
