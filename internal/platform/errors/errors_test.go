package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeAuthenticationFailure, codes.Unauthenticated},
		{CodeOrderingViolation, codes.FailedPrecondition},
		{CodeConsistencyFailure, codes.FailedPrecondition},
		{CodeRangeViolation, codes.OutOfRange},
		{CodeReplayOrSpoofing, codes.PermissionDenied},
		{CodeOverflow, codes.OutOfRange},
		{CodeInvalidArgument, codes.InvalidArgument},
		{CodeNotFound, codes.NotFound},
		{CodeIntegrity, codes.DataLoss},
		{CodeUnknown, codes.Unknown},
		{Code("SOMETHING_ELSE"), codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestRejectionCodes(t *testing.T) {
	if !CodeOverflow.Rejection() {
		t.Fatal("expected overflow to be a rejection")
	}
	if CodeNotFound.Rejection() {
		t.Fatal("expected not found not to be a rejection")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("apply move: %w", New(CodeRangeViolation, "distance 65 exceeds movement 50"))
	if !stderrors.Is(err, &Error{Code: CodeRangeViolation}) {
		t.Fatal("expected wrapped error to match by code")
	}
	if HasCode(err, CodeOverflow) {
		t.Fatal("expected code mismatch")
	}
	if CodeOf(err) != CodeRangeViolation {
		t.Fatalf("expected code %s, got %s", CodeRangeViolation, CodeOf(err))
	}
	if CodeOf(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for plain error")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeIntegrity, "append record", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "append record: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestToGRPCStatus(t *testing.T) {
	err := WithMetadata(CodeOrderingViolation, "nonce 1 <= 1", map[string]string{"nonce": "1"})
	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected grpc status")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", st.Code())
	}
	var found bool
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			found = true
			if info.Reason != string(CodeOrderingViolation) {
				t.Fatalf("unexpected reason %q", info.Reason)
			}
			if info.Metadata["nonce"] != "1" {
				t.Fatalf("unexpected metadata %v", info.Metadata)
			}
		}
	}
	if !found {
		t.Fatal("expected error info detail")
	}
}

func TestFromGRPCStatusRoundTrip(t *testing.T) {
	orig := New(CodeRangeViolation, "distance 60 exceeds movement 50").With("piece", "1")
	got := FromGRPCStatus(orig.ToGRPCStatus())
	if got.Code != CodeRangeViolation {
		t.Fatalf("expected range violation, got %s", got.Code)
	}
	if got.Message != orig.Message {
		t.Fatalf("message = %q, want %q", got.Message, orig.Message)
	}
	if got.Metadata["piece"] != "1" {
		t.Fatalf("unexpected metadata %v", got.Metadata)
	}
}

func TestFromGRPCStatusWithoutDetails(t *testing.T) {
	if got := FromGRPCStatus(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := FromGRPCStatus(status.Error(codes.Unavailable, "down")); got.Code != CodeUnknown {
		t.Fatalf("expected unknown code, got %s", got.Code)
	}
	if got := FromGRPCStatus(stderrors.New("plain")); got.Code != CodeUnknown {
		t.Fatalf("expected unknown code, got %s", got.Code)
	}
}

func TestWithCopiesMetadata(t *testing.T) {
	base := WithMetadata(CodeOverflow, "too far", map[string]string{"dx": "9"})
	derived := base.With("dy", "7")
	if _, ok := base.Metadata["dy"]; ok {
		t.Fatal("expected base metadata unchanged")
	}
	if derived.Metadata["dx"] != "9" || derived.Metadata["dy"] != "7" {
		t.Fatalf("unexpected metadata %v", derived.Metadata)
	}
}

func TestCodedKeepsOuterMessage(t *testing.T) {
	inner := WithMetadata(CodeIntegrity, "chain hash mismatch", map[string]string{"seq": "4"})
	got := Coded(fmt.Errorf("match m1: %w", inner))
	if got.Code != CodeIntegrity || got.Message != "match m1: chain hash mismatch" || got.Metadata["seq"] != "4" {
		t.Fatalf("unexpected coded error %+v", got)
	}
	if got := Coded(stderrors.New("disk full")); got.Code != CodeUnknown {
		t.Fatalf("expected unknown code, got %s", got.Code)
	}
	if Coded(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
