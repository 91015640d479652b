package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/ogurasousui/orgchart/internal/adapters/grpc/orgchartpb"
	"github.com/ogurasousui/orgchart/internal/core/employee"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain は ErrorInfo に設定するエラードメインです。
const ErrorDomain = "orgchart.v1"

// ErrorInfo の Reason に設定する値です。
const (
	ReasonInvalidArgument   = "INVALID_ARGUMENT"
	ReasonEmployeeNotFound  = "EMPLOYEE_NOT_FOUND"
	ReasonParentNotFound    = "PARENT_NOT_FOUND"
	ReasonRootAlreadyExists = "ROOT_ALREADY_EXISTS"
	ReasonHasSubordinates   = "HAS_SUBORDINATES"
	ReasonCycleDetected     = "CYCLE_DETECTED"
	ReasonStoreUnavailable  = "STORE_UNAVAILABLE"
)

func toStatusError(err error) error {
	if err == nil {
		return nil
	}

	code, reason := classify(err)
	st := status.New(code, err.Error())
	if reason == "" {
		return st.Err()
	}

	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: errorMetadata(err),
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

func classify(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled, ""
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, ""
	case errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidName),
		errors.Is(err, employee.ErrInvalidReportsTo),
		errors.Is(err, employee.ErrInvalidDepth),
		errors.Is(err, orgchartpb.ErrInvalidField):
		return codes.InvalidArgument, ReasonInvalidArgument
	case errors.Is(err, employee.ErrParentNotFound):
		return codes.InvalidArgument, ReasonParentNotFound
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return codes.NotFound, ReasonEmployeeNotFound
	case errors.Is(err, employee.ErrRootAlreadyExists):
		return codes.AlreadyExists, ReasonRootAlreadyExists
	case errors.Is(err, employee.ErrHasSubordinates):
		return codes.FailedPrecondition, ReasonHasSubordinates
	case errors.Is(err, employee.ErrCycleDetected):
		return codes.FailedPrecondition, ReasonCycleDetected
	case errors.Is(err, employee.ErrStoreUnavailable):
		return codes.Unavailable, ReasonStoreUnavailable
	default:
		return codes.Internal, ""
	}
}

func errorMetadata(err error) map[string]string {
	var (
		notFound   *employee.NotFoundError
		parent     *employee.ParentNotFoundError
		hasSubs    *employee.HasSubordinatesError
		cycle      *employee.CycleDetectedError
		storeError *employee.StoreError
	)

	switch {
	case errors.As(err, &notFound):
		return map[string]string{"id": strconv.FormatInt(notFound.ID, 10)}
	case errors.As(err, &parent):
		return map[string]string{"reports_to": strconv.FormatInt(parent.ID, 10)}
	case errors.As(err, &hasSubs):
		return map[string]string{
			"id":           strconv.FormatInt(hasSubs.ID, 10),
			"subordinates": strconv.Itoa(hasSubs.Count),
		}
	case errors.As(err, &cycle):
		return map[string]string{
			"id":              strconv.FormatInt(cycle.ID, 10),
			"proposed_parent": strconv.FormatInt(cycle.ProposedParent, 10),
		}
	case errors.As(err, &storeError):
		return map[string]string{"op": storeError.Op}
	default:
		return nil
	}
}

// ErrorReason は gRPC ステータスに含まれる ErrorInfo の Reason を返します。
func ErrorReason(err error) (string, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason(), true
		}
	}
	return "", false
}
