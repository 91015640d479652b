package employee

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidID         = errors.New("employee: invalid id")
	ErrInvalidName       = errors.New("employee: invalid name")
	ErrInvalidReportsTo  = errors.New("employee: invalid reports_to")
	ErrEmployeeNotFound  = errors.New("employee: not found")
	ErrParentNotFound    = errors.New("employee: parent not found")
	ErrRootAlreadyExists = errors.New("employee: root employee already exists")
	ErrHasSubordinates   = errors.New("employee: employee has subordinates")
	ErrCycleDetected     = errors.New("employee: reporting cycle detected")
	ErrStoreUnavailable  = errors.New("employee: store unavailable")
)

// NotFoundError は指定 ID の社員が存在しないことを表します。
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("employee: employee %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrEmployeeNotFound }

// ParentNotFoundError は reports_to が解決できないことを表します。
type ParentNotFoundError struct {
	ID int64
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("employee: manager %d specified in reports_to not found", e.ID)
}

func (e *ParentNotFoundError) Unwrap() error { return ErrParentNotFound }

// HasSubordinatesError は部下が残っているため削除できないことを表します。
type HasSubordinatesError struct {
	ID    int64
	Count int
}

func (e *HasSubordinatesError) Error() string {
	if e.Count <= 0 {
		return fmt.Sprintf("employee: employee %d has subordinates, reassign or remove them first", e.ID)
	}
	return fmt.Sprintf("employee: employee %d has %d subordinates, reassign or remove them first", e.ID, e.Count)
}

func (e *HasSubordinatesError) Unwrap() error { return ErrHasSubordinates }

// CycleDetectedError は付け替えにより循環が発生することを表します。
type CycleDetectedError struct {
	ID             int64
	ProposedParent int64
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("employee: assigning %d as manager of %d would create a cycle", e.ProposedParent, e.ID)
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// StoreError は永続化層の障害をラップします。
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("employee: %s: store unavailable: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

var domainErrors = []error{
	ErrInvalidID,
	ErrInvalidName,
	ErrInvalidReportsTo,
	ErrEmployeeNotFound,
	ErrParentNotFound,
	ErrRootAlreadyExists,
	ErrHasSubordinates,
	ErrCycleDetected,
	ErrStoreUnavailable,
}

// storeFailure はドメインエラー以外を StoreError として包みます。
func storeFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}
