package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const maxNameLength = 100

// Service は組織階層の整合性を保ちながら社員を操作するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error
	BuildTree(ctx context.Context, in BuildTreeInput) (*TreeNode, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateEmployeeInput は社員作成時の入力です。ReportsTo が nil ならルートとして作成します。
type CreateEmployeeInput struct {
	Name      string
	ReportsTo *int64
}

// UpdateEmployeeInput は社員更新時の入力です。
// ReportsToSet が true の場合のみ上長を変更し、ReportsTo が nil ならルートに昇格します。
type UpdateEmployeeInput struct {
	ID           int64
	Name         *string
	ReportsTo    *int64
	ReportsToSet bool
}

// DeleteEmployeeInput は社員削除時の入力です。
type DeleteEmployeeInput struct {
	ID int64
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID int64
}

// CreateEmployee は新しい社員を作成します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.ReportsTo != nil && *in.ReportsTo <= 0 {
		return nil, ErrInvalidReportsTo
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockHierarchy(txCtx); err != nil {
			return err
		}

		if in.ReportsTo != nil {
			if err := s.ensureParentExists(txCtx, *in.ReportsTo); err != nil {
				return err
			}
		} else if err := s.ensureNoOtherRoot(txCtx, nil); err != nil {
			return err
		}

		now := s.clock.Now()
		result, err := s.repo.Insert(txCtx, &Employee{
			Name:      name,
			ReportsTo: cloneID(in.ReportsTo),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, s.fail(ctx, "create", err)
	}

	zerolog.Ctx(ctx).Debug().Int64("employee_id", created.ID).Bool("root", created.IsRoot()).Msg("employee created")
	return created, nil
}

// UpdateEmployee は社員の名前や上長を変更します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var name *string
	if in.Name != nil {
		normalized, err := normalizeName(*in.Name)
		if err != nil {
			return nil, err
		}
		name = &normalized
	}

	if in.ReportsToSet && in.ReportsTo != nil && *in.ReportsTo <= 0 {
		return nil, ErrInvalidReportsTo
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockHierarchy(txCtx); err != nil {
			return err
		}

		existing, err := s.repo.FindByID(txCtx, in.ID, false)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{ID: in.ID}
		}

		staged := *existing
		changed := false

		if name != nil && *name != existing.Name {
			staged.Name = *name
			changed = true
		}

		if in.ReportsToSet && !sameID(existing.ReportsTo, in.ReportsTo) {
			if in.ReportsTo == nil {
				if err := s.ensureNoOtherRoot(txCtx, &in.ID); err != nil {
					return err
				}
			} else {
				if err := s.ensureParentExists(txCtx, *in.ReportsTo); err != nil {
					return err
				}
				if err := s.ensureNoCycle(txCtx, in.ID, *in.ReportsTo); err != nil {
					return err
				}
			}
			staged.ReportsTo = cloneID(in.ReportsTo)
			changed = true
		}

		if !changed {
			updated = existing
			return nil
		}

		staged.UpdatedAt = s.clock.Now()

		result, err := s.repo.Save(txCtx, &staged)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, s.fail(ctx, "update", err)
	}

	return updated, nil
}

// DeleteEmployee は部下のいない社員を削除します。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error {
	if in.ID <= 0 {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockHierarchy(txCtx); err != nil {
			return err
		}

		existing, err := s.repo.FindByID(txCtx, in.ID, true)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{ID: in.ID}
		}
		if n := len(existing.Subordinates); n > 0 {
			return &HasSubordinatesError{ID: in.ID, Count: n}
		}

		affected, err := s.repo.DeleteByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return &NotFoundError{ID: in.ID}
		}
		return nil
	}); err != nil {
		return s.fail(ctx, "delete", err)
	}

	return nil
}

// GetEmployee は上長と直属部下を含めて社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	found, err := s.repo.FindByID(ctx, in.ID, true)
	if err != nil {
		return nil, s.fail(ctx, "get", err)
	}
	if found == nil {
		return nil, &NotFoundError{ID: in.ID}
	}
	return found, nil
}

// ListEmployees は全社員を上長と直属部下付きで返します。
func (s *Service) ListEmployees(ctx context.Context) ([]*Employee, error) {
	employees, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list", err)
	}
	return employees, nil
}

func (s *Service) ensureParentExists(ctx context.Context, parentID int64) error {
	exists, err := s.repo.ExistsByID(ctx, parentID)
	if err != nil {
		return err
	}
	if !exists {
		return &ParentNotFoundError{ID: parentID}
	}
	return nil
}

func (s *Service) ensureNoOtherRoot(ctx context.Context, exclude *int64) error {
	filter := Roots()
	filter.ExcludeID = exclude

	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRootAlreadyExists
	}
	return nil
}

// ensureNoCycle は提案された上長からルート方向へ辿り、対象社員に到達しないことを確認します。
func (s *Service) ensureNoCycle(ctx context.Context, id, proposedParent int64) error {
	visited := make(map[int64]struct{})
	current := proposedParent
	for {
		if current == id {
			return &CycleDetectedError{ID: id, ProposedParent: proposedParent}
		}
		if _, seen := visited[current]; seen {
			// 既存データが循環している
			return &CycleDetectedError{ID: id, ProposedParent: proposedParent}
		}
		visited[current] = struct{}{}

		ancestor, err := s.repo.FindByID(ctx, current, false)
		if err != nil {
			return err
		}
		if ancestor == nil || ancestor.ReportsTo == nil {
			return nil
		}
		current = *ancestor.ReportsTo
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	err = storeFailure(op, err)

	logger := zerolog.Ctx(ctx)
	if errors.Is(err, ErrStoreUnavailable) {
		logger.Error().Err(err).Str("op", op).Msg("employee store failure")
	} else {
		logger.Info().Err(err).Str("op", op).Msg("employee operation rejected")
	}
	return err
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
