package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/orgchart/internal/core/employee"
	pgdb "github.com/ogurasousui/orgchart/internal/platform/db/postgres"
)

const (
	employeeUniqueViolationCode     = "23505"
	employeeForeignKeyViolationCode = "23503"
	employeeCheckViolationCode      = "23514"

	employeeReportsToFKey   = "employees_reports_to_fkey"
	employeeSingleRootIndex = "employees_single_root_idx"
	employeeNoSelfReport    = "employees_no_self_report"
	employeeNameNotBlank    = "employees_name_not_blank"
)

// ErrLockOutsideTransaction はトランザクション外で階層ロックを取ろうとした場合のエラーです。
var ErrLockOutsideTransaction = errors.New("postgres: hierarchy lock requires a transaction")

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool    pgdb.Queryer
	lockKey string
}

// NewEmployeeRepository は EmployeeRepository を生成します。lockKey は階層ロックのアドバイザリキーです。
func NewEmployeeRepository(pool pgdb.Queryer, lockKey string) *EmployeeRepository {
	return &EmployeeRepository{pool: pool, lockKey: lockKey}
}

// LockHierarchy はトランザクション終了まで保持されるアドバイザリロックを取得します。
func (r *EmployeeRepository) LockHierarchy(ctx context.Context) error {
	if !pgdb.InTransaction(ctx) {
		return ErrLockOutsideTransaction
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.lockKey); err != nil {
		return fmt.Errorf("lock hierarchy: %w", err)
	}
	return nil
}

// ExistsByID は社員が存在するかを返します。
func (r *EmployeeRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var exists bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by id: %w", err)
	}
	return exists, nil
}

// Count は条件に一致する社員数を返します。
func (r *EmployeeRepository) Count(ctx context.Context, filter employee.CountFilter) (int, error) {
	args := make([]any, 0, 2)
	conditions := make([]string, 0, 3)

	if filter.RootsOnly {
		conditions = append(conditions, "reports_to IS NULL")
	}
	if filter.ReportsTo != nil {
		args = append(args, *filter.ReportsTo)
		conditions = append(conditions, "reports_to = $"+strconv.Itoa(len(args)))
	}
	if filter.ExcludeID != nil {
		args = append(args, *filter.ExcludeID)
		conditions = append(conditions, "id <> $"+strconv.Itoa(len(args)))
	}

	query := `SELECT COUNT(*) FROM employees`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var count int
	if err := exec.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

// Insert は社員を新規作成し、採番済みのレコードを返します。
func (r *EmployeeRepository) Insert(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (name, reports_to, created_at, updated_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, name, reports_to, created_at, updated_at
    `,
		e.Name,
		e.ReportsTo,
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeeWriteError(err, e)
	}
	return created, nil
}

// FindByID は ID で社員を取得します。includeChildren が true の場合は直属部下も読み込みます。
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64, includeChildren bool) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT e.id,
               e.name,
               e.reports_to,
               e.created_at,
               e.updated_at,
               m.name
          FROM employees e
          LEFT JOIN employees m ON m.id = e.reports_to
         WHERE e.id = $1
    `, id)

	found, err := scanEmployeeWithManager(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find employee %d: %w", id, err)
	}

	if !includeChildren {
		return found, nil
	}

	subordinates, err := r.subordinates(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	found.Subordinates = subordinates
	return found, nil
}

func (r *EmployeeRepository) subordinates(ctx context.Context, exec pgdb.Queryer, id int64) ([]employee.Ref, error) {
	rows, err := exec.Query(ctx, `SELECT id, name FROM employees WHERE reports_to = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load subordinates of %d: %w", id, err)
	}
	defer rows.Close()

	refs := make([]employee.Ref, 0)
	for rows.Next() {
		var ref employee.Ref
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan subordinate: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load subordinates of %d: %w", id, err)
	}
	return refs, nil
}

// Save は社員の名前と上長を永続化します。
func (r *EmployeeRepository) Save(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET name = $1,
               reports_to = $2,
               updated_at = $3
         WHERE id = $4
        RETURNING id, name, reports_to, created_at, updated_at
    `,
		e.Name,
		e.ReportsTo,
		e.UpdatedAt,
		e.ID,
	)

	saved, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeeWriteError(err, e)
	}
	return saved, nil
}

// DeleteByID は社員を削除し、影響行数を返します。
func (r *EmployeeRepository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == employeeForeignKeyViolationCode {
			return 0, &employee.HasSubordinatesError{ID: id}
		}
		return 0, fmt.Errorf("delete employee %d: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

// List は全社員を上長と直属部下付きで ID 順に返します。
func (r *EmployeeRepository) List(ctx context.Context) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT e.id,
               e.name,
               e.reports_to,
               e.created_at,
               e.updated_at,
               m.name
          FROM employees e
          LEFT JOIN employees m ON m.id = e.reports_to
         ORDER BY e.id
    `)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0)
	byID := make(map[int64]*employee.Employee)
	for rows.Next() {
		emp, err := scanEmployeeWithManager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		emp.Subordinates = make([]employee.Ref, 0)
		employees = append(employees, emp)
		byID[emp.ID] = emp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	for _, emp := range employees {
		if emp.ReportsTo == nil {
			continue
		}
		if parent, ok := byID[*emp.ReportsTo]; ok {
			parent.Subordinates = append(parent.Subordinates, employee.Ref{ID: emp.ID, Name: emp.Name})
		}
	}

	return employees, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		e         employee.Employee
		reportsTo *int64
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&e.ID, &e.Name, &reportsTo, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e.ReportsTo = reportsTo
	e.CreatedAt = createdAt.UTC()
	e.UpdatedAt = updatedAt.UTC()
	return &e, nil
}

func scanEmployeeWithManager(row pgx.Row) (*employee.Employee, error) {
	var (
		e           employee.Employee
		reportsTo   *int64
		createdAt   time.Time
		updatedAt   time.Time
		managerName *string
	)

	if err := row.Scan(&e.ID, &e.Name, &reportsTo, &createdAt, &updatedAt, &managerName); err != nil {
		return nil, err
	}

	e.ReportsTo = reportsTo
	e.CreatedAt = createdAt.UTC()
	e.UpdatedAt = updatedAt.UTC()
	if reportsTo != nil && managerName != nil {
		e.Manager = &employee.Ref{ID: *reportsTo, Name: *managerName}
	}
	return &e, nil
}

// translateEmployeeWriteError は INSERT / UPDATE の制約違反をドメインエラーへ変換します。
func translateEmployeeWriteError(err error, e *employee.Employee) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &employee.NotFoundError{ID: e.ID}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employeeUniqueViolationCode:
			if pgErr.ConstraintName == employeeSingleRootIndex {
				return employee.ErrRootAlreadyExists
			}
		case employeeForeignKeyViolationCode:
			if pgErr.ConstraintName == employeeReportsToFKey && e.ReportsTo != nil {
				return &employee.ParentNotFoundError{ID: *e.ReportsTo}
			}
		case employeeCheckViolationCode:
			switch pgErr.ConstraintName {
			case employeeNoSelfReport:
				return &employee.CycleDetectedError{ID: e.ID, ProposedParent: e.ID}
			case employeeNameNotBlank:
				return employee.ErrInvalidName
			}
		}
	}

	return err
}
