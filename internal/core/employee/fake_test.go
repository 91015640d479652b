package employee

import (
	"context"
	"sort"
	"sync"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeEmployeeRepo struct {
	mu        sync.Mutex
	employees map[int64]*Employee
	sequence  int64
	locks     int

	// failures はメソッド名ごとに返却するエラーです。
	failures map[string]error
	// onFind は FindByID の直前に呼ばれます。走査中の変更を再現するために使います。
	onFind func(id int64)
	// deleteAffects は DeleteByID が返す件数を上書きします。
	deleteAffects *int64
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{
		employees: make(map[int64]*Employee),
		failures:  make(map[string]error),
	}
}

func (r *fakeEmployeeRepo) fail(op string) error {
	return r.failures[op]
}

func (r *fakeEmployeeRepo) LockHierarchy(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("LockHierarchy"); err != nil {
		return err
	}
	r.locks++
	return nil
}

func (r *fakeEmployeeRepo) ExistsByID(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ExistsByID"); err != nil {
		return false, err
	}
	_, ok := r.employees[id]
	return ok, nil
}

func (r *fakeEmployeeRepo) Count(_ context.Context, filter CountFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Count"); err != nil {
		return 0, err
	}
	count := 0
	for _, emp := range r.employees {
		if filter.ExcludeID != nil && emp.ID == *filter.ExcludeID {
			continue
		}
		if filter.RootsOnly && emp.ReportsTo != nil {
			continue
		}
		if filter.ReportsTo != nil && (emp.ReportsTo == nil || *emp.ReportsTo != *filter.ReportsTo) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeEmployeeRepo) Insert(_ context.Context, e *Employee) (*Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Insert"); err != nil {
		return nil, err
	}
	if e.ReportsTo != nil {
		if _, ok := r.employees[*e.ReportsTo]; !ok {
			return nil, &ParentNotFoundError{ID: *e.ReportsTo}
		}
	}
	clone := cloneEmployee(e)
	r.sequence++
	clone.ID = r.sequence
	r.employees[clone.ID] = clone
	return cloneEmployee(clone), nil
}

func (r *fakeEmployeeRepo) FindByID(_ context.Context, id int64, includeChildren bool) (*Employee, error) {
	if r.onFind != nil {
		r.onFind(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("FindByID"); err != nil {
		return nil, err
	}
	emp, ok := r.employees[id]
	if !ok {
		return nil, nil
	}
	result := cloneEmployee(emp)
	if includeChildren {
		result.Subordinates = r.subordinatesLocked(id)
	}
	return result, nil
}

func (r *fakeEmployeeRepo) Save(_ context.Context, e *Employee) (*Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Save"); err != nil {
		return nil, err
	}
	if _, ok := r.employees[e.ID]; !ok {
		return nil, &NotFoundError{ID: e.ID}
	}
	clone := cloneEmployee(e)
	clone.Manager = nil
	clone.Subordinates = nil
	r.employees[e.ID] = clone
	return cloneEmployee(clone), nil
}

func (r *fakeEmployeeRepo) DeleteByID(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("DeleteByID"); err != nil {
		return 0, err
	}
	if r.deleteAffects != nil {
		return *r.deleteAffects, nil
	}
	if _, ok := r.employees[id]; !ok {
		return 0, nil
	}
	delete(r.employees, id)
	return 1, nil
}

func (r *fakeEmployeeRepo) List(_ context.Context) ([]*Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("List"); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(r.employees))
	for id := range r.employees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]*Employee, 0, len(ids))
	for _, id := range ids {
		emp := cloneEmployee(r.employees[id])
		if emp.ReportsTo != nil {
			if parent, ok := r.employees[*emp.ReportsTo]; ok {
				emp.Manager = &Ref{ID: parent.ID, Name: parent.Name}
			}
		}
		emp.Subordinates = r.subordinatesLocked(id)
		result = append(result, emp)
	}
	return result, nil
}

func (r *fakeEmployeeRepo) subordinatesLocked(id int64) []Ref {
	subs := make([]Ref, 0)
	for _, emp := range r.employees {
		if emp.ReportsTo != nil && *emp.ReportsTo == id {
			subs = append(subs, Ref{ID: emp.ID, Name: emp.Name})
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}

// put はバリデーションを通さずに行を書き込みます。破損データの再現に使います。
func (r *fakeEmployeeRepo) put(id int64, name string, reportsTo *int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employees[id] = &Employee{ID: id, Name: name, ReportsTo: cloneID(reportsTo)}
	if id > r.sequence {
		r.sequence = id
	}
}

func (r *fakeEmployeeRepo) snapshot() map[int64]*Employee {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[int64]*Employee, len(r.employees))
	for id, emp := range r.employees {
		copied[id] = cloneEmployee(emp)
	}
	return copied
}

func (r *fakeEmployeeRepo) restore(state map[int64]*Employee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employees = state
}

func (r *fakeEmployeeRepo) lockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks
}

// fakeTxManager は読み書きトランザクションを直列化し、エラー時に状態を巻き戻します。
type fakeTxManager struct {
	mu        sync.Mutex
	repo      *fakeEmployeeRepo
	commits   int
	rollbacks int
	readOnly  int
}

func newFakeTxManager(repo *fakeEmployeeRepo) *fakeTxManager {
	return &fakeTxManager{repo: repo}
}

func (m *fakeTxManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly++
	return fn(ctx)
}

func (m *fakeTxManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.restore(state)
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func cloneEmployee(emp *Employee) *Employee {
	if emp == nil {
		return nil
	}
	copy := *emp
	copy.ReportsTo = cloneID(emp.ReportsTo)
	if emp.Manager != nil {
		manager := *emp.Manager
		copy.Manager = &manager
	}
	if emp.Subordinates != nil {
		copy.Subordinates = append([]Ref(nil), emp.Subordinates...)
	}
	return &copy
}

func idPtr(id int64) *int64 {
	return &id
}
