package employee

import "context"

// Repository は社員永続化の抽象です。
// トランザクションはコンテキスト経由で受け渡されます。
type Repository interface {
	// LockHierarchy は現在のトランザクションが終わるまで階層への書き込みを直列化します。
	LockHierarchy(ctx context.Context) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context, filter CountFilter) (int, error)
	Insert(ctx context.Context, employee *Employee) (*Employee, error)
	// FindByID は存在しない場合 nil, nil を返します。
	FindByID(ctx context.Context, id int64, includeChildren bool) (*Employee, error)
	Save(ctx context.Context, employee *Employee) (*Employee, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context) ([]*Employee, error)
}

// CountFilter は件数取得の条件です。
type CountFilter struct {
	// RootsOnly は reports_to が NULL の社員だけを数えます。
	RootsOnly bool
	// ReportsTo は指定社員の直属部下だけを数えます。
	ReportsTo *int64
	// ExcludeID は指定社員を除外します。
	ExcludeID *int64
}

// Roots はルート社員を数える条件を返します。
func Roots() CountFilter {
	return CountFilter{RootsOnly: true}
}

// SubordinatesOf は直属部下を数える条件を返します。
func SubordinatesOf(id int64) CountFilter {
	return CountFilter{ReportsTo: &id}
}
