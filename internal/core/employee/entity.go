package employee

import "time"

// Employee は組織階層を構成する社員エンティティです。
// ReportsTo が nil の社員がルートになります。
type Employee struct {
	ID        int64
	Name      string
	ReportsTo *int64
	CreatedAt time.Time
	UpdatedAt time.Time

	// 以下は読み取り時にのみ埋められる派生情報です。
	Manager      *Ref
	Subordinates []Ref
}

// Ref は関連社員の最小限の参照です。
type Ref struct {
	ID   int64
	Name string
}

// IsRoot はルート社員かどうかを返します。
func (e *Employee) IsRoot() bool {
	return e.ReportsTo == nil
}

// SubordinateIDs は直属部下の ID を返します。
func (e *Employee) SubordinateIDs() []int64 {
	ids := make([]int64, 0, len(e.Subordinates))
	for _, sub := range e.Subordinates {
		ids = append(ids, sub.ID)
	}
	return ids
}

// TreeNode は部下ツリーの時点スナップショットです。
type TreeNode struct {
	ID       int64
	Name     string
	Children []TreeNode
}

// Size はこのノードを含むツリー全体のノード数を返します。
func (n TreeNode) Size() int {
	total := 1
	for _, child := range n.Children {
		total += child.Size()
	}
	return total
}
