package employee

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidDepth は MaxDepth が負の場合に返却されます。
var ErrInvalidDepth = errors.New("employee: invalid tree depth")

// BuildTreeInput は部下ツリー取得時の入力です。
type BuildTreeInput struct {
	ID int64
	// MaxDepth は展開する階層数です。0 は無制限を表します。
	MaxDepth int
	// Snapshot が true の場合、読み取り専用トランザクション内で一貫したツリーを構築します。
	Snapshot bool
}

type treeFrame struct {
	node    TreeNode
	pending []int64
	depth   int
}

// BuildTree は指定社員を頂点とする部下ツリーを構築します。
func (s *Service) BuildTree(ctx context.Context, in BuildTreeInput) (*TreeNode, error) {
	if in.ID <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	if in.MaxDepth < 0 {
		return nil, ErrInvalidDepth
	}

	if !in.Snapshot {
		tree, err := s.materialize(ctx, in.ID, in.MaxDepth)
		if err != nil {
			return nil, s.fail(ctx, "tree", err)
		}
		return tree, nil
	}

	var tree *TreeNode
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.materialize(txCtx, in.ID, in.MaxDepth)
		if err != nil {
			return err
		}
		tree = result
		return nil
	}); err != nil {
		return nil, s.fail(ctx, "tree", err)
	}
	return tree, nil
}

// materialize は明示的なスタックで深さ優先に辿り、各社員を都度読み直して値としてのツリーを組み立てます。
func (s *Service) materialize(ctx context.Context, rootID int64, maxDepth int) (*TreeNode, error) {
	root, err := s.repo.FindByID(ctx, rootID, true)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &NotFoundError{ID: rootID}
	}

	// onPath は頂点から現在のノードまでの経路、visited はこれまでに展開した社員です。
	onPath := map[int64]struct{}{rootID: {}}
	visited := map[int64]struct{}{rootID: {}}
	stack := []*treeFrame{newTreeFrame(root, 0, maxDepth)}

	for {
		top := stack[len(stack)-1]

		if len(top.pending) == 0 {
			delete(onPath, top.node.ID)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return &top.node, nil
			}
			parent := stack[len(stack)-1]
			parent.node.Children = append(parent.node.Children, top.node)
			continue
		}

		childID := top.pending[0]
		top.pending = top.pending[1:]

		if _, cyclic := onPath[childID]; cyclic {
			return nil, &CycleDetectedError{ID: childID, ProposedParent: top.node.ID}
		}
		if _, seen := visited[childID]; seen {
			// 走査中に別の上長へ付け替えられ、展開済み
			continue
		}

		child, err := s.repo.FindByID(ctx, childID, true)
		if err != nil {
			return nil, err
		}
		if child == nil {
			// 走査中に削除された
			continue
		}

		visited[childID] = struct{}{}
		onPath[childID] = struct{}{}
		stack = append(stack, newTreeFrame(child, top.depth+1, maxDepth))
	}
}

func newTreeFrame(e *Employee, depth, maxDepth int) *treeFrame {
	frame := &treeFrame{
		node:  TreeNode{ID: e.ID, Name: e.Name, Children: []TreeNode{}},
		depth: depth,
	}
	if maxDepth == 0 || depth < maxDepth {
		frame.pending = e.SubordinateIDs()
	}
	return frame
}
