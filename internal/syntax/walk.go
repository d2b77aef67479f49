package syntax

import "iter"

// Pair is one step of a walk: a node and the node it was reached from.
// Parent is nil for the walk's root.
type Pair struct {
	Parent Node
	Node   Node
}

// Walker yields every (parent, node) pair reachable from a root exactly once.
//
// The walk uses an explicit stack rather than recursion. Children are pushed
// in declaration order, so they are visited last-to-first. Callers must not
// depend on source order.
type Walker struct {
	stack []Pair
}

// Walk starts a walk at root. The first pair returned is (nil, root).
func Walk(root Node) *Walker {
	w := &Walker{}
	if !isNil(root) {
		w.stack = append(w.stack, Pair{Node: root})
	}
	return w
}

// WalkAll starts a walk over several roots wrapped in a single List.
func WalkAll(roots ...Node) *Walker {
	return Walk(NewList(roots...))
}

// Next pops the next pair. It returns false once the walk is exhausted.
func (w *Walker) Next() (Pair, bool) {
	if len(w.stack) == 0 {
		return Pair{}, false
	}

	top := len(w.stack) - 1
	p := w.stack[top]
	w.stack[top] = Pair{}
	w.stack = w.stack[:top]

	for _, child := range p.Node.Children() {
		w.stack = append(w.stack, Pair{Parent: p.Node, Node: child})
	}
	return p, true
}

// All returns the walk from root as an iterator of (parent, node).
func All(root Node) iter.Seq2[Node, Node] {
	return func(yield func(Node, Node) bool) {
		w := Walk(root)
		for {
			p, ok := w.Next()
			if !ok || !yield(p.Parent, p.Node) {
				return
			}
		}
	}
}
