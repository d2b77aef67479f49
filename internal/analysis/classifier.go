package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/classgraph/internal/syntax"
)

// Classify builds the relationship record for one method or constructor.
//
// Each member reference is classified by the shape of its parent:
//
//   - assignment: the target is written, the value is read
//   - binary operation: both operands are read
//   - unary expression: ++ and -- read and write their operand, the other
//     operators read it. This holds wherever the expression sits, so
//     `x = count++` reads and writes count.
//   - statement expression holding the reference itself: written
//   - method invocation: arguments are read
//   - no parent: skipped
//   - anything else: read
//
// Every method invocation adds its name to Calls, whatever its parent.
func Classify(method syntax.Node) *Record {
	rec := NewRecord()

	w := syntax.Walk(method)
	for {
		p, ok := w.Next()
		if !ok {
			return rec
		}

		switch n := p.Node.(type) {
		case *syntax.MemberReference:
			classifyReference(rec, p.Parent, n)
		case *syntax.MethodInvocation:
			rec.Calls.Add(n.Member)
		}
	}
}

func classifyReference(rec *Record, parent syntax.Node, ref *syntax.MemberReference) {
	switch p := parent.(type) {
	case nil:
		// The walk's root has no context to classify against.

	case *syntax.Assignment:
		switch {
		case p.Target == ref:
			rec.Writes.Add(ref.Member)
		case p.Value == ref:
			rec.Reads.Add(ref.Member)
		}

	case *syntax.BinaryOperation:
		if p.Left == ref || p.Right == ref {
			rec.Reads.Add(ref.Member)
		}

	case *syntax.UnaryExpression:
		if p.Operand != ref {
			return
		}
		switch p.Operator {
		case "++", "--":
			rec.Reads.Add(ref.Member)
			rec.Writes.Add(ref.Member)
		default:
			rec.Reads.Add(ref.Member)
		}

	case *syntax.StatementExpression:
		if p.Expression == ref {
			rec.Writes.Add(ref.Member)
		}

	case *syntax.MethodInvocation:
		if p.HasArgument(ref) {
			rec.Reads.Add(ref.Member)
		}

	default:
		rec.Reads.Add(ref.Member)
	}
}

// MethodKey returns the relationship key of a method or constructor node.
func MethodKey(n syntax.Node) (string, bool) {
	switch d := n.(type) {
	case *syntax.MethodDeclaration:
		return d.Name, true
	case *syntax.ConstructorDeclaration:
		return syntax.ConstructorName, true
	}
	return "", false
}

// Methods returns every method and constructor declared anywhere in the tree.
func Methods(root syntax.Node) []syntax.Node {
	var methods []syntax.Node
	for _, n := range syntax.All(root) {
		if _, ok := MethodKey(n); ok {
			methods = append(methods, n)
		}
	}
	return methods
}

// Options controls ExtractRelationships.
type Options struct {
	// Parallel classifies methods concurrently.
	Parallel bool

	// Workers bounds concurrent classification. Zero means unbounded.
	Workers int
}

// ExtractRelationships classifies every method and constructor in the tree.
// A record exists for each of them, even when empty. Records of methods that
// share a name (overloads, multiple constructors) are merged.
func ExtractRelationships(ctx context.Context, root syntax.Node, opts Options) (Relationships, error) {
	methods := Methods(root)
	records := make([]*Record, len(methods))

	if opts.Parallel && len(methods) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		if opts.Workers > 0 {
			g.SetLimit(opts.Workers)
		}
		for i, m := range methods {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				records[i] = Classify(m)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, m := range methods {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			records[i] = Classify(m)
		}
	}

	rels := make(Relationships, len(methods))
	for i, m := range methods {
		name, _ := MethodKey(m)
		rels.add(name, records[i])
	}
	return rels, nil
}
