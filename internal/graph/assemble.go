package graph

import (
	"fmt"

	"github.com/Benny93/classgraph/internal/analysis"
	"github.com/Benny93/classgraph/internal/syntax"
)

// DiagnosticKind classifies a dropped edge.
type DiagnosticKind string

const (
	// DiagUnknownMethod means a relationship record has no declared method.
	DiagUnknownMethod DiagnosticKind = "unknown_method"
	// DiagUnresolvedRead means a read target is not a declared field.
	DiagUnresolvedRead DiagnosticKind = "unresolved_read"
	// DiagUnresolvedWrite means a write target is not a declared field.
	DiagUnresolvedWrite DiagnosticKind = "unresolved_write"
	// DiagUnresolvedCall means a call target is not a declared method.
	DiagUnresolvedCall DiagnosticKind = "unresolved_call"
	// DiagNameCollision means a field and a method share a name. The field
	// node is keyed by FieldNodeID instead.
	DiagNameCollision DiagnosticKind = "name_collision"
)

// Diagnostic reports an edge that was left out of the graph. Diagnostics are
// never fatal.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Method string         `json:"method"`
	Target string         `json:"target,omitempty"`
}

// String renders the diagnostic as one transcript line.
func (d Diagnostic) String() string {
	switch d.Kind {
	case DiagUnknownMethod:
		return fmt.Sprintf("method '%s' is not declared, skipping its edges", d.Method)
	case DiagUnresolvedRead:
		return fmt.Sprintf("field '%s' (read by %s) is not declared", d.Target, d.Method)
	case DiagUnresolvedWrite:
		return fmt.Sprintf("field '%s' (written by %s) is not declared", d.Target, d.Method)
	case DiagUnresolvedCall:
		return fmt.Sprintf("method '%s' (called by %s) is not declared", d.Target, d.Method)
	case DiagNameCollision:
		return fmt.Sprintf("'%s' names both a field and a method, field node is %s", d.Method, d.Target)
	}
	return fmt.Sprintf("%s: %s -> %s", d.Kind, d.Method, d.Target)
}

// AssembleOptions controls Assemble.
type AssembleOptions struct {
	// ConstructorLabel is the display label of constructor nodes.
	// Defaults to ConstructorLabel.
	ConstructorLabel string
}

// Assemble builds the member graph from the declared names and the
// per-method relationship records.
//
// Every declared field and method becomes a node. An edge is added only when
// both ends are declared; any other target yields a Diagnostic instead. Read
// and write edges between the same pair are kept as two relationships.
//
// A field that shares its name with a method (a getter named after its field)
// is keyed by FieldNodeID so the two stay distinct nodes.
func Assemble(decls analysis.Declarations, rels analysis.Relationships, opts AssembleOptions) (*KnowledgeGraph, []Diagnostic) {
	ctorLabel := opts.ConstructorLabel
	if ctorLabel == "" {
		ctorLabel = ConstructorLabel
	}

	g := NewKnowledgeGraph()
	fields := decls.FieldSet()
	methods := decls.MethodSet()

	diags := []Diagnostic{}
	fieldNode := make(map[string]string, len(decls.Fields))
	for _, name := range decls.Fields {
		id := name
		if methods.Has(name) {
			id = FieldNodeID(name)
			diags = append(diags, Diagnostic{Kind: DiagNameCollision, Method: name, Target: id})
		}
		fieldNode[name] = id
		g.AddNode(&GraphNode{ID: id, Label: NodeField, Name: name})
	}
	for _, name := range decls.Methods {
		if name == syntax.ConstructorName {
			g.AddNode(&GraphNode{ID: name, Label: NodeConstructor, Name: ctorLabel})
			continue
		}
		g.AddNode(&GraphNode{ID: name, Label: NodeMethod, Name: name})
	}

	for _, method := range rels.Names() {
		rec := rels[method]
		if !methods.Has(method) {
			diags = append(diags, Diagnostic{Kind: DiagUnknownMethod, Method: method})
			continue
		}

		for _, field := range rec.Reads.Sorted() {
			if !fields.Has(field) {
				diags = append(diags, Diagnostic{Kind: DiagUnresolvedRead, Method: method, Target: field})
				continue
			}
			g.AddRelationship(edge(RelRead, method, fieldNode[field]))
		}
		for _, field := range rec.Writes.Sorted() {
			if !fields.Has(field) {
				diags = append(diags, Diagnostic{Kind: DiagUnresolvedWrite, Method: method, Target: field})
				continue
			}
			g.AddRelationship(edge(RelWrite, method, fieldNode[field]))
		}
		for _, callee := range rec.Calls.Sorted() {
			if !methods.Has(callee) {
				diags = append(diags, Diagnostic{Kind: DiagUnresolvedCall, Method: method, Target: callee})
				continue
			}
			g.AddRelationship(edge(RelCall, method, callee))
		}
	}

	return g, diags
}

// FieldNodeID is the node ID of a field whose name is also a method name.
func FieldNodeID(name string) string {
	return string(NodeField) + ":" + name
}

func edge(relType RelType, source, target string) *GraphRelationship {
	return &GraphRelationship{
		ID:     GenerateRelID(relType, source, target),
		Type:   relType,
		Source: source,
		Target: target,
	}
}

// Snapshot is a serializable copy of a graph.
type Snapshot struct {
	Nodes         []*GraphNode         `json:"nodes"`
	Relationships []*GraphRelationship `json:"relationships"`
}

// Snapshot copies the graph's nodes and relationships in ID order.
func (g *KnowledgeGraph) Snapshot() Snapshot {
	return Snapshot{
		Nodes:         g.Nodes(),
		Relationships: g.Relationships(),
	}
}

// FromSnapshot rebuilds a graph from a snapshot.
func FromSnapshot(s Snapshot) *KnowledgeGraph {
	g := NewKnowledgeGraph()
	for _, n := range s.Nodes {
		g.AddNode(n)
	}
	for _, r := range s.Relationships {
		g.AddRelationship(r)
	}
	return g
}
