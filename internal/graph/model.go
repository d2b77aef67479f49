// Package graph provides the member dependency graph for classgraph.
//
// It defines the node and relationship types that represent the members of a
// class (fields, methods, constructors) and the read, write and call edges
// between them.
package graph

// NodeLabel represents the category of a graph node.
type NodeLabel string

const (
	NodeField       NodeLabel = "field"
	NodeMethod      NodeLabel = "method"
	NodeConstructor NodeLabel = "constructor"
)

// RelType represents the type of relationship between graph nodes.
type RelType string

const (
	RelRead  RelType = "read"
	RelWrite RelType = "write"
	RelCall  RelType = "call"
)

// ConstructorLabel is the default display label of constructor nodes.
const ConstructorLabel = "Constructor"

// GraphNode represents a node in the member graph.
type GraphNode struct {
	// ID is the member name. Constructors use "<init>"; a field named like a
	// method uses FieldNodeID.
	ID string `json:"id"`

	// Label is the category of the node.
	Label NodeLabel `json:"label"`

	// Name is the display label shown by renderers.
	Name string `json:"name"`

	// Properties holds additional metadata.
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphRelationship represents a directed edge from a method or constructor
// to the member it reads, writes or calls.
type GraphRelationship struct {
	// ID is the unique identifier for the relationship.
	ID string `json:"id"`

	// Type is the type of relationship.
	Type RelType `json:"type"`

	// Source is the ID of the method node.
	Source string `json:"source"`

	// Target is the ID of the target node.
	Target string `json:"target"`
}

// GenerateRelID creates a deterministic relationship ID.
// Format: {type}:{source}->{target}
func GenerateRelID(relType RelType, source, target string) string {
	return string(relType) + ":" + source + "->" + target
}
