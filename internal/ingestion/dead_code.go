package ingestion

import (
	"github.com/Benny93/classgraph/internal/graph"
)

// Methods the JVM or the class library call on their own. They are never
// reported as unused.
var implicitlyCalled = map[string]bool{
	"main":        true,
	"toString":    true,
	"equals":      true,
	"hashCode":    true,
	"compareTo":   true,
	"clone":       true,
	"finalize":    true,
	"close":       true,
	"run":         true,
	"call":        true,
	"readObject":  true,
	"writeObject": true,
}

// FindUnused returns the IDs of members no other member of the class
// refers to, in ID order: fields with no incoming read or write edge and
// methods with no incoming call edge from another method. Constructors are
// not methods here, and methods in implicitlyCalled are exempt.
func FindUnused(g *graph.KnowledgeGraph) []string {
	unused := []string{}

	for _, node := range g.Nodes() {
		switch node.Label {
		case graph.NodeField:
			if len(g.GetIncoming(node.ID)) == 0 {
				unused = append(unused, node.ID)
			}
		case graph.NodeMethod:
			if isUnusedExempt(node) {
				continue
			}
			if !hasExternalCaller(g, node.ID) {
				unused = append(unused, node.ID)
			}
		}
	}

	return unused
}

// isUnusedExempt checks if a method is exempt from unused detection.
func isUnusedExempt(node *graph.GraphNode) bool {
	return implicitlyCalled[node.ID]
}

// hasExternalCaller reports whether a method other than id itself calls id.
func hasExternalCaller(g *graph.KnowledgeGraph, id string) bool {
	for _, rel := range g.GetIncoming(id, graph.RelCall) {
		if rel.Source != id {
			return true
		}
	}
	return false
}
