package graph

import (
	"sort"
	"sync"
)

// KnowledgeGraph is an in-memory directed graph of class members and the
// relationships between them.
//
// Nodes are keyed by their ID string; relationships are keyed likewise.
// Secondary indexes on label, relationship type and adjacency keep lookups
// proportional to the result set.
type KnowledgeGraph struct {
	mu            sync.RWMutex
	nodes         map[string]*GraphNode
	relationships map[string]*GraphRelationship

	// Secondary indexes, kept in sync by AddNode and AddRelationship.
	byLabel   map[NodeLabel]map[string]*GraphNode
	byRelType map[RelType]map[string]*GraphRelationship
	outgoing  map[string]map[string]*GraphRelationship
	incoming  map[string]map[string]*GraphRelationship
}

// NewKnowledgeGraph creates a new empty graph.
func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		nodes:         make(map[string]*GraphNode),
		relationships: make(map[string]*GraphRelationship),
		byLabel:       make(map[NodeLabel]map[string]*GraphNode),
		byRelType:     make(map[RelType]map[string]*GraphRelationship),
		outgoing:      make(map[string]map[string]*GraphRelationship),
		incoming:      make(map[string]map[string]*GraphRelationship),
	}
}

// NodeCount returns the number of nodes.
func (g *KnowledgeGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RelationshipCount returns the number of relationships.
func (g *KnowledgeGraph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.relationships)
}

// CountNodesByLabel returns the count of nodes with the given label.
func (g *KnowledgeGraph) CountNodesByLabel(label NodeLabel) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byLabel[label])
}

// AddNode adds a node to the graph, replacing any existing node with the same ID.
func (g *KnowledgeGraph) AddNode(node *GraphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.nodes[node.ID]; ok && old.Label != node.Label {
		delete(g.byLabel[old.Label], node.ID)
	}

	g.nodes[node.ID] = node

	if g.byLabel[node.Label] == nil {
		g.byLabel[node.Label] = make(map[string]*GraphNode)
	}
	g.byLabel[node.Label][node.ID] = node
}

// GetNode returns the node with the given ID, or nil if it does not exist.
func (g *KnowledgeGraph) GetNode(nodeID string) *GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[nodeID]
}

// AddRelationship adds a relationship, replacing any existing relationship
// with the same ID.
func (g *KnowledgeGraph) AddRelationship(rel *GraphRelationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.relationships[rel.ID]; ok {
		delete(g.byRelType[old.Type], rel.ID)
		delete(g.outgoing[old.Source], rel.ID)
		delete(g.incoming[old.Target], rel.ID)
	}

	g.relationships[rel.ID] = rel

	if g.byRelType[rel.Type] == nil {
		g.byRelType[rel.Type] = make(map[string]*GraphRelationship)
	}
	g.byRelType[rel.Type][rel.ID] = rel

	if g.outgoing[rel.Source] == nil {
		g.outgoing[rel.Source] = make(map[string]*GraphRelationship)
	}
	g.outgoing[rel.Source][rel.ID] = rel

	if g.incoming[rel.Target] == nil {
		g.incoming[rel.Target] = make(map[string]*GraphRelationship)
	}
	g.incoming[rel.Target][rel.ID] = rel
}

// Nodes returns all nodes ordered by ID.
func (g *KnowledgeGraph) Nodes() []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*GraphNode, 0, len(g.nodes))
	for _, node := range g.nodes {
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Relationships returns all relationships ordered by ID.
func (g *KnowledgeGraph) Relationships() []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedRels(g.relationships)
}

// GetNodesByLabel returns all nodes with the given label, ordered by ID.
func (g *KnowledgeGraph) GetNodesByLabel(label NodeLabel) []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := g.byLabel[label]
	result := make([]*GraphNode, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// GetRelationshipsByType returns all relationships with the given type.
func (g *KnowledgeGraph) GetRelationshipsByType(relType RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedRels(g.byRelType[relType])
}

// GetOutgoing returns relationships originating from the given node ID.
// If relType is provided, only relationships of that type are returned.
func (g *KnowledgeGraph) GetOutgoing(nodeID string, relType ...RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterRels(g.outgoing[nodeID], relType)
}

// GetIncoming returns relationships targeting the given node ID.
// If relType is provided, only relationships of that type are returned.
func (g *KnowledgeGraph) GetIncoming(nodeID string, relType ...RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterRels(g.incoming[nodeID], relType)
}

// Stats returns a summary of graph size.
func (g *KnowledgeGraph) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return map[string]int{
		"nodes":         len(g.nodes),
		"relationships": len(g.relationships),
		"fields":        len(g.byLabel[NodeField]),
		"methods":       len(g.byLabel[NodeMethod]) + len(g.byLabel[NodeConstructor]),
	}
}

func filterRels(rels map[string]*GraphRelationship, relType []RelType) []*GraphRelationship {
	if len(relType) == 0 || relType[0] == "" {
		return sortedRels(rels)
	}
	matched := make(map[string]*GraphRelationship)
	for id, rel := range rels {
		if rel.Type == relType[0] {
			matched[id] = rel
		}
	}
	return sortedRels(matched)
}

func sortedRels(rels map[string]*GraphRelationship) []*GraphRelationship {
	result := make([]*GraphRelationship, 0, len(rels))
	for _, rel := range rels {
		result = append(result, rel)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
