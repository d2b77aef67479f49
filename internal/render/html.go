// Package render writes analysis results as an interactive HTML page or as
// JSON.
package render

import (
	"html/template"
	"io"

	"gitlab.com/tozd/go/errors"

	"github.com/Benny93/classgraph/internal/graph"
)

// Edge tags and colours. Tags only affect presentation.
var edgeStyles = map[graph.RelType]struct {
	Label string
	Title string
	Color string
}{
	graph.RelRead:  {"R", "Reads Field", "blue"},
	graph.RelWrite: {"W", "Writes Field", "red"},
	graph.RelCall:  {"C", "Calls Method", "gray"},
}

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Color string `json:"color"`
	Shape string `json:"shape"`
}

type visEdge struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Label  string `json:"label"`
	Title  string `json:"title"`
	Color  string `json:"color"`
	Arrows string `json:"arrows"`
}

type page struct {
	Title string
	Nodes []visNode
	Edges []visEdge
}

var pageTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/vis-network@9.1.9/standalone/umd/vis-network.min.js"></script>
<style type="text/css">
  body { margin: 0; overflow: hidden; font-family: sans-serif; }
  #mynetwork { width: 100vw; height: 100vh; }
</style>
</head>
<body>
<div id="mynetwork"></div>
<script type="text/javascript">
  var nodes = new vis.DataSet({{.Nodes}});
  var edges = new vis.DataSet({{.Edges}});
  var container = document.getElementById('mynetwork');
  var network = new vis.Network(container, {nodes: nodes, edges: edges}, {
    interaction: {hover: true, navigationButtons: true},
    physics: {stabilization: true}
  });
  window.addEventListener('resize', function() {
    container.style.width = window.innerWidth + 'px';
    container.style.height = window.innerHeight + 'px';
    network.redraw();
  });
</script>
</body>
</html>
`))

// HTML writes g as a standalone vis-network page. Fields are drawn as boxes,
// methods and constructors as ellipses, and every edge carries its R, W or C
// tag.
func HTML(w io.Writer, g *graph.KnowledgeGraph, title string) error {
	p := page{Title: title, Nodes: []visNode{}, Edges: []visEdge{}}

	for _, n := range g.Nodes() {
		node := visNode{ID: n.ID, Label: n.Name, Title: string(n.Label) + " " + n.ID}
		if n.Label == graph.NodeField {
			node.Color, node.Shape = "skyblue", "box"
		} else {
			node.Color, node.Shape = "lightgreen", "ellipse"
		}
		p.Nodes = append(p.Nodes, node)
	}

	for _, r := range g.Relationships() {
		style := edgeStyles[r.Type]
		p.Edges = append(p.Edges, visEdge{
			ID:     r.ID,
			From:   r.Source,
			To:     r.Target,
			Label:  style.Label,
			Title:  style.Title,
			Color:  style.Color,
			Arrows: "to",
		})
	}

	if err := pageTemplate.Execute(w, p); err != nil {
		return errors.Errorf("rendering html: %w", err)
	}
	return nil
}
