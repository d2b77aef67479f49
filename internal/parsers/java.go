package parsers

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/Benny93/classgraph/internal/syntax"
)

// JavaParser parses Java source with tree-sitter and lowers the concrete
// tree into the syntax model.
type JavaParser struct{}

// NewJavaParser creates a new Java parser.
func NewJavaParser() *JavaParser {
	return &JavaParser{}
}

// Language returns the language this parser handles.
func (p *JavaParser) Language() string {
	return "java"
}

// SupportsFile checks if this parser can handle the given file.
func (p *JavaParser) SupportsFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".java")
}

// Parse parses Java source code. Any syntax error in the input is fatal.
func (p *JavaParser) Parse(ctx context.Context, filePath string, content []byte) (*syntax.CompilationUnit, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// New parser per call, tree-sitter parsers are not safe to share.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{FilePath: filePath, Message: "tree-sitter parse failed", Cause: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{FilePath: filePath, Message: "empty syntax tree", Cause: ErrParseFailed}
	}
	if root.HasError() {
		perr := &ParseError{FilePath: filePath, Message: "syntax error", Cause: ErrParseFailed}
		if bad := firstError(root); bad != nil {
			pt := bad.StartPoint()
			perr.Line = int(pt.Row) + 1
			perr.Column = int(pt.Column) + 1
			if bad.IsMissing() {
				perr.Message = "missing " + bad.Type()
			} else {
				perr.Message = "unexpected " + snippet(bad.Content(content))
			}
		}
		return nil, perr
	}

	c := &converter{src: content}
	return c.unit(root), nil
}

// firstError finds the first ERROR or MISSING node in source order.
func firstError(n *sitter.Node) *sitter.Node {
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.IsMissing() || cur.Type() == "ERROR" {
			return cur
		}
		if !cur.HasError() {
			continue
		}
		for i := int(cur.ChildCount()) - 1; i >= 0; i-- {
			if child := cur.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return nil
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return s[:40] + "..."
	}
	if s == "" {
		return "input"
	}
	return "'" + s + "'"
}

// Node kinds that only describe types or modifiers. They never contain
// member references and are dropped during lowering.
var typeOnlyKinds = map[string]bool{
	"type_identifier":        true,
	"scoped_type_identifier": true,
	"generic_type":           true,
	"array_type":             true,
	"integral_type":          true,
	"floating_point_type":    true,
	"boolean_type":           true,
	"void_type":              true,
	"type_arguments":         true,
	"type_parameters":        true,
	"dimensions":             true,
	"modifiers":              true,
	"marker_annotation":      true,
	"annotation":             true,
	"throws":                 true,
	"superclass":             true,
	"super_interfaces":       true,
	"extends_interfaces":     true,
	"permits":                true,
	"line_comment":           true,
	"block_comment":          true,
	"package_declaration":    true,
	"import_declaration":     true,
	"method_reference":       true,
	"class_literal":          true,
}

var literalKinds = map[string]bool{
	"decimal_integer_literal":        true,
	"hex_integer_literal":            true,
	"octal_integer_literal":          true,
	"binary_integer_literal":         true,
	"decimal_floating_point_literal": true,
	"hex_floating_point_literal":     true,
	"true":                           true,
	"false":                          true,
	"character_literal":              true,
	"string_literal":                 true,
	"text_block":                     true,
	"null_literal":                   true,
}

// Kinds whose identifier children are labels or bindings, not references.
var bindingKinds = map[string]bool{
	"labeled_statement":  true,
	"break_statement":    true,
	"continue_statement": true,
}

type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

func (c *converter) pos(n *sitter.Node) syntax.Position {
	return syntax.Position{Line: int(n.StartPoint().Row) + 1}
}

func (c *converter) unit(root *sitter.Node) *syntax.CompilationUnit {
	u := &syntax.CompilationUnit{Position: c.pos(root), Types: syntax.NewList()}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "package_declaration":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if pkg := child.NamedChild(j); pkg.Type() != "marker_annotation" && pkg.Type() != "annotation" {
					u.Package = c.text(pkg)
				}
			}
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
			u.Types.Items = append(u.Types.Items, c.typeDecl(child))
		}
	}
	return u
}

func (c *converter) typeDecl(n *sitter.Node) *syntax.TypeDeclaration {
	decl := &syntax.TypeDeclaration{
		Position: c.pos(n),
		Name:     c.text(n.ChildByFieldName("name")),
		Keyword:  strings.TrimSuffix(n.Type(), "_declaration"),
		Body:     syntax.NewList(),
	}
	if n.Type() == "annotation_type_declaration" {
		return decl
	}
	if body := n.ChildByFieldName("body"); body != nil {
		c.members(body, decl.Name, decl.Body)
	}
	return decl
}

// members lowers a class/interface/enum body into out.
func (c *converter) members(body *sitter.Node, typeName string, out *syntax.List) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "enum_body_declarations":
			c.members(child, typeName, out)
		case "field_declaration", "constant_declaration":
			out.Items = append(out.Items, c.field(child))
		case "method_declaration":
			out.Items = append(out.Items, c.method(child))
		case "constructor_declaration", "compact_constructor_declaration":
			out.Items = append(out.Items, c.constructor(child, typeName))
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
			out.Items = append(out.Items, c.typeDecl(child))
		default:
			if node := c.node(child); node != nil {
				out.Items = append(out.Items, node)
			}
		}
	}
}

func (c *converter) modifiers(n *sitter.Node) []string {
	var mods []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			m := child.Child(j)
			if m.Type() == "marker_annotation" || m.Type() == "annotation" {
				continue
			}
			mods = append(mods, c.text(m))
		}
	}
	return mods
}

func (c *converter) field(n *sitter.Node) *syntax.FieldDeclaration {
	decl := &syntax.FieldDeclaration{
		Position:    c.pos(n),
		Type:        c.text(n.ChildByFieldName("type")),
		Modifiers:   c.modifiers(n),
		Declarators: syntax.NewList(),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "variable_declarator" {
			decl.Declarators.Items = append(decl.Declarators.Items, c.declarator(child))
		}
	}
	return decl
}

func (c *converter) declarator(n *sitter.Node) *syntax.VariableDeclarator {
	return &syntax.VariableDeclarator{
		Position:    c.pos(n),
		Name:        c.text(n.ChildByFieldName("name")),
		Initializer: c.node(n.ChildByFieldName("value")),
	}
}

func (c *converter) method(n *sitter.Node) *syntax.MethodDeclaration {
	return &syntax.MethodDeclaration{
		Position:   c.pos(n),
		Name:       c.text(n.ChildByFieldName("name")),
		ReturnType: c.text(n.ChildByFieldName("type")),
		Modifiers:  c.modifiers(n),
		Parameters: c.params(n.ChildByFieldName("parameters")),
		Body:       c.node(n.ChildByFieldName("body")),
	}
}

func (c *converter) constructor(n *sitter.Node, typeName string) *syntax.ConstructorDeclaration {
	name := c.text(n.ChildByFieldName("name"))
	if name == "" {
		name = typeName
	}
	return &syntax.ConstructorDeclaration{
		Position:   c.pos(n),
		Name:       name,
		Modifiers:  c.modifiers(n),
		Parameters: c.params(n.ChildByFieldName("parameters")),
		Body:       c.node(n.ChildByFieldName("body")),
	}
}

func (c *converter) params(n *sitter.Node) *syntax.List {
	list := syntax.NewList()
	if n == nil {
		return list
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "formal_parameter", "spread_parameter", "catch_formal_parameter":
			name := child.ChildByFieldName("name")
			if name == nil {
				// spread_parameter keeps its name inside a variable_declarator.
				for j := 0; j < int(child.NamedChildCount()); j++ {
					if d := child.NamedChild(j); d.Type() == "variable_declarator" {
						name = d.ChildByFieldName("name")
					}
				}
			}
			list.Items = append(list.Items, &syntax.FormalParameter{
				Position: c.pos(child),
				Type:     c.text(child.ChildByFieldName("type")),
				Name:     c.text(name),
			})
		}
	}
	return list
}

// node lowers any statement or expression. It returns nil for nodes that
// carry nothing the analysis can use.
func (c *converter) node(n *sitter.Node) syntax.Node {
	if n == nil || !n.IsNamed() {
		return nil
	}
	kind := n.Type()
	if typeOnlyKinds[kind] {
		return nil
	}
	if literalKinds[kind] {
		return &syntax.Literal{Position: c.pos(n), Value: c.text(n)}
	}

	switch kind {
	case "identifier":
		return &syntax.MemberReference{Position: c.pos(n), Member: c.text(n)}

	case "this", "super":
		return &syntax.Generic{Position: c.pos(n), Name: kind}

	case "block", "constructor_body":
		b := &syntax.Block{Position: c.pos(n), Statements: syntax.NewList()}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if stmt := c.node(n.NamedChild(i)); stmt != nil {
				b.Statements.Items = append(b.Statements.Items, stmt)
			}
		}
		return b

	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return nil
		}
		return &syntax.StatementExpression{Position: c.pos(n), Expression: c.node(n.NamedChild(0))}

	case "assignment_expression":
		return &syntax.Assignment{
			Position: c.pos(n),
			Operator: c.text(n.ChildByFieldName("operator")),
			Target:   c.target(n.ChildByFieldName("left")),
			Value:    c.node(n.ChildByFieldName("right")),
		}

	case "binary_expression":
		return &syntax.BinaryOperation{
			Position: c.pos(n),
			Operator: c.text(n.ChildByFieldName("operator")),
			Left:     c.node(n.ChildByFieldName("left")),
			Right:    c.node(n.ChildByFieldName("right")),
		}

	case "unary_expression":
		return &syntax.UnaryExpression{
			Position: c.pos(n),
			Operator: c.text(n.ChildByFieldName("operator")),
			Operand:  c.node(n.ChildByFieldName("operand")),
			Prefix:   true,
		}

	case "update_expression":
		return c.update(n)

	case "field_access":
		return c.fieldAccess(n)

	case "method_invocation":
		return c.invocation(n)

	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		return c.typeDecl(n)

	case "class_body", "interface_body", "enum_body":
		body := syntax.NewList()
		c.members(n, "", body)
		return &syntax.Generic{Position: c.pos(n), Name: kind, Nodes: body.Items}

	case "local_variable_declaration":
		g := &syntax.Generic{Position: c.pos(n), Name: kind}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "variable_declarator" {
				g.Nodes = append(g.Nodes, c.declarator(child))
			}
		}
		return g

	case "lambda_expression":
		g := &syntax.Generic{Position: c.pos(n), Name: kind}
		if params := n.ChildByFieldName("parameters"); params != nil && params.Type() == "formal_parameters" {
			g.Nodes = append(g.Nodes, c.params(params))
		}
		if body := c.node(n.ChildByFieldName("body")); body != nil {
			g.Nodes = append(g.Nodes, body)
		}
		return g
	}

	return c.generic(n)
}

// generic lowers every named child, skipping binding names.
func (c *converter) generic(n *sitter.Node) syntax.Node {
	g := &syntax.Generic{Position: c.pos(n), Name: n.Type()}
	binding := n.ChildByFieldName("name")
	skipIdentifiers := bindingKinds[n.Type()]
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if binding != nil && sameNode(child, binding) {
			continue
		}
		if skipIdentifiers && child.Type() == "identifier" {
			continue
		}
		if lowered := c.node(child); lowered != nil {
			g.Nodes = append(g.Nodes, lowered)
		}
	}
	return g
}

func (c *converter) update(n *sitter.Node) syntax.Node {
	u := &syntax.UnaryExpression{Position: c.pos(n)}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "++", "--":
			u.Operator = child.Type()
			u.Prefix = i == 0
		default:
			if child.IsNamed() {
				u.Operand = c.target(child)
			}
		}
	}
	return u
}

// target lowers the operand of an assignment or update. An element access
// on a named array becomes a reference to the array itself, so `data[i] = v`
// writes data and reads i.
func (c *converter) target(n *sitter.Node) syntax.Node {
	if n == nil || n.Type() != "array_access" {
		return c.node(n)
	}
	ref, ok := c.target(n.ChildByFieldName("array")).(*syntax.MemberReference)
	if !ok {
		return c.generic(n)
	}
	if index := c.node(n.ChildByFieldName("index")); index != nil {
		ref.Selectors = append(ref.Selectors, index)
	}
	return ref
}

func (c *converter) fieldAccess(n *sitter.Node) syntax.Node {
	ref := &syntax.MemberReference{
		Position: c.pos(n),
		Member:   c.text(n.ChildByFieldName("field")),
	}
	object := n.ChildByFieldName("object")
	if q, ok := c.qualifier(object); ok {
		ref.Qualifier = q
	} else {
		ref.Receiver = c.node(object)
	}
	return ref
}

func (c *converter) invocation(n *sitter.Node) syntax.Node {
	call := &syntax.MethodInvocation{
		Position: c.pos(n),
		Member:   c.text(n.ChildByFieldName("name")),
	}
	if object := n.ChildByFieldName("object"); object != nil {
		if q, ok := c.qualifier(object); ok {
			call.Qualifier = q
		} else {
			call.Receiver = c.node(object)
		}
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if arg := c.node(args.NamedChild(i)); arg != nil {
				call.Arguments = append(call.Arguments, arg)
			}
		}
	}
	return call
}

// qualifier returns the source text of a receiver made only of names,
// `this` and `super`, such as `this`, `other` or `Outer.this.cache`.
func (c *converter) qualifier(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "identifier", "this", "super", "type_identifier":
		return c.text(n), true
	case "field_access", "scoped_identifier":
		object := n.ChildByFieldName("object")
		if object == nil {
			object = n.ChildByFieldName("scope")
		}
		if _, ok := c.qualifier(object); ok {
			return strings.Join(strings.Fields(c.text(n)), ""), true
		}
	}
	return "", false
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
