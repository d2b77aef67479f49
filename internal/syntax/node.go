// Package syntax provides the syntax model that classgraph analyzes.
//
// The model is a closed set of node kinds. Each kind exposes its named slots
// as struct fields and its traversal order through Children. Anything the
// analysis does not need to distinguish is represented as a Generic node.
package syntax

// Kind identifies the concrete type of a syntax node.
type Kind string

const (
	KindCompilationUnit        Kind = "compilation_unit"
	KindTypeDeclaration        Kind = "type_declaration"
	KindFieldDeclaration       Kind = "field_declaration"
	KindVariableDeclarator     Kind = "variable_declarator"
	KindMethodDeclaration      Kind = "method_declaration"
	KindConstructorDeclaration Kind = "constructor_declaration"
	KindFormalParameter        Kind = "formal_parameter"
	KindBlock                  Kind = "block"
	KindStatementExpression    Kind = "statement_expression"
	KindAssignment             Kind = "assignment"
	KindBinaryOperation        Kind = "binary_operation"
	KindUnaryExpression        Kind = "unary_expression"
	KindMemberReference        Kind = "member_reference"
	KindMethodInvocation       Kind = "method_invocation"
	KindLiteral                Kind = "literal"
	KindGeneric                Kind = "generic"
	KindList                   Kind = "list"
)

// ConstructorName is the reserved member name used for every constructor.
const ConstructorName = "<init>"

// Node is a node in the syntax tree.
//
// Nodes are immutable once built. Children returns the node's children in
// declaration order; absent slots are omitted.
type Node interface {
	Kind() Kind
	Children() []Node
}

// Position is the 1-based source line a node starts on.
type Position struct {
	Line int
}

// CompilationUnit is the root of a parsed source file.
type CompilationUnit struct {
	Position
	Package string
	Types   *List
}

// TypeDeclaration is a class, interface, enum or record declaration.
type TypeDeclaration struct {
	Position
	// Name is the simple type name.
	Name string
	// Keyword is the declaring keyword (class, interface, enum, record).
	Keyword string
	// Body holds the member declarations in source order.
	Body *List
}

// FieldDeclaration declares one or more fields sharing a type.
type FieldDeclaration struct {
	Position
	Type        string
	Modifiers   []string
	Declarators *List
}

// VariableDeclarator introduces a single variable or field name.
type VariableDeclarator struct {
	Position
	Name        string
	Initializer Node
}

// MethodDeclaration is a method with an optional body.
type MethodDeclaration struct {
	Position
	Name       string
	ReturnType string
	Modifiers  []string
	Parameters *List
	Body       Node
}

// ConstructorDeclaration is a constructor. Name is the declaring type's name.
type ConstructorDeclaration struct {
	Position
	Name       string
	Modifiers  []string
	Parameters *List
	Body       Node
}

// FormalParameter is a method or constructor parameter.
type FormalParameter struct {
	Position
	Type string
	Name string
}

// Block is a brace-delimited statement sequence.
type Block struct {
	Position
	Statements *List
}

// StatementExpression is an expression used as a statement.
type StatementExpression struct {
	Position
	Expression Node
}

// Assignment is `target op value` for any assignment operator.
type Assignment struct {
	Position
	Operator string
	Target   Node
	Value    Node
}

// BinaryOperation is `left op right`.
type BinaryOperation struct {
	Position
	Operator string
	Left     Node
	Right    Node
}

// UnaryExpression covers prefix and postfix increment/decrement and the
// unary operators -, +, ~ and !.
type UnaryExpression struct {
	Position
	Operator string
	Operand  Node
	Prefix   bool
}

// MemberReference is a use of a name, optionally qualified (`x`, `this.x`).
//
// Qualifier holds the receiver's source text when it is a plain name chain.
// Receiver holds any other receiver expression. Selectors holds the index
// expressions of an element access such as `data[i][j]`.
type MemberReference struct {
	Position
	Qualifier string
	Receiver  Node
	Member    string
	Selectors []Node
}

// MethodInvocation is a call `qualifier.member(arguments)`.
type MethodInvocation struct {
	Position
	Qualifier string
	Receiver  Node
	Member    string
	Arguments []Node
}

// Literal is a constant value.
type Literal struct {
	Position
	Value string
}

// Generic is any construct without a dedicated kind, such as a return
// statement or an object creation. Name is the construct's grammar name.
type Generic struct {
	Position
	Name  string
	Nodes []Node
}

// List is an ordered sequence of nodes. The walker expands a list element by
// element and reports the list itself as each element's parent.
type List struct {
	Items []Node
}

// NewList builds a list, dropping nil items.
func NewList(items ...Node) *List {
	l := &List{Items: make([]Node, 0, len(items))}
	for _, item := range items {
		if !isNil(item) {
			l.Items = append(l.Items, item)
		}
	}
	return l
}

// Len returns the number of items, treating a nil list as empty.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

func (n *CompilationUnit) Kind() Kind        { return KindCompilationUnit }
func (n *TypeDeclaration) Kind() Kind        { return KindTypeDeclaration }
func (n *FieldDeclaration) Kind() Kind       { return KindFieldDeclaration }
func (n *VariableDeclarator) Kind() Kind     { return KindVariableDeclarator }
func (n *MethodDeclaration) Kind() Kind      { return KindMethodDeclaration }
func (n *ConstructorDeclaration) Kind() Kind { return KindConstructorDeclaration }
func (n *FormalParameter) Kind() Kind        { return KindFormalParameter }
func (n *Block) Kind() Kind                  { return KindBlock }
func (n *StatementExpression) Kind() Kind    { return KindStatementExpression }
func (n *Assignment) Kind() Kind             { return KindAssignment }
func (n *BinaryOperation) Kind() Kind        { return KindBinaryOperation }
func (n *UnaryExpression) Kind() Kind        { return KindUnaryExpression }
func (n *MemberReference) Kind() Kind        { return KindMemberReference }
func (n *MethodInvocation) Kind() Kind       { return KindMethodInvocation }
func (n *Literal) Kind() Kind                { return KindLiteral }
func (n *Generic) Kind() Kind                { return KindGeneric }
func (n *List) Kind() Kind                   { return KindList }

func (n *CompilationUnit) Children() []Node { return nonNil(listNode(n.Types)) }
func (n *TypeDeclaration) Children() []Node { return nonNil(listNode(n.Body)) }
func (n *FieldDeclaration) Children() []Node {
	return nonNil(listNode(n.Declarators))
}
func (n *VariableDeclarator) Children() []Node { return nonNil(n.Initializer) }
func (n *MethodDeclaration) Children() []Node {
	return nonNil(listNode(n.Parameters), n.Body)
}
func (n *ConstructorDeclaration) Children() []Node {
	return nonNil(listNode(n.Parameters), n.Body)
}
func (n *FormalParameter) Children() []Node     { return nil }
func (n *Block) Children() []Node               { return nonNil(listNode(n.Statements)) }
func (n *StatementExpression) Children() []Node { return nonNil(n.Expression) }
func (n *Assignment) Children() []Node          { return nonNil(n.Target, n.Value) }
func (n *BinaryOperation) Children() []Node     { return nonNil(n.Left, n.Right) }
func (n *UnaryExpression) Children() []Node     { return nonNil(n.Operand) }
func (n *MemberReference) Children() []Node {
	return nonNil(append([]Node{n.Receiver}, n.Selectors...)...)
}

// Children returns the receiver followed by each argument. Arguments are
// direct children so that an argument's parent is the invocation itself.
func (n *MethodInvocation) Children() []Node {
	return nonNil(append([]Node{n.Receiver}, n.Arguments...)...)
}
func (n *Literal) Children() []Node { return nil }
func (n *Generic) Children() []Node { return nonNil(n.Nodes...) }
func (n *List) Children() []Node {
	if n == nil {
		return nil
	}
	return nonNil(n.Items...)
}

// Line returns the node's source line, or 0 when it has none.
func Line(n Node) int {
	if p, ok := n.(interface{ line() int }); ok {
		return p.line()
	}
	return 0
}

func (p Position) line() int { return p.Line }

// HasArgument reports whether node is one of the invocation's arguments.
func (n *MethodInvocation) HasArgument(node Node) bool {
	for _, arg := range n.Arguments {
		if arg == node {
			return true
		}
	}
	return false
}

// listNode converts a possibly-nil *List into a Node without producing a
// non-nil interface holding a nil pointer.
func listNode(l *List) Node {
	if l == nil {
		return nil
	}
	return l
}

func nonNil(nodes ...Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if !isNil(n) {
			out = append(out, n)
		}
	}
	return out
}

func isNil(n Node) bool {
	if n == nil {
		return true
	}
	if l, ok := n.(*List); ok && l == nil {
		return true
	}
	return false
}
