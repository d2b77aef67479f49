package analysis

import "github.com/Benny93/classgraph/internal/syntax"

// Declarations lists the field and method names a compilation unit declares,
// in traversal order. Names are not deduplicated. Constructors appear as
// syntax.ConstructorName.
type Declarations struct {
	Fields  []string `json:"fields"`
	Methods []string `json:"methods"`
}

// ExtractDeclarations collects every declared field and method name in the
// tree, including those of nested and anonymous classes.
func ExtractDeclarations(root syntax.Node) Declarations {
	decls := Declarations{
		Fields:  []string{},
		Methods: []string{},
	}

	w := syntax.Walk(root)
	for {
		p, ok := w.Next()
		if !ok {
			return decls
		}

		switch n := p.Node.(type) {
		case *syntax.FieldDeclaration:
			for _, item := range n.Declarators.Children() {
				if d, ok := item.(*syntax.VariableDeclarator); ok {
					decls.Fields = append(decls.Fields, d.Name)
				}
			}
		case *syntax.MethodDeclaration:
			decls.Methods = append(decls.Methods, n.Name)
		case *syntax.ConstructorDeclaration:
			decls.Methods = append(decls.Methods, syntax.ConstructorName)
		}
	}
}

// FieldSet returns the declared field names as a set.
func (d Declarations) FieldSet() Set {
	return NewSet(d.Fields...)
}

// MethodSet returns the declared method names as a set.
func (d Declarations) MethodSet() Set {
	return NewSet(d.Methods...)
}
