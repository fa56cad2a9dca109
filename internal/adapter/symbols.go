package adapter

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Symbol is one named declaration in a source file. The engine aggregates
// symbols across the repository into the index used for docstring code-ref
// resolution and placement inference.
type Symbol struct {
	Name string
	Kind string // function, method, class, struct, interface, enum, type
	Line int
}

// ExtractSymbols walks the tree and collects named declarations.
func (a *Adapter) ExtractSymbols(f *File) []Symbol {
	var symbols []Symbol

	add := func(n *sitter.Node, nameNode *sitter.Node, kind string) {
		if nameNode == nil {
			return
		}
		symbols = append(symbols, Symbol{
			Name: f.Text(nameNode),
			Kind: kind,
			Line: int(n.StartPoint().Row) + 1,
		})
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration", "function_definition", "function_item":
			add(n, n.ChildByFieldName("name"), "function")
		case "method_declaration":
			add(n, n.ChildByFieldName("name"), "method")
		case "class_definition", "class_declaration":
			add(n, n.ChildByFieldName("name"), "class")
		case "struct_item":
			add(n, n.ChildByFieldName("name"), "struct")
		case "enum_item":
			add(n, n.ChildByFieldName("name"), "enum")
		case "interface_declaration":
			add(n, n.ChildByFieldName("name"), "interface")
		case "type_declaration":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if spec := n.NamedChild(i); spec.Type() == "type_spec" {
					add(spec, spec.ChildByFieldName("name"), "type")
				}
			}
		case "lexical_declaration":
			// const f = () => {} counts as a function symbol in JS/TS.
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() != "variable_declarator" {
					continue
				}
				if v := c.ChildByFieldName("value"); v != nil && (v.Type() == "arrow_function" || v.Type() == "function") {
					add(c, c.ChildByFieldName("name"), "function")
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(f.Root())

	return symbols
}
