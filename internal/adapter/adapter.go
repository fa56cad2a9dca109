// Package adapter parses source files with tree-sitter and extracts test
// units and production symbols. Parsing is deterministic and never executes
// any code from the input; the syntax tree is owned by the caller and must be
// closed once fact extraction is done.
package adapter

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"testlint/internal/logging"
)

// Adapter owns one tree-sitter parser per supported language. It is not safe
// for concurrent use; the engine creates one Adapter per worker.
type Adapter struct {
	parsers map[string]*sitter.Parser
}

// languages maps language tags to grammars.
func languageFor(tag string) *sitter.Language {
	switch tag {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	}
	return nil
}

// New creates an adapter with lazily configured parsers.
func New() *Adapter {
	return &Adapter{parsers: make(map[string]*sitter.Parser)}
}

// Close releases parser resources.
func (a *Adapter) Close() {
	for _, p := range a.parsers {
		p.Close()
	}
	a.parsers = make(map[string]*sitter.Parser)
}

// File is one parsed source file. The tree is discarded via Close after fact
// extraction to bound memory.
type File struct {
	Path     string
	Language string
	Content  []byte
	tree     *sitter.Tree
}

// Root returns the root syntax node.
func (f *File) Root() *sitter.Node { return f.tree.RootNode() }

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Text returns the source text of a node.
func (f *File) Text(n *sitter.Node) string { return n.Content(f.Content) }

// Parse parses source text for the given language tag. The context carries the
// per-file timeout; cancellation surfaces as an error, never a partial tree.
func (a *Adapter) Parse(ctx context.Context, path string, content []byte, langTag string) (*File, error) {
	lang := languageFor(langTag)
	if lang == nil {
		return nil, fmt.Errorf("unsupported language %q", langTag)
	}

	p, ok := a.parsers[langTag]
	if !ok {
		p = sitter.NewParser()
		a.parsers[langTag] = p
	}
	p.SetLanguage(lang)

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree.RootNode().HasError() {
		tree.Close()
		return nil, fmt.Errorf("parse %s: syntax errors in source", path)
	}

	logging.AdapterDebug("parsed %s (%s, %d bytes)", path, langTag, len(content))
	return &File{Path: path, Language: langTag, Content: content, tree: tree}, nil
}
