package chunk

import (
	"context"
	"path/filepath"
	"strings"
)

// Chunker extracts semantic chunks from source files using tree-sitter
// (§4.4). A single shared Parser instance is reused across files.
type Chunker struct {
	parser *Parser
}

// NewChunker creates a Chunker.
func NewChunker() *Chunker {
	return &Chunker{parser: NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (c *Chunker) Close() {
	c.parser.Close()
}

// Chunk extracts chunks from the file at relPath with the given content.
//
// An empty (or whitespace-only) file yields no chunks. An unsupported
// extension, or any parse failure, yields a single whole-file fallback chunk
// named after the file stem. A parseable file with no recognized top-level
// definitions yields a single whole-file module chunk with an empty name —
// the distinction between the two fallback cases is that the second one
// matters downstream for identifying genuinely unsupported files.
func (c *Chunker) Chunk(ctx context.Context, relPath string, content []byte) ([]Chunk, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ext := strings.ToLower(filepath.Ext(relPath))
	if !IsSupportedExtension(ext) {
		return []Chunk{fallbackChunk(text, relPath)}, nil
	}

	tree, err := c.parser.Parse(ctx, content, ext)
	if err != nil {
		return []Chunk{fallbackChunk(text, relPath)}, nil
	}

	chunks := extractPython(tree.Root, content)
	if len(chunks) == 0 {
		return []Chunk{moduleChunk(text)}, nil
	}
	return chunks, nil
}

// extractPython walks a Python AST emitting one chunk per top-level function
// or class, and one per method directly inside a class body. A function
// nested inside another function is not separately chunked; it remains part
// of its enclosing function's text. A class nested inside another class's
// body is chunked as its own class, with its own methods attached to it
// rather than to the outer class.
func extractPython(root *Node, source []byte) []Chunk {
	var chunks []Chunk
	var visit func(n *Node, parentClass string)

	// emit appends a chunk for def (a function_definition or class_definition
	// node), using span as the node whose byte range becomes the chunk's
	// text and line numbers — span is def itself, unless def sits under a
	// decorated_definition, in which case span is the wrapper so the
	// decorators are included in the chunk.
	emit := func(def, span *Node, parentClass string) {
		name := pythonName(def, source)
		switch def.Type {
		case "function_definition":
			kind := KindFunction
			if parentClass != "" {
				kind = KindMethod
			}
			chunks = append(chunks, Chunk{
				Text:      span.GetContent(source),
				Kind:      kind,
				Name:      name,
				StartLine: int(span.StartPoint.Row) + 1,
				EndLine:   int(span.EndPoint.Row) + 1,
			})
		case "class_definition":
			chunks = append(chunks, Chunk{
				Text:      span.GetContent(source),
				Kind:      KindClass,
				Name:      name,
				StartLine: int(span.StartPoint.Row) + 1,
				EndLine:   int(span.EndPoint.Row) + 1,
			})
			if block := def.FindChildByType("block"); block != nil {
				for _, child := range block.Children {
					visit(child, name)
				}
			}
		}
	}

	visit = func(n *Node, parentClass string) {
		switch n.Type {
		case "function_definition", "class_definition":
			emit(n, n, parentClass)
		case "decorated_definition":
			if inner := n.FindChildByType("function_definition"); inner != nil {
				emit(inner, n, parentClass)
				return
			}
			if inner := n.FindChildByType("class_definition"); inner != nil {
				emit(inner, n, parentClass)
				return
			}
			for _, child := range n.Children {
				visit(child, parentClass)
			}
		default:
			for _, child := range n.Children {
				visit(child, parentClass)
			}
		}
	}
	visit(root, "")
	return chunks
}

// pythonName returns the first "identifier" child's text — the name of a
// function_definition or class_definition node in the Python grammar.
func pythonName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func fallbackChunk(text, relPath string) Chunk {
	stem := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	return Chunk{
		Text:      text,
		Kind:      KindModule,
		Name:      stem,
		StartLine: 1,
		EndLine:   lineCount(text),
	}
}

func moduleChunk(text string) Chunk {
	return Chunk{
		Text:      text,
		Kind:      KindModule,
		Name:      "",
		StartLine: 1,
		EndLine:   lineCount(text),
	}
}

func lineCount(text string) int {
	return strings.Count(text, "\n") + 1
}
