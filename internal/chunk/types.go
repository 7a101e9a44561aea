package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

// Kind is the syntactic category of a chunk.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
	KindModule   Kind = "module"
)

// Chunk is a semantic unit extracted from a source file (§3, §4.4). It
// carries no identity of its own — the relative file path and StartLine are
// combined into a chunk ID one layer up, by the store.
type Chunk struct {
	Text      string
	Kind      Kind
	Name      string // empty for the zero-definitions module fallback
	StartLine int    // 1-indexed
	EndLine   int    // 1-indexed, inclusive
}

// ContentHash is the SHA-256 hex digest of Text. The Indexer uses it as the
// embedding-cache key, so unchanged chunk text reuses its cached vector.
func (c Chunk) ContentHash() string {
	sum := sha256.Sum256([]byte(c.Text))
	return hex.EncodeToString(sum[:])
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}
