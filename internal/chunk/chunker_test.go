package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyFileYieldsNoChunks(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), "a.py", []byte("   \n\n"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_UnsupportedExtensionFallsBackToModuleChunkNamedAfterStem(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "package main\n\nfunc main() {}\n"
	chunks, err := c.Chunk(context.Background(), "pkg/main.go", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	got := chunks[0]
	assert.Equal(t, KindModule, got.Kind)
	assert.Equal(t, "main", got.Name)
	assert.Equal(t, content, got.Text)
	assert.Equal(t, 1, got.StartLine)
	assert.Equal(t, 4, got.EndLine)
}

// Scenario 1 (§8): a single top-level function.
func TestChunk_TopLevelFunction(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "def foo():\n    return 1\n"
	chunks, err := c.Chunk(context.Background(), "a.py", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	got := chunks[0]
	assert.Equal(t, KindFunction, got.Kind)
	assert.Equal(t, "foo", got.Name)
	assert.Equal(t, 1, got.StartLine)
	assert.Equal(t, 2, got.EndLine)
	assert.Contains(t, got.Text, "return 1")
}

// Scenario 2 (§8): a class with one method.
func TestChunk_ClassWithMethod(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "class C:\n    def m(self):\n        pass\n"
	chunks, err := c.Chunk(context.Background(), "b.py", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	var class, method *Chunk
	for i := range chunks {
		switch chunks[i].Kind {
		case KindClass:
			class = &chunks[i]
		case KindMethod:
			method = &chunks[i]
		}
	}
	require.NotNil(t, class)
	require.NotNil(t, method)
	assert.Equal(t, "C", class.Name)
	assert.Equal(t, "m", method.Name)
	assert.Equal(t, 1, class.StartLine)
	assert.Equal(t, 3, class.EndLine)
}

func TestChunk_MultipleTopLevelFunctionsAndClasses(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "def a():\n    pass\n\n\nclass B:\n    def m1(self):\n        pass\n\n    def m2(self):\n        pass\n\n\ndef c():\n    pass\n"
	chunks, err := c.Chunk(context.Background(), "multi.py", []byte(content))
	require.NoError(t, err)

	var names []string
	for _, ch := range chunks {
		names = append(names, ch.Name)
	}
	assert.ElementsMatch(t, []string{"a", "B", "m1", "m2", "c"}, names)
}

// P5: Chunker(file).∪text ⊇ every definition body verbatim; ranges are
// 1-indexed and start_line <= end_line.
func TestChunk_RangesAreOneIndexedAndOrdered(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "def foo(x):\n    y = x + 1\n    return y\n"
	chunks, err := c.Chunk(context.Background(), "ranges.py", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.GreaterOrEqual(t, chunks[0].EndLine, chunks[0].StartLine)
	assert.GreaterOrEqual(t, chunks[0].StartLine, 1)
	assert.Contains(t, chunks[0].Text, "y = x + 1")
	assert.Contains(t, chunks[0].Text, "return y")
}

func TestChunk_NestedFunctionIsNotSeparatelyChunked(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "def outer():\n    def inner():\n        return 1\n    return inner()\n"
	chunks, err := c.Chunk(context.Background(), "nested.py", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "outer", chunks[0].Name)
	assert.Contains(t, chunks[0].Text, "def inner")
}

func TestChunk_NestedClassAttachesMethodsToInnerClassOnly(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "class Outer:\n    class Inner:\n        def m(self):\n            pass\n"
	chunks, err := c.Chunk(context.Background(), "nested_class.py", []byte(content))
	require.NoError(t, err)

	var outer, inner, method *Chunk
	for i := range chunks {
		switch chunks[i].Name {
		case "Outer":
			outer = &chunks[i]
		case "Inner":
			inner = &chunks[i]
		case "m":
			method = &chunks[i]
		}
	}
	require.NotNil(t, outer)
	require.NotNil(t, inner)
	require.NotNil(t, method)
	assert.Equal(t, KindClass, outer.Kind)
	assert.Equal(t, KindClass, inner.Kind)
	assert.Equal(t, KindMethod, method.Kind)
}

func TestChunk_ParseableFileWithNoDefinitionsFallsBackToUnnamedModuleChunk(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "x = 1\ny = 2\n"
	chunks, err := c.Chunk(context.Background(), "plain.py", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, KindModule, chunks[0].Kind)
	assert.Empty(t, chunks[0].Name)
	assert.Equal(t, content, chunks[0].Text)
}

func TestChunk_DecoratorsAreIncludedInSpan(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	content := "@staticmethod\ndef foo():\n    return 1\n"
	chunks, err := c.Chunk(context.Background(), "deco.py", []byte(content))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "foo", chunks[0].Name)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Contains(t, chunks[0].Text, "@staticmethod")
}

func TestChunk_ContentHashIsDeterministic(t *testing.T) {
	a := Chunk{Text: "def f(): pass"}
	b := Chunk{Text: "def f(): pass"}
	c := Chunk{Text: "def g(): pass"}

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
}
