package chunk

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// pythonLanguage is the single tree-sitter grammar this chunker supports.
// The spec scopes semantic chunking to one primary language; every other
// extension takes the whole-file fallback chunk (§4.4).
var pythonLanguage = python.GetLanguage()

const pythonExtension = ".py"

// IsSupportedExtension reports whether ext (including the leading dot) has a
// registered grammar.
func IsSupportedExtension(ext string) bool {
	return ext == pythonExtension
}

func treeSitterLanguage(ext string) (*sitter.Language, bool) {
	if ext == pythonExtension {
		return pythonLanguage, true
	}
	return nil, false
}
