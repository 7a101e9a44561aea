// Package merkle builds and compares content-addressed Merkle forests over
// a project's source tree, the substrate the rest of the index relies on
// for knowing what changed since the last pass.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
)

// hashBlockSize is the minimum read chunk used while streaming file content
// through the hasher; matches the ≥4 KiB streaming requirement.
const hashBlockSize = 8192

// HashFile streams the file at path through SHA-256 and returns the lowercase
// hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashDir computes a directory's hash from its children, iterating names in
// ascending byte order and feeding each name immediately followed by its
// child's lowercase hex hash. This makes the hash a pure function of the
// (name, hash) pairs, independent of filesystem iteration order.
func HashDir(children map[string]*Node) string {
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteString(children[name].Hash)
	}

	h := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(h[:])
}

// isBinary reports whether the first 8 KiB of path contains a NUL byte, or
// the file could not be read at all. Both cases exclude the file (I5).
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, hashBlockSize)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}
