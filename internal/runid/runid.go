// Package runid generates and validates the opaque token that namespaces one
// end-to-end pipeline execution: intermediate cache files, the vector
// collection, and the graph project node all derive their names from it.
package runid

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Length is the fixed token length.
const Length = 16

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"

var validRe = regexp.MustCompile(fmt.Sprintf("^[_0-9a-zA-Z]{%d}$", Length))

// ID is a run identifier. The zero value is invalid.
type ID string

// New generates a fresh random identifier. The alphabet is limited to
// [A-Za-z0-9_] so the token is safe in file names and backend collection
// names without escaping.
func New() ID {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// nothing sensible to do but stop.
		panic(fmt.Sprintf("runid: reading random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return ID(buf)
}

// Parse validates a previously issued identifier, e.g. one passed on the
// command line to resume a run from cached intermediate results.
func Parse(s string) (ID, error) {
	if !validRe.MatchString(s) {
		return "", fmt.Errorf("invalid run identifier %q (want %d chars of [A-Za-z0-9_])", s, Length)
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// VectorCollection is the vector store collection name for this run.
func (id ID) VectorCollection() string { return "vectordb_" + string(id) }

// GraphCollection is the graph store project identifier for this run.
func (id ID) GraphCollection() string { return "graphdb_" + string(id) }
