package comparator

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Collation orders and equates strings.
type Collation interface {
	Name() string
	Compare(a, b string) int
}

type defaultCollation struct{}

func (defaultCollation) Name() string              { return "default" }
func (defaultCollation) Compare(a, b string) int { return strings.Compare(a, b) }

type caseInsensitive struct{}

func (caseInsensitive) Name() string { return "ci" }

// Compare folds both strings before comparing them. A Caser keeps state,
// so one is built per call.
func (caseInsensitive) Compare(a, b string) int {
	fold := cases.Fold()
	return strings.Compare(fold.String(a), fold.String(b))
}

var (
	// DefaultCollation compares strings byte by byte.
	DefaultCollation Collation = defaultCollation{}
	// CaseInsensitive compares the Unicode case folding of strings.
	CaseInsensitive Collation = caseInsensitive{}
)

var (
	collationsMu sync.RWMutex
	collations   = map[string]Collation{
		DefaultCollation.Name(): DefaultCollation,
		CaseInsensitive.Name():  CaseInsensitive,
	}
)

// RegisterCollation makes c available to CollationByName.
func RegisterCollation(c Collation) {
	collationsMu.Lock()
	defer collationsMu.Unlock()
	collations[c.Name()] = c
}

// CollationByName returns the collation registered under name. An empty
// name is the default collation.
func CollationByName(name string) (Collation, error) {
	if name == "" {
		return DefaultCollation, nil
	}
	collationsMu.RLock()
	defer collationsMu.RUnlock()
	c, ok := collations[name]
	if !ok {
		return nil, fmt.Errorf("unknown collation %q", name)
	}
	return c, nil
}

func isDefault(c Collation) bool {
	return c == nil || c.Name() == DefaultCollation.Name()
}

// pick returns the collation of a unless it is the default one, then the
// collation of b.
func pick(a, b Collation) Collation {
	if !isDefault(a) {
		return a
	}
	if !isDefault(b) {
		return b
	}
	return DefaultCollation
}
