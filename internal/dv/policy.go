package dv

import "fmt"

// RevisionPolicy decides what a replace with identical content does.
type RevisionPolicy string

const (
	// SkipIdentical makes a replace with the current checksum a no-op.
	SkipIdentical RevisionPolicy = "skip-identical"
	// AlwaysRevision records a revision for every replace.
	AlwaysRevision RevisionPolicy = "always"
)

// ParseRevisionPolicy maps a config value to a policy. Empty means
// SkipIdentical.
func ParseRevisionPolicy(s string) (RevisionPolicy, error) {
	switch RevisionPolicy(s) {
	case "", SkipIdentical:
		return SkipIdentical, nil
	case AlwaysRevision:
		return AlwaysRevision, nil
	}
	return "", fmt.Errorf("unknown revision policy: %q", s)
}
