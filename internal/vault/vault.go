// Package vault stores catalog backups on the local filesystem, in memory
// or in an S3 bucket.
package vault

import (
	"fmt"
	"strings"
)

// checkName refuses names that are not a single, visible path component.
// The filesystem vault uses dot-prefixed names for partial uploads.
func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("invalid backup name %q", name)
	}
	return nil
}
