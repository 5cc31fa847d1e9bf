package testutil

import (
	"testing"

	"docvault/internal/database"
)

// NewTestCatalog creates an in-memory catalog with migrations applied.
// It is closed when the test completes.
func NewTestCatalog(t *testing.T) *database.SQLiteCatalog {
	t.Helper()

	c, err := database.NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
	})
	return c
}
