package domain

import (
	"testing"

	"wildlifecore/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of any
// dependency on implementation packages.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must stay implementation agnostic")
}
