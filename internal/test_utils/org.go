package test_utils

import (
	"context"

	"github.com/courtly/courtly/pkg/org"
)

// TestOrgId is the organization used by service and repository tests.
const TestOrgId int64 = 1

// OrgContext returns a context scoped to the test organization.
func OrgContext() context.Context {
	return org.WithOrg(context.Background(), TestOrgId)
}
