// Package api_test exercises the HTTP surface as a black box, through
// Server.Router(), the way a real client would.
package api_test

import (
	"context"
	"testing"

	"github.com/flagwell/flagwell/internal/store"
	"github.com/flagwell/flagwell/internal/testutil"
)

// seedManagementToken mints a bearer token for an arbitrary management
// principal; most handlers under test don't gate on project_id claims, so
// a project ID isn't threaded through here.
func seedManagementToken(t *testing.T, _ context.Context, _ store.Store) string {
	t.Helper()
	return testutil.IssueManagementToken(t, "user-1", "")
}
