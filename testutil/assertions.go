package testutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/types"
)

// RowIDs returns the ids of a listing, in order
func RowIDs(resp *types.AllDocsResponse) []string {
	ids := make([]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// AssertRowIDs checks the ids of a listing and their order
func AssertRowIDs(t testing.TB, resp *types.AllDocsResponse, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, RowIDs(resp)); diff != "" {
		t.Errorf("row ids mismatch (-want +got):\n%s", diff)
	}
}

// AssertTotalRows checks the post-filter count of a listing
func AssertTotalRows(t testing.TB, resp *types.AllDocsResponse, want int, context string) {
	t.Helper()
	if resp.TotalRows != want {
		t.Errorf("expected %d total rows %s, got %d", want, context, resp.TotalRows)
	}
}

// AssertErrorKind checks that err is a taskman error of kind
func AssertErrorKind(t testing.TB, err error, kind types.ErrorKind) *types.Error {
	t.Helper()
	if !types.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
	var terr *types.Error
	errors.As(err, &terr)
	return terr
}

// AssertErrorContains checks the displayed error text
func AssertErrorContains(t testing.TB, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("expected error containing %q, got %q", substr, err.Error())
	}
}
