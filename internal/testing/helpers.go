package testing

import (
	"context"
	"testing"

	"github.com/dl-alexandre/gdm/internal/types"
	"google.golang.org/api/drive/v3"
)

// TestContext creates a standard test context
func TestContext() context.Context {
	return context.Background()
}

// TestRequestContext creates a standard request context for testing
func TestRequestContext() *types.RequestContext {
	return &types.RequestContext{
		Profile:           "test-profile",
		InvolvedFileIDs:   []string{},
		InvolvedParentIDs: []string{},
		RequestType:       types.RequestTypeListOrSearch,
		TraceID:           "test-trace-id",
	}
}

// TestSpreadsheet creates an owned spreadsheet for testing
func TestSpreadsheet(id, name string, parents ...string) *drive.File {
	return &drive.File{
		Id:        id,
		Name:      name,
		MimeType:  "application/vnd.google-apps.spreadsheet",
		Parents:   parents,
		OwnedByMe: true,
	}
}

// TestFile creates an owned Drive file for testing
func TestFile(id, name, mimeType string, parents ...string) *drive.File {
	return &drive.File{
		Id:        id,
		Name:      name,
		MimeType:  mimeType,
		Parents:   parents,
		OwnedByMe: true,
	}
}

// TestPermission creates a user permission for testing
func TestPermission(permType, role, email string) *drive.Permission {
	p := &drive.Permission{
		Type: permType,
		Role: role,
	}
	if permType == "domain" {
		p.Domain = email
	} else {
		p.EmailAddress = email
	}
	return p
}

// AssertNoError is a helper to fail the test if error is not nil
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", msgAndArgs[0], err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// AssertError is a helper to fail the test if error is nil
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: expected error but got nil", msgAndArgs[0])
		} else {
			t.Fatal("expected error but got nil")
		}
	}
}

// AssertEqual is a helper to fail the test if two values are not equal
func AssertEqual(t *testing.T, got, want interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if got != want {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: got %v, want %v", msgAndArgs[0], got, want)
		} else {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
