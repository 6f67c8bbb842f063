package gate

import (
	"errors"
	"strings"
	"testing"

	"turnstile/internal/types"
)

func TestAuthorizeNoRequirements(t *testing.T) {
	empty := New()
	if err := empty.Authorize("echo", nil); err != nil {
		t.Errorf("unrestricted capability denied by empty gate: %v", err)
	}
	if err := empty.Authorize("echo", []types.Permission{}); err != nil {
		t.Errorf("unrestricted capability denied by empty gate: %v", err)
	}
}

func TestAuthorizeGranted(t *testing.T) {
	g := New(types.PermissionFilesystemRead, types.PermissionNetwork)
	err := g.Authorize("read-file", []types.Permission{types.PermissionFilesystemRead})
	if err != nil {
		t.Errorf("granted capability denied: %v", err)
	}
}

func TestAuthorizeDeniedNamesAllMissing(t *testing.T) {
	g := New(types.PermissionFilesystemRead)
	required := []types.Permission{
		types.PermissionShell,
		types.PermissionFilesystemRead,
		types.PermissionNetwork,
	}

	err := g.Authorize("deploy", required)
	if err == nil {
		t.Fatal("expected a denial")
	}
	if !errors.Is(err, ErrDenied) {
		t.Errorf("denial does not wrap ErrDenied: %v", err)
	}

	var denial *DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("error is %T, want *DenialError", err)
	}
	if denial.Capability != "deploy" {
		t.Errorf("denial names capability %q", denial.Capability)
	}

	want := []types.Permission{types.PermissionNetwork, types.PermissionShell}
	if len(denial.Missing) != len(want) {
		t.Fatalf("missing = %v, want %v", denial.Missing, want)
	}
	for i, p := range want {
		if denial.Missing[i] != p {
			t.Errorf("missing[%d] = %s, want %s", i, denial.Missing[i], p)
		}
	}

	msg := err.Error()
	for _, fragment := range []string{"deploy", "network", "shell"} {
		if !strings.Contains(msg, fragment) {
			t.Errorf("denial message %q does not mention %q", msg, fragment)
		}
	}
	if strings.Contains(msg, string(types.PermissionFilesystemRead)) {
		t.Errorf("denial message %q names a granted permission", msg)
	}
}

func TestZeroValueGrantsNothing(t *testing.T) {
	var g Gate
	err := g.Authorize("read-file", []types.Permission{types.PermissionFilesystemRead})
	if !errors.Is(err, ErrDenied) {
		t.Errorf("zero-value gate allowed a restricted capability: %v", err)
	}
	if err := g.Authorize("echo", nil); err != nil {
		t.Errorf("zero-value gate denied an unrestricted capability: %v", err)
	}
}

func TestPermissiveGrantsEverything(t *testing.T) {
	g := Permissive()
	if err := g.Authorize("anything", types.AllPermissions()); err != nil {
		t.Errorf("permissive gate denied: %v", err)
	}
}

func TestGrantsSorted(t *testing.T) {
	g := New(types.PermissionShell, types.PermissionFilesystemRead, types.PermissionNetwork)
	grants := g.Grants()
	for i := 1; i < len(grants); i++ {
		if grants[i-1] >= grants[i] {
			t.Fatalf("grants not sorted: %v", grants)
		}
	}
	if len(grants) != 3 {
		t.Errorf("len(grants) = %d, want 3", len(grants))
	}
}

func TestAuthorizeDeduplicatesMissing(t *testing.T) {
	g := New()
	err := g.Authorize("shell", []types.Permission{
		types.PermissionShell,
		types.PermissionShell,
	})

	var denial *DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("error is %T, want *DenialError", err)
	}
	if len(denial.Missing) != 1 {
		t.Errorf("missing = %v, want a single entry", denial.Missing)
	}
}
