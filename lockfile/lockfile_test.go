package lockfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/depforge/rtcore/internal/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// TestInsertRemoteDirtyDiscipline is scenario S1.
func TestInsertRemoteDirtyDiscipline(t *testing.T) {
	l := NewEmpty("/tmp/does-not-matter.lock")
	l.overwrite = false // exercise the dirty-flag path, not the overwrite path

	if l.HasContentChanged() {
		t.Fatalf("fresh empty lockfile should not be dirty")
	}

	l.InsertRemote("https://x/a.ts", "abc")
	if !l.HasContentChanged() {
		t.Fatalf("expected dirty after first insert")
	}

	bytes, ok := l.ResolveWriteBytes()
	if !ok {
		t.Fatalf("expected ResolveWriteBytes to return bytes")
	}
	if l.HasContentChanged() {
		t.Fatalf("ResolveWriteBytes must clear the dirty flag")
	}
	if strings.Count(string(bytes), `"https://x/a.ts"`) != 1 {
		t.Fatalf("expected exactly one remote entry, got:\n%s", bytes)
	}

	l.InsertRemote("https://x/a.ts", "abc")
	if l.HasContentChanged() {
		t.Fatalf("re-inserting an identical value must not dirty")
	}
	if _, ok := l.ResolveWriteBytes(); ok {
		t.Fatalf("expected no write when nothing changed and overwrite is false")
	}
}

// TestMigrateBareURLDocument is scenario S2.
func TestMigrateBareURLDocument(t *testing.T) {
	raw := []byte(`{
		"https://deno.land/std@0.71.0/textproto/mod.ts": "3118d7",
		"https://deno.land/std@0.71.0/async/delay.ts": "35957d"
	}`)

	l, err := New("/tmp/test.lock", raw, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(l.Content.Remote) != 2 {
		t.Fatalf("expected 2 remote entries, got %d", len(l.Content.Remote))
	}
	if l.HasContentChanged() {
		t.Fatalf("migration alone must not dirty the lockfile")
	}
}

func TestAddPackageDepsDropsUnresolved(t *testing.T) {
	l := NewEmpty("/tmp/test.lock")
	known := DepReq{Kind: Jsr, Name: "@std/path", Range: "^1.0.0"}
	l.Content.Packages.Specifiers[known] = "@std/path@1.0.0"
	unknown := DepReq{Kind: Jsr, Name: "@std/fs", Range: "^1.0.0"}

	nv := Nv{Name: "@std/testing", Version: "1.0.0"}
	l.AddPackageDeps(nv, []DepReq{known, unknown})

	entry := l.Content.Packages.Jsr[nv.String()]
	if len(entry.Dependencies) != 1 {
		t.Fatalf("expected only the resolvable dep to be recorded, got %v", entry.Dependencies)
	}
	if _, ok := entry.Dependencies[known]; !ok {
		t.Fatalf("expected known dep present")
	}
}

func TestResolveWriteBytesOverwriteAlwaysWrites(t *testing.T) {
	l := NewEmpty("/tmp/test.lock")
	if _, ok := l.ResolveWriteBytes(); !ok {
		t.Fatalf("expected overwrite=true lockfile to always produce bytes")
	}
}

func TestRoundTripSerialization(t *testing.T) {
	l := NewEmpty("/tmp/test.lock")
	l.InsertRemote("https://x/b.ts", "def")
	l.InsertRemote("https://x/a.ts", "abc")
	l.InsertRedirect("https://x/old.ts", "https://x/new.ts")

	text := l.AsJSONString()
	reloaded, err := New("/tmp/test.lock", []byte(text), nil)
	if err != nil {
		t.Fatalf("reparsing serialized output: %v", err)
	}
	if !stringMapEqual(reloaded.Content.Remote, l.Content.Remote) {
		t.Fatalf("remote section did not round-trip: %v vs %v", reloaded.Content.Remote, l.Content.Remote)
	}
	if !stringMapEqual(reloaded.Content.Redirects, l.Content.Redirects) {
		t.Fatalf("redirects section did not round-trip")
	}
	if diff := cmp.Diff(l.Content, reloaded.Content, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round-tripped content differs (-want +got):\n%s", diff)
	}
}

func TestSetWorkspaceConfigPrunesUnreachablePackage(t *testing.T) {
	l := NewEmpty("/tmp/test.lock")
	l.overwrite = false

	req := DepReq{Kind: Jsr, Name: "@std/path", Range: "^1.0.0"}
	l.Content.Packages.Specifiers[req] = "@std/path@1.0.0"
	l.Content.Packages.Jsr["@std/path@1.0.0"] = JsrPackageInfo{Integrity: "abc", Dependencies: DepReqSet{}}
	l.Content.Workspace.Root.Dependencies[req] = struct{}{}
	l.dirty = false

	l.SetWorkspaceConfig(SetWorkspaceConfigOptions{
		Config: WorkspaceConfig{
			Root: newWorkspaceMemberConfigContent(),
		},
	})

	if _, ok := l.Content.Packages.Jsr["@std/path@1.0.0"]; ok {
		t.Fatalf("expected unreachable jsr package to be pruned after dep removal")
	}
	if !l.HasContentChanged() {
		t.Fatalf("expected pruning a real package to dirty the lockfile")
	}
}

func TestSetWorkspaceConfigLogsPrunedPackage(t *testing.T) {
	l := NewEmpty("/tmp/test.lock")
	l.overwrite = false

	req := DepReq{Kind: Jsr, Name: "@std/path", Range: "^1.0.0"}
	l.Content.Packages.Specifiers[req] = "@std/path@1.0.0"
	l.Content.Packages.Jsr["@std/path@1.0.0"] = JsrPackageInfo{Integrity: "abc", Dependencies: DepReqSet{}}
	l.Content.Workspace.Root.Dependencies[req] = struct{}{}
	l.dirty = false

	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetVerbose(true)

	l.SetWorkspaceConfig(SetWorkspaceConfigOptions{
		Config: WorkspaceConfig{
			Root: newWorkspaceMemberConfigContent(),
		},
		Logger: logger,
	})

	if !strings.Contains(buf.String(), "@std/path@1.0.0") {
		t.Fatalf("expected pruned package to be traced, got log output:\n%s", buf.String())
	}
}

func TestSetWorkspaceConfigOnEmptyLockfileDoesNotDirty(t *testing.T) {
	l := NewEmpty("/tmp/test.lock")
	l.overwrite = false

	l.SetWorkspaceConfig(SetWorkspaceConfigOptions{
		NoConfig: true,
		Config: WorkspaceConfig{
			Root: newWorkspaceMemberConfigContent(),
		},
	})

	if l.HasContentChanged() {
		t.Fatalf("reconciling an already-empty lockfile must not create a dirty one")
	}
}
