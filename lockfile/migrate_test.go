package lockfile

import "testing"

func TestMigrateV2Document(t *testing.T) {
	raw := []byte(`{"version":"2","remote":{"https://x/a.ts":"abc"}}`)
	content, err := parseAndMigrate(raw, nil)
	if err != nil {
		t.Fatalf("parseAndMigrate: %v", err)
	}
	if content.Remote["https://x/a.ts"] != "abc" {
		t.Fatalf("expected remote entry to survive migration, got %v", content.Remote)
	}
}

func TestMigrateV3DocumentWithNpmPackage(t *testing.T) {
	raw := []byte(`{
		"version": "3",
		"npm": {
			"left-pad@1.0.0": {"integrity": "sha512-abc"}
		},
		"specifiers": {
			"npm:left-pad@^1.0.0": "left-pad@1.0.0"
		}
	}`)
	content, err := parseAndMigrate(raw, nil)
	if err != nil {
		t.Fatalf("parseAndMigrate: %v", err)
	}
	info, ok := content.Packages.Npm["left-pad@1.0.0"]
	if !ok {
		t.Fatalf("expected left-pad@1.0.0 to survive migration")
	}
	if info.Integrity != "sha512-abc" {
		t.Fatalf("expected integrity to survive migration, got %q", info.Integrity)
	}
}

func TestMigrateUnsupportedFutureVersion(t *testing.T) {
	raw := []byte(`{"version": "99"}`)
	_, err := parseAndMigrate(raw, nil)
	if _, ok := err.(*UnsupportedVersionError); !ok {
		t.Fatalf("expected UnsupportedVersionError, got %T: %v", err, err)
	}
}

func TestMigrateRejectsNonObjectTopLevel(t *testing.T) {
	_, err := parseAndMigrate([]byte(`[1,2,3]`), nil)
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
}

func TestMigrateRejectsEmptyInput(t *testing.T) {
	_, err := parseAndMigrate([]byte("   "), nil)
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected ParseError for empty input, got %T: %v", err, err)
	}
}

type fakeNpmPackageInfoProvider map[string]NpmPackageInfo

func (p fakeNpmPackageInfoProvider) NpmPackageInfo(id string) (NpmPackageInfo, bool) {
	info, ok := p[id]
	return info, ok
}

// TestMigrateV4ToV5BackfillsFromProvider confirms the v4->v5 step
// actually consults its NpmPackageInfoProvider collaborator rather
// than always producing zero-value metadata.
func TestMigrateV4ToV5BackfillsFromProvider(t *testing.T) {
	raw := []byte(`{
		"version": "4",
		"npm": {
			"esbuild@0.19.0_react@18": {"integrity": "sha512-x", "dependencies": {}, "optionalDependencies": {}}
		},
		"specifiers": {}
	}`)
	provider := fakeNpmPackageInfoProvider{
		"esbuild@0.19.0_react@18": NpmPackageInfo{
			OptionalPeers: map[string]string{"react": "react@18"},
			OS:            []string{"darwin", "linux"},
			CPU:           []string{"x64"},
			Tarball:       "https://registry.npmjs.org/esbuild/-/esbuild-0.19.0.tgz",
			Deprecated:    true,
			Scripts:       true,
			Bin:           true,
		},
	}

	content, err := parseAndMigrate(raw, provider)
	if err != nil {
		t.Fatalf("parseAndMigrate: %v", err)
	}
	info, ok := content.Packages.Npm["esbuild@0.19.0_react@18"]
	if !ok {
		t.Fatalf("expected package to survive migration")
	}
	if info.OptionalPeers["react"] != "react@18" {
		t.Fatalf("expected optionalPeers backfilled from provider, got %v", info.OptionalPeers)
	}
	if len(info.OS) != 2 || len(info.CPU) != 1 {
		t.Fatalf("expected os/cpu backfilled from provider, got os=%v cpu=%v", info.OS, info.CPU)
	}
	if info.Tarball == "" || !info.Deprecated || !info.Scripts || !info.Bin {
		t.Fatalf("expected remaining extras backfilled from provider, got %+v", info)
	}
}

// TestMigrationIdempotentOnAlreadyMigratedForm is invariant 1: loading
// an old document, serializing it, and reparsing it must produce the
// same content as the first load, without the migration step itself
// ever dirtying anything.
func TestMigrationIdempotentOnAlreadyMigratedForm(t *testing.T) {
	raw := []byte(`{"version":"2","remote":{"https://x/a.ts":"abc","https://x/b.ts":"def"}}`)
	l, err := New("/tmp/test.lock", raw, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.HasContentChanged() {
		t.Fatalf("load must not dirty")
	}

	serialized := l.AsJSONString()
	reloaded, err := New("/tmp/test.lock", []byte(serialized), nil)
	if err != nil {
		t.Fatalf("reloading serialized form: %v", err)
	}
	if !stringMapEqual(reloaded.Content.Remote, l.Content.Remote) {
		t.Fatalf("remote content diverged across migrate->serialize->reload")
	}
}
