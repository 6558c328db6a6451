package lockfile

import "testing"

// TestExpandNpmDepMapResolvesBareNameToShortID confirms a bare
// dependency name against a peer-suffixed npm package resolves to the
// package's short "name@version" form, not the full (peer-suffixed)
// section key it's recorded under.
func TestExpandNpmDepMapResolvesBareNameToShortID(t *testing.T) {
	doc := []byte(`{
		"version": "5",
		"npm": {
			"chalk@5.0.0_react@18": {
				"integrity": "sha512-x",
				"dependencies": {"react": "react"},
				"optionalDependencies": {}
			},
			"react@18.0.0": {"integrity": "sha512-y"}
		}
	}`)

	content, err := decodeV5(doc)
	if err != nil {
		t.Fatalf("decodeV5: %v", err)
	}
	info, ok := content.Packages.Npm["chalk@5.0.0_react@18"]
	if !ok {
		t.Fatalf("expected chalk entry to survive decode")
	}
	if got := info.Dependencies["react"]; got != "react@18.0.0" {
		t.Fatalf("expected bare dep name to resolve to short id %q, got %q", "react@18.0.0", got)
	}
}

// TestSerializeCollapsesNpmDependencyToShortID is the serialization
// counterpart: a Dependencies value recorded as a full peer-suffixed
// id must be written out in its short "name@version" form.
func TestSerializeCollapsesNpmDependencyToShortID(t *testing.T) {
	content := newLockfileContent()
	content.Packages.Npm["consumer@1.0.0"] = NpmPackageInfo{
		Integrity:    "sha512-z",
		Dependencies: map[string]string{"chalk": "chalk@5.0.0_react@18"},
	}

	out := serialize(content)
	reloaded, err := decodeV5([]byte(out))
	if err != nil {
		t.Fatalf("decodeV5 of serialized output: %v", err)
	}
	info := reloaded.Packages.Npm["consumer@1.0.0"]
	if got := info.Dependencies["chalk"]; got != "chalk@5.0.0" {
		t.Fatalf("expected serialized dependency to be collapsed to short id %q, got %q", "chalk@5.0.0", got)
	}
}
