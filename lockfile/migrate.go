package lockfile

import (
	"bytes"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// parseAndMigrate turns raw lockfile bytes of any supported schema
// version into a v5 document and decodes it. Every step from v1
// through v4->v5 is a pure JSON->JSON rewrite except the last, which
// also consults an NpmPackageInfoProvider to backfill metadata that
// earlier schema versions never recorded.
func parseAndMigrate(text []byte, provider NpmPackageInfoProvider) (LockfileContent, error) {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 {
		return LockfileContent{}, &ParseError{Cause: errString("empty lockfile text")}
	}
	if !gjson.ValidBytes(trimmed) {
		return LockfileContent{}, &ParseError{Cause: errString("not valid JSON")}
	}
	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return LockfileContent{}, &ParseError{Cause: errString("top-level value is not a JSON object")}
	}

	version := "1"
	if v := root.Get("version"); v.Exists() {
		version = v.String()
	}

	doc := trimmed
	var err error
	switch version {
	case "1":
		doc = migrateV1ToV2(doc)
		fallthrough
	case "2":
		if doc, err = migrateV2ToV3(doc); err != nil {
			return LockfileContent{}, err
		}
		fallthrough
	case "3":
		if doc, err = migrateV3ToV4(doc); err != nil {
			return LockfileContent{}, err
		}
		fallthrough
	case "4":
		if doc, err = migrateV4ToV5(doc, provider); err != nil {
			return LockfileContent{}, err
		}
	case "5":
		// already current
	default:
		return LockfileContent{}, &UnsupportedVersionError{Version: version}
	}

	return decodeV5(doc)
}

type errString string

func (e errString) Error() string { return string(e) }

// migrateV1ToV2 wraps the bare `{url: hash, ...}` document (the
// format that predates a "version" field entirely) as the "remote"
// section of a versioned document.
func migrateV1ToV2(raw []byte) []byte {
	out := []byte(`{"version":"2"}`)
	out, _ = sjson.SetRawBytes(out, "remote", raw)
	return out
}

// migrateV2ToV3 introduces the specifiers/jsr/npm/redirects/workspace
// top-level sections, defaulting any that are absent to their empty
// form.
func migrateV2ToV3(doc []byte) ([]byte, error) {
	var err error
	doc, err = sjson.SetBytes(doc, "version", "3")
	if err != nil {
		return nil, err
	}
	for _, section := range []string{"specifiers", "jsr", "npm", "redirects", "workspace"} {
		if !gjson.GetBytes(doc, section).Exists() {
			doc, err = sjson.SetRawBytes(doc, section, []byte("{}"))
			if err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// migrateV3ToV4 normalizes every npm package entry to carry explicit
// (possibly empty) dependencies/optionalDependencies maps, and every
// workspace member to carry an (possibly empty) packageJson object.
func migrateV3ToV4(doc []byte) ([]byte, error) {
	var err error
	doc, err = sjson.SetBytes(doc, "version", "4")
	if err != nil {
		return nil, err
	}

	npm := gjson.GetBytes(doc, "npm")
	npm.ForEach(func(id, entry gjson.Result) bool {
		path := "npm." + escapeGjsonKey(id.String())
		if !entry.Get("dependencies").Exists() {
			doc, err = sjson.SetRawBytes(doc, path+".dependencies", []byte("{}"))
			if err != nil {
				return false
			}
		}
		if !entry.Get("optionalDependencies").Exists() {
			doc, err = sjson.SetRawBytes(doc, path+".optionalDependencies", []byte("{}"))
			if err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	members := gjson.GetBytes(doc, "workspace.members")
	members.ForEach(func(name, member gjson.Result) bool {
		path := "workspace.members." + escapeGjsonKey(name.String())
		if !member.Get("packageJson").Exists() {
			doc, err = sjson.SetRawBytes(doc, path+".packageJson", []byte("{}"))
			if err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// NpmPackageInfoProvider supplies the npm metadata fields that only
// exist from v5 onward, for packages carried forward from an older
// lockfile, the one collaborator the migration chain needs since this
// step isn't a pure JSON->JSON rewrite. A caller migrating a lockfile
// outside of an active npm resolution (e.g. a bare format upgrade) can
// pass nil, which falls back to the conservative all-zero answer.
type NpmPackageInfoProvider interface {
	// NpmPackageInfo looks up previously-unrecorded metadata for the
	// npm package identified by id (the full npm section key,
	// including any peer suffix). ok is false when the provider has
	// nothing on file for id.
	NpmPackageInfo(id string) (info NpmPackageInfo, ok bool)
}

type defaultNpmPackageInfoProvider struct{}

func (defaultNpmPackageInfoProvider) NpmPackageInfo(string) (NpmPackageInfo, bool) {
	return NpmPackageInfo{}, false
}

// migrateV4ToV5 backfills the npm metadata fields introduced in v5
// (optionalPeers, os, cpu, tarball, deprecated, scripts, bin). Workspace
// members are left as they are (see the note at the end).
func migrateV4ToV5(doc []byte, provider NpmPackageInfoProvider) ([]byte, error) {
	if provider == nil {
		provider = defaultNpmPackageInfoProvider{}
	}
	var err error
	doc, err = sjson.SetBytes(doc, "version", "5")
	if err != nil {
		return nil, err
	}

	npm := gjson.GetBytes(doc, "npm")
	npm.ForEach(func(id, entry gjson.Result) bool {
		path := "npm." + escapeGjsonKey(id.String())
		info, _ := provider.NpmPackageInfo(id.String())
		if !entry.Get("optionalPeers").Exists() {
			raw := "{}"
			if len(info.OptionalPeers) > 0 {
				b, _ := marshalStringMap(info.OptionalPeers)
				raw = string(b)
			}
			doc, err = sjson.SetRawBytes(doc, path+".optionalPeers", []byte(raw))
			if err != nil {
				return false
			}
		}
		if !entry.Get("os").Exists() {
			doc, err = sjson.SetBytes(doc, path+".os", info.OS)
			if err != nil {
				return false
			}
		}
		if !entry.Get("cpu").Exists() {
			doc, err = sjson.SetBytes(doc, path+".cpu", info.CPU)
			if err != nil {
				return false
			}
		}
		if !entry.Get("tarball").Exists() && info.Tarball != "" {
			doc, err = sjson.SetBytes(doc, path+".tarball", info.Tarball)
			if err != nil {
				return false
			}
		}
		if !entry.Get("deprecated").Exists() {
			doc, err = sjson.SetBytes(doc, path+".deprecated", info.Deprecated)
			if err != nil {
				return false
			}
		}
		if !entry.Get("scripts").Exists() {
			doc, err = sjson.SetBytes(doc, path+".scripts", info.Scripts)
			if err != nil {
				return false
			}
		}
		if !entry.Get("bin").Exists() {
			doc, err = sjson.SetBytes(doc, path+".bin", info.Bin)
			if err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	// A v4 workspace member's packageJson has no "overrides" key at
	// all; decodeV5 already treats an absent key as "no overrides",
	// so there is nothing to backfill here.
	return doc, nil
}

func marshalStringMap(m map[string]string) ([]byte, error) {
	out := []byte("{}")
	var err error
	for k, v := range m {
		out, err = sjson.SetBytes(out, escapeGjsonKey(k), v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// escapeGjsonKey escapes '.', '*', '?', '@', '|' and '#' so a map key
// can be used literally as one path segment in a gjson/sjson path
// expression.
func escapeGjsonKey(key string) string {
	var b bytes.Buffer
	for _, r := range key {
		switch r {
		case '.', '*', '?', '@', '|', '#':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
