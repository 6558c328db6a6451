package lockfile

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// decodeV5 deserializes a current-schema JSON document into a
// LockfileContent, expanding short npm dependency identifiers against
// a name->id table built from the npm section, and validating
// cross-reference invariants.
func decodeV5(doc []byte) (LockfileContent, error) {
	root := gjson.ParseBytes(doc)
	content := newLockfileContent()

	nameToID := map[string]string{}
	root.Get("npm").ForEach(func(id, _ gjson.Result) bool {
		if name, _, ok := splitNpmID(id.String()); ok {
			nameToID[name] = id.String()
		}
		return true
	})

	root.Get("specifiers").ForEach(func(key, value gjson.Result) bool {
		req, err := ParseDepReq(key.String())
		if err != nil {
			return true
		}
		content.Packages.Specifiers[req] = value.String()
		return true
	})

	root.Get("jsr").ForEach(func(key, value gjson.Result) bool {
		info := JsrPackageInfo{
			Integrity:    value.Get("integrity").String(),
			Dependencies: DepReqSet{},
		}
		value.Get("dependencies").ForEach(func(_, dep gjson.Result) bool {
			if req, err := ParseDepReq(dep.String()); err == nil {
				info.Dependencies[req] = struct{}{}
			}
			return true
		})
		content.Packages.Jsr[key.String()] = info
		return true
	})

	root.Get("npm").ForEach(func(key, value gjson.Result) bool {
		info := NpmPackageInfo{
			Integrity:  value.Get("integrity").String(),
			Tarball:    value.Get("tarball").String(),
			Deprecated: value.Get("deprecated").Bool(),
			Scripts:    value.Get("scripts").Bool(),
			Bin:        value.Get("bin").Bool(),
		}
		info.Dependencies = expandNpmDepMap(value.Get("dependencies"), nameToID)
		info.OptionalDependencies = expandNpmDepMap(value.Get("optionalDependencies"), nameToID)
		info.OptionalPeers = expandNpmDepMap(value.Get("optionalPeers"), nameToID)
		value.Get("os").ForEach(func(_, v gjson.Result) bool {
			info.OS = append(info.OS, v.String())
			return true
		})
		value.Get("cpu").ForEach(func(_, v gjson.Result) bool {
			info.CPU = append(info.CPU, v.String())
			return true
		})
		content.Packages.Npm[key.String()] = info
		return true
	})

	root.Get("redirects").ForEach(func(key, value gjson.Result) bool {
		content.Redirects[key.String()] = value.String()
		return true
	})
	root.Get("remote").ForEach(func(key, value gjson.Result) bool {
		content.Remote[key.String()] = value.String()
		return true
	})

	content.Workspace = decodeWorkspace(root.Get("workspace"))

	if err := validateReferences(content); err != nil {
		return LockfileContent{}, err
	}

	return content, nil
}

// expandNpmDepMap resolves each value in a {name: id-or-bare-name} map
// to a npm dependency identifier, expanding a bare package name
// against nameToID (a name->id table built from every recorded npm
// package) down to that package's short "name@version" form, the same
// way a bare dependency name resolves to its canonical version rather
// than the (possibly peer-suffixed) section key it was recorded under.
func expandNpmDepMap(obj gjson.Result, nameToID map[string]string) map[string]string {
	out := map[string]string{}
	obj.ForEach(func(name, value gjson.Result) bool {
		v := value.String()
		if _, ok := ParseNv(v); !ok {
			if full, known := nameToID[v]; known {
				if short, ok := npmShortID(full); ok {
					v = short
				} else {
					v = full
				}
			}
		}
		out[name.String()] = v
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeWorkspace(ws gjson.Result) WorkspaceConfigContent {
	out := newWorkspaceConfigContent()
	if !ws.Exists() {
		return out
	}

	out.Root = decodeMember(ws.Get("root"))

	ws.Get("members").ForEach(func(name, member gjson.Result) bool {
		out.Members[name.String()] = decodeMember(member)
		return true
	})

	ws.Get("links").ForEach(func(name, link gjson.Result) bool {
		out.Links[name.String()] = decodeLink(link)
		return true
	})

	if raw := ws.Get("npmOverrides"); raw.Exists() {
		out.NpmOverrides = json.RawMessage(raw.Raw)
	}

	return out
}

func decodeMember(m gjson.Result) WorkspaceMemberConfigContent {
	out := newWorkspaceMemberConfigContent()
	m.Get("dependencies").ForEach(func(_, v gjson.Result) bool {
		if req, err := ParseDepReq(v.String()); err == nil {
			out.Dependencies[req] = struct{}{}
		}
		return true
	})
	pkgJSON := m.Get("packageJson")
	pkgJSON.Get("dependencies").ForEach(func(_, v gjson.Result) bool {
		if req, err := ParseDepReq(v.String()); err == nil {
			out.PackageJson.Dependencies[req] = struct{}{}
		}
		return true
	})
	if raw := pkgJSON.Get("overrides"); raw.Exists() {
		out.PackageJson.Overrides = json.RawMessage(raw.Raw)
	}
	return out
}

func decodeLink(l gjson.Result) LockfileLinkContent {
	out := newLockfileLinkContent()
	l.Get("dependencies").ForEach(func(_, v gjson.Result) bool {
		if req, err := ParseDepReq(v.String()); err == nil {
			out.Dependencies[req] = struct{}{}
		}
		return true
	})
	l.Get("optionalDependencies").ForEach(func(_, v gjson.Result) bool {
		if req, err := ParseDepReq(v.String()); err == nil {
			out.OptionalDependencies[req] = struct{}{}
		}
		return true
	})
	l.Get("peerDependencies").ForEach(func(_, v gjson.Result) bool {
		if req, err := ParseDepReq(v.String()); err == nil {
			out.PeerDependencies[req] = struct{}{}
		}
		return true
	})
	l.Get("peerDependenciesMeta").ForEach(func(name, meta gjson.Result) bool {
		out.PeerDependenciesMeta[name.String()] = PeerDependencyMeta{Optional: meta.Get("optional").Bool()}
		return true
	})
	return out
}

// validateReferences enforces the cross-reference invariant: every
// specifier resolving into the npm/jsr sections must name an entry
// that actually exists there.
func validateReferences(content LockfileContent) error {
	for req, resolved := range content.Packages.Specifiers {
		switch req.Kind {
		case Npm:
			if _, ok := content.Packages.Npm[resolved]; !ok {
				return &MissingReferenceError{From: req.String(), To: resolved}
			}
		case Jsr:
			if _, ok := content.Packages.Jsr[resolved]; !ok {
				return &MissingReferenceError{From: req.String(), To: resolved}
			}
		}
	}
	return nil
}
