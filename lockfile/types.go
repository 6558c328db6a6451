// Package lockfile implements a content-addressed, versioned manifest
// of a workspace's resolved dependencies: JSR packages, npm packages,
// remote HTTP modules, and import-map redirects. It owns format
// migration across schema versions, dependency-graph maintenance when
// workspace configuration changes, and deterministic serialization.
//
// The package performs no I/O and does not validate the cryptographic
// integrity of anything it records — callers supply text in, and get
// bytes out; hashes are recorded as supplied, not verified.
package lockfile

import (
	"fmt"
	"strings"
)

// PackageKind distinguishes where a dependency request resolves from.
type PackageKind string

const (
	Jsr PackageKind = "jsr"
	Npm PackageKind = "npm"
)

// DepReq is a dependency request: what was asked for, before
// resolution. Its string form ("npm:name@range" / "jsr:@scope/name@range")
// is what's used as a map key in the serialized lockfile's
// "specifiers" section and inside dependency sets.
type DepReq struct {
	Kind  PackageKind
	Name  string
	Range string
}

// String renders the canonical "<kind>:<name>@<range>" form.
func (d DepReq) String() string {
	if d.Range == "" {
		return fmt.Sprintf("%s:%s", d.Kind, d.Name)
	}
	return fmt.Sprintf("%s:%s@%s", d.Kind, d.Name, d.Range)
}

// ParseDepReq parses the "<kind>:<name>@<range>" form produced by
// String. The name itself may contain '@' (scoped npm/jsr packages),
// so the range is split off at the *first* '@' that occurs after the
// kind prefix and the name's own leading '@', if any.
func ParseDepReq(s string) (DepReq, error) {
	colon := strings.Index(s, ":")
	if colon < 0 {
		return DepReq{}, fmt.Errorf("invalid dependency request %q: missing kind prefix", s)
	}
	kind := PackageKind(s[:colon])
	if kind != Jsr && kind != Npm {
		return DepReq{}, fmt.Errorf("invalid dependency request %q: unknown kind %q", s, kind)
	}
	rest := s[colon+1:]

	name := rest
	rng := ""
	searchFrom := 0
	if strings.HasPrefix(rest, "@") {
		searchFrom = 1
	}
	if idx := strings.Index(rest[searchFrom:], "@"); idx >= 0 {
		split := searchFrom + idx
		name = rest[:split]
		rng = rest[split+1:]
	}
	if name == "" {
		return DepReq{}, fmt.Errorf("invalid dependency request %q: missing name", s)
	}
	return DepReq{Kind: kind, Name: name, Range: rng}, nil
}

// Nv is a resolved (name, version) pair, used as the key form for
// JSR packages ("name@version").
type Nv struct {
	Name    string
	Version string
}

func (n Nv) String() string {
	return fmt.Sprintf("%s@%s", n.Name, n.Version)
}

// ParseNv parses a "name@version" string, where name may itself
// contain '@' for scoped packages; version is split off the last '@'.
func ParseNv(s string) (Nv, bool) {
	idx := strings.LastIndex(s, "@")
	if idx <= 0 {
		return Nv{}, false
	}
	return Nv{Name: s[:idx], Version: s[idx+1:]}, true
}

// splitNpmID splits a full npm package section id into its name and
// version components the way the id was originally formed: the name
// ends at the first '@' found at or after index 1 (skipping the
// leading '@' of a scoped package name), and everything after is the
// version, which may itself carry a trailing "_peerName@peerVersion"
// disambiguator for a peer-dependency resolution variant (e.g.
// "chalk@5.0.0_react@18").
func splitNpmID(id string) (name, version string, ok bool) {
	if id == "" {
		return "", "", false
	}
	idx := strings.IndexByte(id[1:], '@')
	if idx < 0 {
		return "", "", false
	}
	idx++
	return id[:idx], id[idx+1:], true
}

// npmShortID collapses a full npm package id down to its canonical
// short "name@version" form, dropping any peer-resolution suffix
// introduced by splitNpmID's trailing "_peerName@peerVersion" part.
func npmShortID(id string) (string, bool) {
	name, version, ok := splitNpmID(id)
	if !ok {
		return "", false
	}
	if u := strings.IndexByte(version, '_'); u >= 0 {
		version = version[:u]
	}
	return name + "@" + version, true
}
