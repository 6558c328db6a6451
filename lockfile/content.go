package lockfile

import "encoding/json"

// DepReqSet is a set of dependency requests, keyed by the DepReq value
// itself; callers that need a deterministic order sort by String().
type DepReqSet map[DepReq]struct{}

func newDepReqSet(reqs ...DepReq) DepReqSet {
	s := make(DepReqSet, len(reqs))
	for _, r := range reqs {
		s[r] = struct{}{}
	}
	return s
}

// Equal reports whether two sets contain exactly the same requests.
func (s DepReqSet) Equal(other DepReqSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if _, ok := other[r]; !ok {
			return false
		}
	}
	return true
}

func (s DepReqSet) clone() DepReqSet {
	out := make(DepReqSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// NpmPackageInfo is a resolved npm package's recorded metadata.
type NpmPackageInfo struct {
	Integrity            string // empty means "not recorded" (e.g. patch packages)
	Dependencies         map[string]string // bare name -> npm id
	OptionalDependencies map[string]string
	OptionalPeers        map[string]string
	OS                   []string
	CPU                  []string
	Tarball              string
	Deprecated           bool
	Scripts              bool
	Bin                  bool
}

func (p NpmPackageInfo) isZeroExtras() bool {
	return len(p.Dependencies) == 0 && len(p.OptionalDependencies) == 0 &&
		len(p.OptionalPeers) == 0 && len(p.OS) == 0 && len(p.CPU) == 0 &&
		p.Tarball == "" && !p.Deprecated && !p.Scripts && !p.Bin
}

// equal does a deep equality check usable by the
// mutation layer's "did this change" comparisons.
func (p NpmPackageInfo) equal(o NpmPackageInfo) bool {
	return p.Integrity == o.Integrity &&
		stringMapEqual(p.Dependencies, o.Dependencies) &&
		stringMapEqual(p.OptionalDependencies, o.OptionalDependencies) &&
		stringMapEqual(p.OptionalPeers, o.OptionalPeers) &&
		stringSliceEqual(p.OS, o.OS) &&
		stringSliceEqual(p.CPU, o.CPU) &&
		p.Tarball == o.Tarball &&
		p.Deprecated == o.Deprecated &&
		p.Scripts == o.Scripts &&
		p.Bin == o.Bin
}

func stringMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// JsrPackageInfo is a resolved JSR package's recorded metadata.
type JsrPackageInfo struct {
	Integrity    string
	Dependencies DepReqSet
}

func (j JsrPackageInfo) equal(o JsrPackageInfo) bool {
	return j.Integrity == o.Integrity && j.Dependencies.Equal(o.Dependencies)
}

// PackagesContent groups the three package maps that make up the
// resolved dependency set.
type PackagesContent struct {
	// Specifiers maps a dependency request to the short resolved
	// identifier it was resolved to ("name@version" or the
	// fully-qualified npm alias form).
	Specifiers map[DepReq]string
	Jsr        map[string]JsrPackageInfo // keyed by "name@version"
	Npm        map[string]NpmPackageInfo // keyed by serialized npm id
}

func newPackagesContent() PackagesContent {
	return PackagesContent{
		Specifiers: map[DepReq]string{},
		Jsr:        map[string]JsrPackageInfo{},
		Npm:        map[string]NpmPackageInfo{},
	}
}

func (p PackagesContent) isEmpty() bool {
	return len(p.Specifiers) == 0 && len(p.Jsr) == 0 && len(p.Npm) == 0
}

// PeerDependencyMeta records npm's peerDependenciesMeta entry for one
// peer dependency.
type PeerDependencyMeta struct {
	Optional bool
}

// LockfileLinkContent is a lockfile entry that substitutes an
// alternative set of dependencies for a package matching a request
// (a local override / patch).
type LockfileLinkContent struct {
	Dependencies         DepReqSet
	OptionalDependencies DepReqSet
	PeerDependencies     DepReqSet
	PeerDependenciesMeta map[string]PeerDependencyMeta
}

func newLockfileLinkContent() LockfileLinkContent {
	return LockfileLinkContent{
		Dependencies:         DepReqSet{},
		OptionalDependencies: DepReqSet{},
		PeerDependencies:     DepReqSet{},
		PeerDependenciesMeta: map[string]PeerDependencyMeta{},
	}
}

func (l LockfileLinkContent) equal(o LockfileLinkContent) bool {
	if !l.Dependencies.Equal(o.Dependencies) ||
		!l.OptionalDependencies.Equal(o.OptionalDependencies) ||
		!l.PeerDependencies.Equal(o.PeerDependencies) {
		return false
	}
	if len(l.PeerDependenciesMeta) != len(o.PeerDependenciesMeta) {
		return false
	}
	for k, v := range l.PeerDependenciesMeta {
		if o.PeerDependenciesMeta[k] != v {
			return false
		}
	}
	return true
}

// dependenciesAndPeers is the union used when comparing a link
// against a recorded npm package's combined dependencies and peers.
func (l LockfileLinkContent) dependenciesAndPeers() DepReqSet {
	out := l.Dependencies.clone()
	for r := range l.PeerDependencies {
		out[r] = struct{}{}
	}
	return out
}

func (l LockfileLinkContent) optionalPeerNames() map[string]struct{} {
	out := map[string]struct{}{}
	for name, meta := range l.PeerDependenciesMeta {
		if meta.Optional {
			out[name] = struct{}{}
		}
	}
	return out
}

// depReqs lists every dependency request declared by this link,
// used when the link itself is dropped and its requests need to be
// considered for removal.
func (l LockfileLinkContent) depReqs() []DepReq {
	out := make([]DepReq, 0, len(l.Dependencies)+len(l.OptionalDependencies)+len(l.PeerDependencies))
	for r := range l.Dependencies {
		out = append(out, r)
	}
	for r := range l.OptionalDependencies {
		out = append(out, r)
	}
	for r := range l.PeerDependencies {
		out = append(out, r)
	}
	return out
}

// LockfilePackageJsonContent is the nested package.json-derived half
// of a workspace member's configuration.
type LockfilePackageJsonContent struct {
	Dependencies DepReqSet
	Overrides    json.RawMessage
}

func newLockfilePackageJsonContent() LockfilePackageJsonContent {
	return LockfilePackageJsonContent{Dependencies: DepReqSet{}}
}

func (p LockfilePackageJsonContent) isEmpty() bool {
	return len(p.Dependencies) == 0 && len(p.Overrides) == 0
}

// WorkspaceMemberConfigContent is the set of dependency requests
// declared by one workspace member (or the root), split between the
// deno.json-equivalent config and any nested package.json.
type WorkspaceMemberConfigContent struct {
	Dependencies DepReqSet
	PackageJson  LockfilePackageJsonContent
}

func newWorkspaceMemberConfigContent() WorkspaceMemberConfigContent {
	return WorkspaceMemberConfigContent{
		Dependencies: DepReqSet{},
		PackageJson:  newLockfilePackageJsonContent(),
	}
}

func (m WorkspaceMemberConfigContent) isEmpty() bool {
	return len(m.Dependencies) == 0 && m.PackageJson.isEmpty()
}

func (m WorkspaceMemberConfigContent) depReqs() []DepReq {
	out := make([]DepReq, 0, len(m.Dependencies)+len(m.PackageJson.Dependencies))
	for r := range m.Dependencies {
		out = append(out, r)
	}
	for r := range m.PackageJson.Dependencies {
		out = append(out, r)
	}
	return out
}

// WorkspaceConfigContent is the root member config, plus named member
// configs, plus links, plus the root package.json's raw "overrides".
type WorkspaceConfigContent struct {
	Root        WorkspaceMemberConfigContent
	Members     map[string]WorkspaceMemberConfigContent
	Links       map[string]LockfileLinkContent
	NpmOverrides json.RawMessage
}

func newWorkspaceConfigContent() WorkspaceConfigContent {
	return WorkspaceConfigContent{
		Root:    newWorkspaceMemberConfigContent(),
		Members: map[string]WorkspaceMemberConfigContent{},
		Links:   map[string]LockfileLinkContent{},
	}
}

func (w WorkspaceConfigContent) isEmpty() bool {
	if !w.Root.isEmpty() || len(w.Members) != 0 || len(w.Links) != 0 {
		return false
	}
	return len(w.NpmOverrides) == 0 || string(w.NpmOverrides) == "null"
}

// getAllDepReqs returns every dependency request referenced anywhere
// in the workspace config (root, every member — links are not
// included, matching the original's get_all_dep_reqs which only
// covers deno.json/package.json style deps).
func (w WorkspaceConfigContent) getAllDepReqs() DepReqSet {
	out := DepReqSet{}
	for _, r := range w.Root.depReqs() {
		out[r] = struct{}{}
	}
	for _, m := range w.Members {
		for _, r := range m.depReqs() {
			out[r] = struct{}{}
		}
	}
	return out
}

// LockfileContent is the full in-memory decoded lockfile.
type LockfileContent struct {
	Packages  PackagesContent
	Redirects map[string]string
	Remote    map[string]string
	Workspace WorkspaceConfigContent
}

func newLockfileContent() LockfileContent {
	return LockfileContent{
		Packages:  newPackagesContent(),
		Redirects: map[string]string{},
		Remote:    map[string]string{},
		Workspace: newWorkspaceConfigContent(),
	}
}

// IsEmpty reports whether there is nothing worth persisting: true
// precisely when no packages, redirects, remote entries, or workspace
// data have been recorded, even if a WorkspaceConfig snapshot was
// observed along the way.
func (c LockfileContent) IsEmpty() bool {
	return c.Packages.isEmpty() && len(c.Redirects) == 0 && len(c.Remote) == 0 && c.Workspace.isEmpty()
}
