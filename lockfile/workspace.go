package lockfile

import (
	"encoding/json"

	"github.com/depforge/rtcore/internal/log"
)

// WorkspaceConfig is the caller's fresh snapshot of what the
// workspace's configuration files currently declare: root and member
// dependency sets, active links, and the root package.json's
// "overrides" field.
type WorkspaceConfig struct {
	Root         WorkspaceMemberConfigContent
	Members      map[string]WorkspaceMemberConfigContent
	Links        map[string]LockfileLinkContent
	NpmOverrides json.RawMessage
}

// SetWorkspaceConfigOptions controls how a fresh WorkspaceConfig
// snapshot is reconciled against the current lockfile.
type SetWorkspaceConfigOptions struct {
	Config WorkspaceConfig

	// NoNpm means the caller did not read package.json at all this
	// invocation; the nested package.json fields of every member (and
	// root) are taken from the current lockfile instead of Config.
	NoNpm bool
	// NoConfig means the caller did not read the deno.json-equivalent
	// config this invocation; the non-package.json dependency fields
	// of every member (and root) are taken from the current lockfile.
	NoConfig bool

	// Logger receives a Verbosef trace for each package pruned by the
	// graph sweep below. Nil disables tracing.
	Logger *log.Logger
}

// SetWorkspaceConfig reconciles a fresh configuration snapshot against
// the lockfile: masks fields the caller didn't actually read, figures
// out which dependency requests and links were dropped, sweeps the
// package graph to prune anything only reachable through them, and
// updates the stored workspace snapshot. A reconciliation against a
// previously-empty, previously-clean lockfile never sets the dirty
// flag, so a bare `--no-config`/`--no-npm` invocation against a repo
// with no lockfile doesn't conjure one into existence.
func (l *Lockfile) SetWorkspaceConfig(opts SetWorkspaceConfigOptions) {
	wasEmptyAtEntry := l.Content.IsEmpty()
	dirtyAtEntry := l.dirty

	oldWorkspace := l.Content.Workspace
	newConfig := applyMasking(opts, oldWorkspace)

	oldDepReqs := oldWorkspace.getAllDepReqs()
	newWorkspaceView := WorkspaceConfigContent{
		Root:    newConfig.Root,
		Members: newConfig.Members,
	}
	newDepReqs := newWorkspaceView.getAllDepReqs()

	removedDeps := DepReqSet{}
	for r := range oldDepReqs {
		if _, stillWanted := newDepReqs[r]; !stillWanted {
			removedDeps[r] = struct{}{}
		}
	}

	changedLinks := computeChangedLinks(l.Content, oldWorkspace.Links, newConfig.Links)

	if len(removedDeps) > 0 || len(changedLinks) > 0 {
		if opts.Logger != nil {
			opts.Logger.Verbosef("reconciling workspace config: %d dep(s) removed, %d link(s) changed", len(removedDeps), len(changedLinks))
		}
		graph := newLockfilePackageGraph(l.Content)
		for name := range changedLinks {
			delete(graph.linkEdges, nodeID(name))
		}
		reachable := graph.reachableFrom(l.Content, newDepReqs)
		pruneUnreachable(&l.Content, reachable, opts.Logger)
	}

	newWorkspace := WorkspaceConfigContent{
		Root:         newConfig.Root,
		Members:      newConfig.Members,
		Links:        newConfig.Links,
		NpmOverrides: newConfig.NpmOverrides,
	}

	if !workspaceConfigEqual(oldWorkspace, newWorkspace) || len(removedDeps) > 0 || len(changedLinks) > 0 {
		l.dirty = true
	}
	l.Content.Workspace = newWorkspace

	if wasEmptyAtEntry && !dirtyAtEntry {
		l.dirty = false
	}
}

// applyMasking returns the effective new configuration after
// substituting back in whichever halves of each member the caller
// didn't actually read this invocation.
func applyMasking(opts SetWorkspaceConfigOptions, current WorkspaceConfigContent) WorkspaceConfig {
	cfg := opts.Config
	if cfg.Members == nil {
		cfg.Members = map[string]WorkspaceMemberConfigContent{}
	}
	if cfg.Links == nil {
		cfg.Links = map[string]LockfileLinkContent{}
	}

	cfg.Root = maskMember(cfg.Root, current.Root, opts.NoNpm, opts.NoConfig)
	for name, member := range cfg.Members {
		cfg.Members[name] = maskMember(member, current.Members[name], opts.NoNpm, opts.NoConfig)
	}
	if opts.NoNpm {
		cfg.NpmOverrides = current.NpmOverrides
	}
	return cfg
}

func maskMember(next, current WorkspaceMemberConfigContent, noNpm, noConfig bool) WorkspaceMemberConfigContent {
	if noNpm {
		next.PackageJson = current.PackageJson
	}
	if noConfig {
		next.Dependencies = current.Dependencies
	}
	return next
}

// computeChangedLinks finds link names whose content changed in a way
// that is incompatible with what's currently recorded for a package
// matching that name, per the matching rules in design note (A).
func computeChangedLinks(content LockfileContent, oldLinks, newLinks map[string]LockfileLinkContent) map[string]struct{} {
	changed := map[string]struct{}{}

	for name, oldLink := range oldLinks {
		newLink, stillLinked := newLinks[name]
		if !stillLinked {
			changed[name] = struct{}{}
			continue
		}
		if oldLink.equal(newLink) {
			continue
		}
		if linkIncompatibleWithRecorded(content, name, newLink) {
			changed[name] = struct{}{}
		}
	}
	for name := range newLinks {
		if _, existed := oldLinks[name]; !existed {
			changed[name] = struct{}{}
		}
	}
	return changed
}

func linkIncompatibleWithRecorded(content LockfileContent, name string, link LockfileLinkContent) bool {
	for req, resolved := range content.Packages.Specifiers {
		if req.Name != name {
			continue
		}
		switch req.Kind {
		case Jsr:
			info, ok := content.Packages.Jsr[resolved]
			if !ok {
				continue
			}
			if !info.Dependencies.Equal(link.Dependencies) {
				return true
			}
		case Npm:
			info, ok := content.Packages.Npm[resolved]
			if !ok {
				continue
			}
			if !stringMapMatchesDepReqSet(info.OptionalDependencies, link.OptionalDependencies) {
				return true
			}
			if !npmDepsMatchReqSet(info.Dependencies, link.dependenciesAndPeers()) {
				return true
			}
			if !optionalPeerNamesMatch(info.OptionalPeers, link.optionalPeerNames()) {
				return true
			}
		}
	}
	return false
}

func stringMapMatchesDepReqSet(m map[string]string, set DepReqSet) bool {
	if len(m) != len(set) {
		return false
	}
	for req := range set {
		if m[req.Name] == "" {
			return false
		}
	}
	return true
}

func npmDepsMatchReqSet(deps map[string]string, set DepReqSet) bool {
	return stringMapMatchesDepReqSet(deps, set)
}

func optionalPeerNamesMatch(peers map[string]string, names map[string]struct{}) bool {
	if len(peers) != len(names) {
		return false
	}
	for n := range names {
		if _, ok := peers[n]; !ok {
			return false
		}
	}
	return true
}

func workspaceConfigEqual(a, b WorkspaceConfigContent) bool {
	if !a.Root.equal(b.Root) {
		return false
	}
	if len(a.Members) != len(b.Members) {
		return false
	}
	for name, m := range a.Members {
		if !m.equal(b.Members[name]) {
			return false
		}
	}
	if len(a.Links) != len(b.Links) {
		return false
	}
	for name, l := range a.Links {
		other, ok := b.Links[name]
		if !ok || !l.equal(other) {
			return false
		}
	}
	return string(a.NpmOverrides) == string(b.NpmOverrides)
}

func (m WorkspaceMemberConfigContent) equal(o WorkspaceMemberConfigContent) bool {
	return m.Dependencies.Equal(o.Dependencies) &&
		m.PackageJson.Dependencies.Equal(o.PackageJson.Dependencies) &&
		string(m.PackageJson.Overrides) == string(o.PackageJson.Overrides)
}
