package lockfile

import "github.com/depforge/rtcore/internal/log"

// nodeID identifies one node in the package graph: a JSR name@version,
// an npm package id, or a remote module URL. The three namespaces
// never collide in practice (JSR/npm ids don't look like URLs and
// vice versa), so a single string space is sufficient.
type nodeID string

// lockfilePackageGraph is a throwaway adjacency-list view over a
// lockfile's packages/remote sections, built fresh for each
// workspace-reconciliation pass. It never panics on a dangling
// reference — an edge to a node that doesn't exist is simply not
// followed.
type lockfilePackageGraph struct {
	edges map[nodeID][]nodeID
	// linkEdges overrides edges for nodes that are currently
	// substituted by a workspace link: their dependency edges come
	// from the link definition, not from the recorded package.
	linkEdges map[nodeID][]nodeID
	roots     map[nodeID]struct{}
}

// newLockfilePackageGraph builds the graph from the current packages
// and remote sections, plus whatever links are still declared in the
// (not-yet-updated) workspace config — per design note (A)(b), a
// link's own edges take precedence over the package it replaces.
func newLockfilePackageGraph(content LockfileContent) *lockfilePackageGraph {
	g := &lockfilePackageGraph{
		edges:     map[nodeID][]nodeID{},
		linkEdges: map[nodeID][]nodeID{},
		roots:     map[nodeID]struct{}{},
	}

	for nv, info := range content.Packages.Jsr {
		g.edges[nodeID(nv)] = depReqsToNodeIDs(content, info.Dependencies)
	}
	for id, info := range content.Packages.Npm {
		var deps []nodeID
		for _, target := range info.Dependencies {
			deps = append(deps, nodeID(target))
		}
		for _, target := range info.OptionalDependencies {
			deps = append(deps, nodeID(target))
		}
		g.edges[nodeID(id)] = deps
	}
	for url := range content.Remote {
		g.edges[nodeID(url)] = nil
	}

	for name, link := range content.Workspace.Links {
		g.linkEdges[nodeID(name)] = depReqsToNodeIDs(content, newDepReqSet(link.depReqs()...))
	}

	for req := range content.Packages.Specifiers {
		if id, ok := content.Packages.Specifiers[req]; ok {
			g.roots[nodeID(id)] = struct{}{}
		}
	}

	return g
}

func depReqsToNodeIDs(content LockfileContent, reqs DepReqSet) []nodeID {
	out := make([]nodeID, 0, len(reqs))
	for req := range reqs {
		if id, ok := content.Packages.Specifiers[req]; ok {
			out = append(out, nodeID(id))
		}
	}
	return out
}

// reachableFrom returns the set of node ids reachable from the
// resolved ids of keepReqs, resolved against the specifiers table, by
// following package edges (preferring link edges when a node is
// currently link-substituted).
func (g *lockfilePackageGraph) reachableFrom(content LockfileContent, keepReqs DepReqSet) map[nodeID]struct{} {
	seen := map[nodeID]struct{}{}
	var stack []nodeID
	for req := range keepReqs {
		if id, ok := content.Packages.Specifiers[req]; ok {
			stack = append(stack, nodeID(id))
		}
	}
	for name := range content.Workspace.Links {
		stack = append(stack, nodeID(name))
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}

		if edges, ok := g.linkEdges[n]; ok {
			stack = append(stack, edges...)
			continue
		}
		stack = append(stack, g.edges[n]...)
	}
	return seen
}

// pruneUnreachable removes every package/remote entry in content that
// is not in the reachable set, along with every specifier whose
// resolved id is not in it, leaving redirects and workspace untouched.
// logger may be nil, in which case the sweep is silent.
func pruneUnreachable(content *LockfileContent, reachable map[nodeID]struct{}, logger *log.Logger) {
	for nv := range content.Packages.Jsr {
		if _, ok := reachable[nodeID(nv)]; !ok {
			logPrune(logger, "jsr", nv)
			delete(content.Packages.Jsr, nv)
		}
	}
	for id := range content.Packages.Npm {
		if _, ok := reachable[nodeID(id)]; !ok {
			logPrune(logger, "npm", id)
			delete(content.Packages.Npm, id)
		}
	}
	for url := range content.Remote {
		if _, ok := reachable[nodeID(url)]; !ok {
			logPrune(logger, "remote", url)
			delete(content.Remote, url)
		}
	}
	for req, id := range content.Packages.Specifiers {
		if _, ok := reachable[nodeID(id)]; !ok {
			logPrune(logger, "specifier", req.String())
			delete(content.Packages.Specifiers, req)
		}
	}
}

func logPrune(logger *log.Logger, section, key string) {
	if logger == nil {
		return
	}
	logger.Verbosef("pruning unreachable %s entry %s", section, key)
}
