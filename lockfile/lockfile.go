package lockfile

import "github.com/pkg/errors"

// Lockfile is the single-owner, in-memory view of a workspace's
// resolved dependency manifest. It performs no I/O: callers hand it
// text read from disk and receive bytes to write back.
type Lockfile struct {
	Filename  string
	overwrite bool
	dirty     bool
	Content   LockfileContent
}

// NewEmpty returns a Lockfile with no content, configured to always
// serialize on resolve_write_bytes regardless of the dirty flag. This
// is used for `--lock` invocations that intend to (re)create the file
// from scratch.
func NewEmpty(filename string) *Lockfile {
	return &Lockfile{
		Filename:  filename,
		overwrite: true,
		Content:   newLockfileContent(),
	}
}

// New parses raw lockfile text, migrating it forward to the current
// schema version if needed, and returns a Lockfile with the dirty
// flag clear: loading and re-serializing unchanged content must be a
// no-op (invariant 1). provider backfills npm metadata that predates
// schema v5 during the v4->v5 migration step; callers with no active
// npm resolution to consult can pass nil.
func New(filename string, text []byte, provider NpmPackageInfoProvider) (*Lockfile, error) {
	content, err := parseAndMigrate(text, provider)
	if err != nil {
		return nil, errors.Wrapf(err, "reading lockfile %s", filename)
	}
	return &Lockfile{
		Filename: filename,
		Content:  content,
	}, nil
}

// HasContentChanged reports whether any mutation has dirtied the
// lockfile since construction or the last resolve_write_bytes.
func (l *Lockfile) HasContentChanged() bool {
	return l.dirty
}

// SetHasContentChanged lets the workspace-reconciliation pass force
// (or revert) the dirty flag directly, used to implement the
// "suppress creation on empty" rule in SetWorkspaceConfig.
func (l *Lockfile) SetHasContentChanged(v bool) {
	l.dirty = v
}

// ResolveWriteBytes returns the canonical serialized form, and clears
// the dirty flag, iff overwrite was requested at construction or a
// mutation has happened since. It returns (nil, false) otherwise.
func (l *Lockfile) ResolveWriteBytes() ([]byte, bool) {
	if !l.overwrite && !l.dirty {
		return nil, false
	}
	out := []byte(l.AsJSONString())
	l.dirty = false
	return out, true
}

// AsJSONString renders the current content as a canonical v5 document
// without touching the dirty flag.
func (l *Lockfile) AsJSONString() string {
	return serialize(l.Content)
}

// InsertRemote records the checksum for a remote HTTP(S) module URL.
func (l *Lockfile) InsertRemote(url, checksum string) {
	if l.Content.Remote[url] == checksum {
		return
	}
	l.Content.Remote[url] = checksum
	l.dirty = true
}

// InsertRedirect records a URL redirect. A redirect whose key starts
// with "jsr:" is silently ignored — the jsr namespace is resolved
// through the specifiers/packages sections, never via redirects.
func (l *Lockfile) InsertRedirect(from, to string) {
	if hasJsrPrefix(from) {
		return
	}
	if l.Content.Redirects[from] == to {
		return
	}
	l.Content.Redirects[from] = to
	l.dirty = true
}

func hasJsrPrefix(s string) bool {
	return len(s) >= 4 && s[:4] == "jsr:"
}

// InsertPackageSpecifier records the short identifier a dependency
// request resolved to.
func (l *Lockfile) InsertPackageSpecifier(req DepReq, resolvedID string) {
	if l.Content.Packages.Specifiers[req] == resolvedID {
		return
	}
	l.Content.Packages.Specifiers[req] = resolvedID
	l.dirty = true
}

// InsertJsrPackage records (or replaces) a JSR package's integrity
// hash, leaving its dependency set untouched if the entry already
// existed (use AddPackageDeps to grow the dependency set).
func (l *Lockfile) InsertJsrPackage(nv Nv, integrity string) {
	key := nv.String()
	existing, ok := l.Content.Packages.Jsr[key]
	if ok && existing.Integrity == integrity {
		return
	}
	if !ok {
		existing = JsrPackageInfo{Dependencies: DepReqSet{}}
	}
	existing.Integrity = integrity
	l.Content.Packages.Jsr[key] = existing
	l.dirty = true
}

// AddPackageDeps resolves each of deps against packages.specifiers,
// drops any that aren't already recorded there, and unions the rest
// into the named JSR package's dependency set. Dirties iff the set
// grew.
func (l *Lockfile) AddPackageDeps(nv Nv, deps []DepReq) {
	key := nv.String()
	entry, ok := l.Content.Packages.Jsr[key]
	if !ok {
		entry = JsrPackageInfo{Dependencies: DepReqSet{}}
	}
	before := len(entry.Dependencies)
	for _, dep := range deps {
		if _, known := l.Content.Packages.Specifiers[dep]; !known {
			continue
		}
		entry.Dependencies[dep] = struct{}{}
	}
	if len(entry.Dependencies) == before {
		return
	}
	l.Content.Packages.Jsr[key] = entry
	l.dirty = true
}

// InsertNpmPackage records (or replaces) an npm package's metadata.
func (l *Lockfile) InsertNpmPackage(id string, info NpmPackageInfo) {
	if existing, ok := l.Content.Packages.Npm[id]; ok && existing.equal(info) {
		return
	}
	l.Content.Packages.Npm[id] = info
	l.dirty = true
}
