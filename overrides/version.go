package overrides

import (
	"github.com/Masterminds/semver/v3"
)

// VersionReq is a parsed npm-style version range, used both as a
// rule's key selector and as the replacement range an override
// produces.
type VersionReq struct {
	raw        string
	constraint *semver.Constraints
}

// ParseVersionReq parses an npm-style range ("^1.2.3", "~1.2.3",
// "1.2.3 - 2.0.0", "*", an exact version, ...).
func ParseVersionReq(text string) (VersionReq, error) {
	if text == "" {
		text = "*"
	}
	c, err := semver.NewConstraint(text)
	if err != nil {
		return VersionReq{}, err
	}
	return VersionReq{raw: text, constraint: c}, nil
}

// String returns the original range text.
func (v VersionReq) String() string { return v.raw }

// Matches reports whether version satisfies this range.
func (v VersionReq) Matches(version *semver.Version) bool {
	if version == nil {
		return false
	}
	if v.constraint == nil {
		return true
	}
	return v.constraint.Check(version)
}

// ParseVersion parses a resolved version string for use with Matches
// and ForChild.
func ParseVersion(text string) (*semver.Version, error) {
	return semver.NewVersion(text)
}
