// Package overrides implements a context-dependent resolver for npm's
// nested "overrides" field: simple unconditional replacements,
// version-selector rules, scoped (nested) child rules that activate
// only inside a matching parent subtree, alias rewrites (including
// JSR -> npm naming translation), and cancellation ("").
//
// The resolver does not perform version resolution itself; callers
// hand it a resolved version when one is known and get back a
// replacement VersionReq for an external solver to apply.
package overrides

import (
	"github.com/Masterminds/semver/v3"
)

// ValueKind tags which variant of NpmOverrideValue a Rule carries.
type ValueKind int

const (
	// Inherited means the rule carries no self-override, only
	// (possibly) children: `"foo": {"bar": "1.0.0"}` with no "."
	// key under foo.
	Inherited ValueKind = iota
	// VersionValue replaces the dependency's range with Req.
	VersionValue
	// AliasValue replaces both the package name (Package) and the
	// range (Req) — produced by npm: and jsr: values.
	AliasValue
	// RemovedValue cancels any outer override for this package,
	// serialized as "".
	RemovedValue
)

// Value is the parsed right-hand side of an override rule.
type Value struct {
	Kind    ValueKind
	Req     VersionReq
	Package string // only meaningful when Kind == AliasValue
}

// Rule is a single parsed entry from the npm "overrides" field, or a
// nested child of one. Rules are immutable after parsing and are
// always handled by pointer so that sharing them across ForChild
// views is cheap.
type Rule struct {
	Name     string
	Selector *VersionReq // nil means "no selector", i.e. matches any version
	Value    Value
	Children []*Rule
}

func (r *Rule) selectorMatches(version *semver.Version) bool {
	if r.Selector == nil {
		return true
	}
	if version == nil {
		return false
	}
	return r.Selector.Matches(version)
}

// Overrides is an immutable, cheaply-cloneable view of the active
// override rules at some position in the dependency tree. The zero
// value is an empty rule set.
type Overrides struct {
	Rules []*Rule
}

// Empty is the override view with no active rules at all, i.e. the
// view a resolver starts with before descending into the root's own
// "overrides" field.
var Empty = &Overrides{}

// IsEmpty reports whether there are no active rules.
func (o *Overrides) IsEmpty() bool {
	return o == nil || len(o.Rules) == 0
}

// ForChild computes the overrides active when descending into
// childName@childVersion.
//
// Rules that target a different name pass through unchanged, so they
// remain available to match a deeper occurrence of that name. Rules
// that target childName:
//   - if they have children and their selector (if any) matches
//     childVersion, their children become active for this subtree,
//     placed ahead of passed-through rules so they take precedence;
//   - if they have no children, or have a selector that does not
//     match childVersion, they also pass through unchanged — a
//     childless rule keeps applying at any depth, and a non-matching
//     selector-bearing rule needs to survive to match a deeper
//     occurrence of the same name at a different version.
//
// A scoped rule whose selector matches and that does have children is
// consumed: its children are activated but the rule itself is dropped
// from further descent, so it will not re-fire for the same name
// deeper in the tree. This mirrors npm's own behavior and is called
// out explicitly as intentional, not an oversight, in the design
// notes this resolver was modeled on.
//
// When no rule targets childName at all, ForChild returns the
// receiver itself (pointer-identical), avoiding an allocation on the
// overwhelmingly common case of a deep, unrelated subtree.
func (o *Overrides) ForChild(childName string, childVersion *semver.Version) *Overrides {
	if o.IsEmpty() {
		return o
	}

	var scopedChildren, passthrough []*Rule
	changed := false

	for _, rule := range o.Rules {
		if rule.Name != childName {
			passthrough = append(passthrough, rule)
			continue
		}

		changed = true
		matches := rule.selectorMatches(childVersion)

		if matches && len(rule.Children) > 0 {
			scopedChildren = append(scopedChildren, rule.Children...)
		}
		if len(rule.Children) == 0 || (rule.Selector != nil && !matches) {
			passthrough = append(passthrough, rule)
		}
	}

	if !changed {
		return o
	}

	merged := make([]*Rule, 0, len(scopedChildren)+len(passthrough))
	merged = append(merged, scopedChildren...)
	merged = append(merged, passthrough...)
	return &Overrides{Rules: merged}
}

// GetOverrideFor looks up the active override for depName, given an
// optionally-resolved version. Rules are walked in order and the
// first that applies wins:
//   - a rule with no selector always applies;
//   - a rule with a selector applies only when resolvedVersion is
//     non-nil and matches;
//   - a Removed rule that applies returns
//     (Value{Kind: RemovedValue}, true) — see the return convention
//     below;
//   - an Inherited rule (children only) never applies.
//
// The return is (req, found): found is true when some rule fired.
// When the firing rule is a cancellation, req's Kind is RemovedValue
// and the caller should treat the dependency as having no override
// forced (npm's "" semantics: remove any previously-computed outer
// override), distinct from found=false which means "no rule
// mentioned this name at all, use whatever the dependency graph
// would otherwise pick".
func (o *Overrides) GetOverrideFor(depName string, resolvedVersion *semver.Version) (Value, bool) {
	if o.IsEmpty() {
		return Value{}, false
	}
	for _, rule := range o.Rules {
		if rule.Name != depName {
			continue
		}
		switch rule.Value.Kind {
		case VersionValue, AliasValue:
			if rule.Selector == nil {
				return rule.Value, true
			}
			if resolvedVersion != nil && rule.Selector.Matches(resolvedVersion) {
				return rule.Value, true
			}
			// selector present but unmatched (or no version yet): skip,
			// a deeper/other occurrence may still match.
		case RemovedValue:
			if rule.Selector == nil {
				return Value{Kind: RemovedValue}, true
			}
			if resolvedVersion != nil && rule.Selector.Matches(resolvedVersion) {
				return Value{Kind: RemovedValue}, true
			}
		case Inherited:
			// no self-override at this rule, only children: skip.
		}
	}
	return Value{}, false
}

// GetAliasFor returns the replacement package name for an
// unconditional alias override on depName, if any. This is used
// earlier in resolution than GetOverrideFor — before a version is
// known — so it only considers rules without a selector.
func (o *Overrides) GetAliasFor(depName string) (string, bool) {
	if o.IsEmpty() {
		return "", false
	}
	for _, rule := range o.Rules {
		if rule.Name != depName || rule.Selector != nil {
			continue
		}
		if rule.Value.Kind == AliasValue {
			return rule.Value.Package, true
		}
		return "", false
	}
	return "", false
}
