package overrides

import (
	"encoding/json"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func mustParse(t *testing.T, raw string, rootDeps map[string]string) *Overrides {
	t.Helper()
	o, err := ParseOverrides(json.RawMessage(raw), rootDeps)
	if err != nil {
		t.Fatalf("ParseOverrides(%s): %v", raw, err)
	}
	return o
}

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%s): %v", s, err)
	}
	return v
}

// TestScopedSelectorTraversal is scenario S3: a scoped
// override with a version selector only activates its children when
// descending through a matching version of the parent, and the
// selector-bearing rule survives a non-matching descent so it can
// still activate its children deeper in the tree.
func TestScopedSelectorTraversal(t *testing.T) {
	o := mustParse(t, `{"foo@^2.0.0": {"bar": "3.0.0"}}`, nil)

	if _, found := o.GetOverrideFor("bar", nil); found {
		t.Fatalf("expected no override for bar before descending")
	}

	childMatch := o.ForChild("foo", mustVersion(t, "2.1.0"))
	val, found := childMatch.GetOverrideFor("bar", nil)
	if !found || val.Kind != VersionValue || val.Req.String() != "3.0.0" {
		t.Fatalf("expected bar override 3.0.0 after matching descent, got %+v found=%v", val, found)
	}

	childNoMatch := o.ForChild("foo", mustVersion(t, "1.0.0"))
	if _, found := childNoMatch.GetOverrideFor("bar", nil); found {
		t.Fatalf("expected no bar override when foo version doesn't match selector")
	}

	// the selector-bearing rule must still be alive to match deeper,
	// at a different version, even after failing to match once.
	deeper := childNoMatch.ForChild("baz", mustVersion(t, "1.0.0")).ForChild("foo", mustVersion(t, "2.1.0"))
	val2, found2 := deeper.GetOverrideFor("bar", nil)
	if !found2 || val2.Req.String() != "3.0.0" {
		t.Fatalf("expected bar override to fire deeper in the tree, got %+v found=%v", val2, found2)
	}
}

// TestJSRAlias is scenario S4.
func TestJSRAlias(t *testing.T) {
	o := mustParse(t, `{"foo": "jsr:@std/path@^1"}`, nil)

	pkg, ok := o.GetAliasFor("foo")
	if !ok || pkg != "@jsr/std__path" {
		t.Fatalf("GetAliasFor(foo) = %q, %v; want @jsr/std__path, true", pkg, ok)
	}

	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Kind != AliasValue || val.Req.String() != "^1" {
		t.Fatalf("GetOverrideFor(foo) = %+v, %v; want Req=^1", val, found)
	}
}

func TestJSRAliasVersionOnlyDerivesNameFromKey(t *testing.T) {
	o := mustParse(t, `{"@std/path": "jsr:1.0.0"}`, nil)
	pkg, ok := o.GetAliasFor("@std/path")
	if !ok || pkg != "@jsr/std__path" {
		t.Fatalf("got %q, %v", pkg, ok)
	}
}

func TestJSRVersionOnlyRequiresScopedKey(t *testing.T) {
	_, err := ParseOverrides(json.RawMessage(`{"leftpad": "jsr:1.0.0"}`), nil)
	if err == nil {
		t.Fatalf("expected error for unscoped key with version-only jsr value")
	}
	if _, ok := err.(*JSRRequiresScopeError); !ok {
		t.Fatalf("expected JSRRequiresScopeError, got %T: %v", err, err)
	}
}

// TestForChildIdentityWhenNoRuleTargetsName is invariant 1.
func TestForChildIdentityWhenNoRuleTargetsName(t *testing.T) {
	o := mustParse(t, `{"foo": "1.0.0"}`, nil)
	child := o.ForChild("unrelated", mustVersion(t, "1.0.0"))
	if child != o {
		t.Fatalf("expected ForChild to return the same pointer when no rule targets the name")
	}
}

// TestChildlessRuleSurvivesDescent is invariant 2.
func TestChildlessRuleSurvivesDescent(t *testing.T) {
	o := mustParse(t, `{"foo": "1.0.0"}`, nil)
	child := o.ForChild("foo", mustVersion(t, "9.9.9"))
	val, found := child.GetOverrideFor("foo", nil)
	if !found || val.Req.String() != "1.0.0" {
		t.Fatalf("expected foo override to survive descent into foo itself, got %+v %v", val, found)
	}
}

// TestNoSelectorConsultedWithoutResolvedVersion is invariant 4.
func TestNoSelectorConsultedWithoutResolvedVersion(t *testing.T) {
	o := mustParse(t, `{"foo@^2.0.0": "3.0.0", "foo": "9.9.9"}`, nil)
	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Req.String() != "9.9.9" {
		t.Fatalf("expected selector-bearing rule to be skipped without a resolved version, got %+v %v", val, found)
	}
}

// TestFirstMatchWins is invariant 5.
func TestFirstMatchWins(t *testing.T) {
	o := mustParse(t, `{"foo": "1.0.0", "foo@*": "2.0.0"}`, nil)
	val, found := o.GetOverrideFor("foo", mustVersion(t, "5.0.0"))
	if !found || val.Req.String() != "1.0.0" {
		t.Fatalf("expected earliest JSON-order rule to win, got %+v %v", val, found)
	}
}

func TestRemovedCancelsOverride(t *testing.T) {
	o := mustParse(t, `{"foo": ""}`, nil)
	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Kind != RemovedValue {
		t.Fatalf("expected Removed value, got %+v %v", val, found)
	}
}

func TestNpmAlias(t *testing.T) {
	o := mustParse(t, `{"foo": "npm:bar@^2.0.0"}`, nil)
	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Kind != AliasValue || val.Package != "bar" || val.Req.String() != "^2.0.0" {
		t.Fatalf("got %+v %v", val, found)
	}
}

func TestNpmAliasBareNameDefaultsToStar(t *testing.T) {
	o := mustParse(t, `{"foo": "npm:@scope/bar"}`, nil)
	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Package != "@scope/bar" || val.Req.String() != "*" {
		t.Fatalf("got %+v %v", val, found)
	}
}

func TestDollarReference(t *testing.T) {
	o := mustParse(t, `{"foo": "$bar"}`, map[string]string{"bar": "^1.2.3"})
	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Req.String() != "^1.2.3" {
		t.Fatalf("got %+v %v", val, found)
	}
}

func TestDollarReferenceUnresolved(t *testing.T) {
	_, err := ParseOverrides(json.RawMessage(`{"foo": "$bar"}`), nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if _, ok := err.(*UnresolvedReferenceError); !ok {
		t.Fatalf("expected UnresolvedReferenceError, got %T", err)
	}
}

func TestNestedDotKeySelfOverride(t *testing.T) {
	o := mustParse(t, `{"foo": {".": "1.0.0", "bar": "2.0.0"}}`, nil)
	val, found := o.GetOverrideFor("foo", nil)
	if !found || val.Req.String() != "1.0.0" {
		t.Fatalf("expected self override via dot key, got %+v %v", val, found)
	}
	child := o.ForChild("foo", mustVersion(t, "1.0.0"))
	val2, found2 := child.GetOverrideFor("bar", nil)
	if !found2 || val2.Req.String() != "2.0.0" {
		t.Fatalf("expected child override for bar, got %+v %v", val2, found2)
	}
}

func TestInheritedWithoutDotKeyDoesNotSelfOverride(t *testing.T) {
	o := mustParse(t, `{"foo": {"bar": "2.0.0"}}`, nil)
	_, found := o.GetOverrideFor("foo", nil)
	if found {
		t.Fatalf("expected no self-override when only children are present")
	}
}

func TestEmptyAndNullOverrides(t *testing.T) {
	for _, raw := range []string{`{}`, `null`, ``} {
		o, err := ParseOverrides(json.RawMessage(raw), nil)
		if err != nil {
			t.Fatalf("ParseOverrides(%q): %v", raw, err)
		}
		if !o.IsEmpty() {
			t.Fatalf("expected empty overrides for %q", raw)
		}
	}
}

func TestInvalidTopLevelType(t *testing.T) {
	_, err := ParseOverrides(json.RawMessage(`"not-an-object"`), nil)
	if _, ok := err.(*InvalidTopLevelTypeError); !ok {
		t.Fatalf("expected InvalidTopLevelTypeError, got %T: %v", err, err)
	}
}

func TestInvalidDotValueType(t *testing.T) {
	_, err := ParseOverrides(json.RawMessage(`{"foo": {".": 5}}`), nil)
	if _, ok := err.(*InvalidDotValueTypeError); !ok {
		t.Fatalf("expected InvalidDotValueTypeError, got %T: %v", err, err)
	}
}
