package overrides

import (
	"encoding/json"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"
)

// ParseOverrides parses the raw JSON value of a package.json-style
// "overrides" field (an object, or JSON null) into an Overrides view.
//
// rootDeps maps a root dependency's bare name to its version-range
// text, and is used to resolve "$name" references. Parsing preserves
// the object's source key order, via orderedmap.OrderedMap, so that
// first-match lookup semantics (see GetOverrideFor) are well-defined.
func ParseOverrides(raw json.RawMessage, rootDeps map[string]string) (*Overrides, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 || trimmed == "null" {
		return Empty, nil
	}
	if trimmed[0] != '{' {
		return nil, &InvalidTopLevelTypeError{}
	}

	om := orderedmap.New()
	if err := om.UnmarshalJSON(raw); err != nil {
		return nil, errors.Wrap(err, "parsing overrides field")
	}

	rules, err := parseRules(om, rootDeps)
	if err != nil {
		return nil, err
	}
	return &Overrides{Rules: rules}, nil
}

func parseRules(om *orderedmap.OrderedMap, rootDeps map[string]string) ([]*Rule, error) {
	keys := om.Keys()
	rules := make([]*Rule, 0, len(keys))
	for _, key := range keys {
		value, _ := om.Get(key)
		name, selector, err := parseOverrideKey(key)
		if err != nil {
			return nil, err
		}
		val, children, err := parseOverrideValue(key, value, rootDeps)
		if err != nil {
			return nil, err
		}
		rules = append(rules, &Rule{
			Name:     name,
			Selector: selector,
			Value:    val,
			Children: children,
		})
	}
	return rules, nil
}

// parseOverrideKey splits "name" or "name@range" (with scoped names
// splitting on the *second* '@') into (name, selector).
func parseOverrideKey(key string) (string, *VersionReq, error) {
	var atIndex = -1
	if strings.HasPrefix(key, "@") {
		if idx := strings.Index(key[1:], "@"); idx >= 0 {
			atIndex = idx + 1
		}
	} else if idx := strings.Index(key, "@"); idx >= 0 {
		atIndex = idx
	}

	if atIndex < 0 {
		return key, nil, nil
	}

	name := key[:atIndex]
	versionText := key[atIndex+1:]
	req, err := ParseVersionReq(versionText)
	if err != nil {
		return "", nil, &KeyParseError{Key: key, Cause: err}
	}
	return name, &req, nil
}

// parseOverrideValue parses the value half of a rule: a string (leaf)
// or a nested object (self-override via "." plus children).
func parseOverrideValue(key string, value interface{}, rootDeps map[string]string) (Value, []*Rule, error) {
	switch v := value.(type) {
	case string:
		val, err := parseOverrideString(key, v, rootDeps)
		return val, nil, err
	case *orderedmap.OrderedMap:
		return parseOverrideObject(key, v, rootDeps)
	case orderedmap.OrderedMap:
		// nested objects are stored by value when decoded
		return parseOverrideObject(key, &v, rootDeps)
	case nil:
		return Value{}, nil, &InvalidValueTypeError{Key: key}
	default:
		return Value{}, nil, &InvalidValueTypeError{Key: key}
	}
}

func parseOverrideObject(key string, om *orderedmap.OrderedMap, rootDeps map[string]string) (Value, []*Rule, error) {
	selfValue := Value{Kind: Inherited}
	var children []*Rule

	for _, childKey := range om.Keys() {
		childRaw, _ := om.Get(childKey)
		if childKey == "." {
			s, ok := childRaw.(string)
			if !ok {
				return Value{}, nil, &InvalidDotValueTypeError{Key: key}
			}
			v, err := parseOverrideString(key, s, rootDeps)
			if err != nil {
				return Value{}, nil, err
			}
			selfValue = v
			continue
		}

		childName, childSelector, err := parseOverrideKey(childKey)
		if err != nil {
			return Value{}, nil, err
		}
		childVal, grandchildren, err := parseOverrideValue(childKey, childRaw, rootDeps)
		if err != nil {
			return Value{}, nil, err
		}
		children = append(children, &Rule{
			Name:     childName,
			Selector: childSelector,
			Value:    childVal,
			Children: grandchildren,
		})
	}

	return selfValue, children, nil
}

func parseOverrideString(key, s string, rootDeps map[string]string) (Value, error) {
	switch {
	case s == "":
		return Value{Kind: RemovedValue}, nil
	case strings.HasPrefix(s, "npm:"):
		return parseNpmAlias(key, strings.TrimPrefix(s, "npm:"))
	case strings.HasPrefix(s, "jsr:"):
		return parseJSRAlias(key, strings.TrimPrefix(s, "jsr:"))
	default:
		req, err := resolveOverrideVersionString(key, s, rootDeps)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VersionValue, Req: req}, nil
	}
}

// parseNpmAlias parses "other-package@range" (or a bare name,
// defaulting range to "*") into an AliasValue.
func parseNpmAlias(key, npmValue string) (Value, error) {
	name := npmValue
	versionText := "*"
	if idx := strings.LastIndex(npmValue, "@"); idx > 0 {
		name = npmValue[:idx]
		versionText = npmValue[idx+1:]
	}

	req, err := ParseVersionReq(versionText)
	if err != nil {
		return Value{}, &ValueParseError{Key: key, Value: "npm:" + npmValue, Cause: err}
	}
	return Value{Kind: AliasValue, Package: name, Req: req}, nil
}

// parseJSRAlias handles "jsr:@scope/name@range" and the version-only
// "jsr:range" form, which derives the package name from the outer
// key (itself required to be a scoped name).
func parseJSRAlias(key, jsrValue string) (Value, error) {
	if strings.HasPrefix(jsrValue, "@") {
		scope, name, versionText, ok := splitScopedNameVersion(jsrValue)
		if !ok {
			return Value{}, &JSRRequiresScopeError{Key: key, Value: "jsr:" + jsrValue}
		}
		return finishJSRAlias(key, jsrValue, scope, name, versionText)
	}

	// version-only form: derive scope/name from the outer key, after
	// stripping any selector suffix it carries.
	fallbackName := key
	if strings.HasPrefix(key, "@") {
		if idx := strings.Index(key[1:], "@"); idx >= 0 {
			fallbackName = key[:idx+1]
		}
	} else if idx := strings.Index(key, "@"); idx >= 0 {
		fallbackName = key[:idx]
	}

	if !strings.HasPrefix(fallbackName, "@") || !strings.Contains(fallbackName, "/") {
		return Value{}, &JSRRequiresScopeError{Key: key, Value: "jsr:" + jsrValue}
	}
	scope, name, ok := splitScopedName(fallbackName)
	if !ok {
		return Value{}, &JSRRequiresScopeError{Key: key, Value: "jsr:" + jsrValue}
	}
	return finishJSRAlias(key, jsrValue, scope, name, jsrValue)
}

func finishJSRAlias(key, rawValue, scope, name, versionText string) (Value, error) {
	req, err := ParseVersionReq(versionText)
	if err != nil {
		return Value{}, &ValueParseError{Key: key, Value: "jsr:" + rawValue, Cause: err}
	}
	return Value{
		Kind:    AliasValue,
		Package: "@jsr/" + scope + "__" + name,
		Req:     req,
	}, nil
}

// splitScopedNameVersion splits "@scope/name@range" into its parts.
func splitScopedNameVersion(s string) (scope, name, versionText string, ok bool) {
	if !strings.HasPrefix(s, "@") {
		return "", "", "", false
	}
	slash := strings.Index(s, "/")
	if slash < 0 {
		return "", "", "", false
	}
	rest := s[slash+1:]
	at := strings.Index(rest, "@")
	name = rest
	versionText = "*"
	if at >= 0 {
		name = rest[:at]
		versionText = rest[at+1:]
	}
	if name == "" {
		return "", "", "", false
	}
	return s[1:slash], name, versionText, true
}

func splitScopedName(s string) (scope, name string, ok bool) {
	if !strings.HasPrefix(s, "@") {
		return "", "", false
	}
	slash := strings.Index(s, "/")
	if slash < 0 {
		return "", "", false
	}
	name = s[slash+1:]
	if name == "" {
		return "", "", false
	}
	return s[1:slash], name, true
}

func resolveOverrideVersionString(key, value string, rootDeps map[string]string) (VersionReq, error) {
	if strings.HasPrefix(value, "$") {
		ref := strings.TrimPrefix(value, "$")
		depVersion, ok := rootDeps[ref]
		if !ok {
			return VersionReq{}, &UnresolvedReferenceError{Reference: ref}
		}
		req, err := ParseVersionReq(depVersion)
		if err != nil {
			return VersionReq{}, &ValueParseError{Key: key, Value: depVersion, Cause: err}
		}
		return req, nil
	}
	req, err := ParseVersionReq(value)
	if err != nil {
		return VersionReq{}, &ValueParseError{Key: key, Value: value, Cause: err}
	}
	return req, nil
}
