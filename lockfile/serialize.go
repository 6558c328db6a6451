package lockfile

import (
	"sort"
	"strings"
)

// serialize renders content as the canonical v5 document: fixed
// top-level key order, every map sorted by key, zero-value npm fields
// omitted, two-space indent, trailing newline.
func serialize(content LockfileContent) string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString(`  "version": "5"`)

	if len(content.Packages.Specifiers) > 0 {
		b.WriteString(",\n")
		writeSpecifiers(&b, content.Packages.Specifiers)
	}
	if len(content.Packages.Jsr) > 0 {
		b.WriteString(",\n")
		writeJsr(&b, content.Packages.Jsr)
	}
	if len(content.Packages.Npm) > 0 {
		b.WriteString(",\n")
		writeNpm(&b, content.Packages.Npm)
	}
	if len(content.Redirects) > 0 {
		b.WriteString(",\n")
		writeStringMapSection(&b, "redirects", content.Redirects, 1)
	}
	if len(content.Remote) > 0 {
		b.WriteString(",\n")
		writeStringMapSection(&b, "remote", content.Remote, 1)
	}
	if !content.Workspace.isEmpty() {
		b.WriteString(",\n")
		writeWorkspace(&b, content.Workspace)
	}

	b.WriteString("\n}\n")
	return b.String()
}

func indent(n int) string { return strings.Repeat("  ", n) }

func writeSpecifiers(b *strings.Builder, m map[DepReq]string) {
	keys := make([]DepReq, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	b.WriteString(indent(1) + `"specifiers": {`)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n" + indent(2) + jsonString(k.String()) + ": " + jsonString(m[k]))
	}
	if len(keys) > 0 {
		b.WriteString("\n" + indent(1))
	}
	b.WriteString("}")
}

func writeJsr(b *strings.Builder, m map[string]JsrPackageInfo) {
	keys := sortedKeys(m)
	b.WriteString(indent(1) + `"jsr": {`)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		info := m[k]
		b.WriteString("\n" + indent(2) + jsonString(k) + ": {")
		wroteField := false
		if info.Integrity != "" {
			b.WriteString("\n" + indent(3) + `"integrity": ` + jsonString(info.Integrity))
			wroteField = true
		}
		if len(info.Dependencies) > 0 {
			if wroteField {
				b.WriteString(",")
			}
			b.WriteString("\n" + indent(3) + `"dependencies": [`)
			deps := sortedDepReqs(info.Dependencies)
			for j, d := range deps {
				if j > 0 {
					b.WriteString(",")
				}
				b.WriteString("\n" + indent(4) + jsonString(d.String()))
			}
			b.WriteString("\n" + indent(3) + "]")
			wroteField = true
		}
		if wroteField {
			b.WriteString("\n" + indent(2))
		}
		b.WriteString("}")
	}
	if len(keys) > 0 {
		b.WriteString("\n" + indent(1))
	}
	b.WriteString("}")
}

func writeNpm(b *strings.Builder, m map[string]NpmPackageInfo) {
	keys := sortedKeys(m)
	b.WriteString(indent(1) + `"npm": {`)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n" + indent(2) + jsonString(k) + ": {")
		writeNpmEntry(b, m[k], 3)
		b.WriteString("\n" + indent(2) + "}")
	}
	if len(keys) > 0 {
		b.WriteString("\n" + indent(1))
	}
	b.WriteString("}")
}

func writeNpmEntry(b *strings.Builder, info NpmPackageInfo, depth int) {
	first := true
	field := func(name, raw string) {
		if !first {
			b.WriteString(",")
		}
		b.WriteString("\n" + indent(depth) + jsonString(name) + ": " + raw)
		first = false
	}
	if info.Integrity != "" {
		field("integrity", jsonString(info.Integrity))
	}
	if len(info.Dependencies) > 0 {
		field("dependencies", jsonNpmIDMap(info.Dependencies))
	}
	if len(info.OptionalDependencies) > 0 {
		field("optionalDependencies", jsonNpmIDMap(info.OptionalDependencies))
	}
	if len(info.OptionalPeers) > 0 {
		field("optionalPeers", jsonNpmIDMap(info.OptionalPeers))
	}
	if len(info.OS) > 0 {
		field("os", jsonStringArray(info.OS))
	}
	if len(info.CPU) > 0 {
		field("cpu", jsonStringArray(info.CPU))
	}
	if info.Tarball != "" {
		field("tarball", jsonString(info.Tarball))
	}
	if info.Deprecated {
		field("deprecated", "true")
	}
	if info.Scripts {
		field("scripts", "true")
	}
	if info.Bin {
		field("bin", "true")
	}
}

func writeStringMapSection(b *strings.Builder, name string, m map[string]string, depth int) {
	keys := sortedKeys(m)
	b.WriteString(indent(depth) + jsonString(name) + ": {")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n" + indent(depth+1) + jsonString(k) + ": " + jsonString(m[k]))
	}
	if len(keys) > 0 {
		b.WriteString("\n" + indent(depth))
	}
	b.WriteString("}")
}

func writeWorkspace(b *strings.Builder, w WorkspaceConfigContent) {
	b.WriteString(indent(1) + `"workspace": {`)
	first := true
	sep := func() {
		if !first {
			b.WriteString(",")
		}
		first = false
	}

	if !w.Root.isEmpty() {
		sep()
		b.WriteString("\n" + indent(2) + `"root": `)
		writeMember(b, w.Root, 2)
	}
	if len(w.Members) > 0 {
		sep()
		b.WriteString("\n" + indent(2) + `"members": {`)
		keys := sortedKeys(w.Members)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n" + indent(3) + jsonString(k) + ": ")
			writeMember(b, w.Members[k], 3)
		}
		b.WriteString("\n" + indent(2) + "}")
	}
	if len(w.Links) > 0 {
		sep()
		b.WriteString("\n" + indent(2) + `"links": {`)
		keys := sortedKeys(w.Links)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n" + indent(3) + jsonString(k) + ": ")
			writeLink(b, w.Links[k], 3)
		}
		b.WriteString("\n" + indent(2) + "}")
	}
	if len(w.NpmOverrides) > 0 && string(w.NpmOverrides) != "null" {
		sep()
		b.WriteString("\n" + indent(2) + `"npmOverrides": ` + string(w.NpmOverrides))
	}

	if !first {
		b.WriteString("\n" + indent(1))
	}
	b.WriteString("}")
}

func writeMember(b *strings.Builder, m WorkspaceMemberConfigContent, depth int) {
	b.WriteString("{")
	first := true
	if len(m.Dependencies) > 0 {
		b.WriteString("\n" + indent(depth+1) + `"dependencies": ` + jsonDepReqArray(m.Dependencies))
		first = false
	}
	if !m.PackageJson.isEmpty() {
		if !first {
			b.WriteString(",")
		}
		b.WriteString("\n" + indent(depth+1) + `"packageJson": {`)
		innerFirst := true
		if len(m.PackageJson.Dependencies) > 0 {
			b.WriteString("\n" + indent(depth+2) + `"dependencies": ` + jsonDepReqArray(m.PackageJson.Dependencies))
			innerFirst = false
		}
		if len(m.PackageJson.Overrides) > 0 && string(m.PackageJson.Overrides) != "null" {
			if !innerFirst {
				b.WriteString(",")
			}
			b.WriteString("\n" + indent(depth+2) + `"overrides": ` + string(m.PackageJson.Overrides))
			innerFirst = false
		}
		if !innerFirst {
			b.WriteString("\n" + indent(depth+1))
		}
		b.WriteString("}")
		first = false
	}
	if !first {
		b.WriteString("\n" + indent(depth))
	}
	b.WriteString("}")
}

func writeLink(b *strings.Builder, l LockfileLinkContent, depth int) {
	b.WriteString("{")
	first := true
	sep := func() {
		if !first {
			b.WriteString(",")
		}
		first = false
	}
	if len(l.Dependencies) > 0 {
		sep()
		b.WriteString("\n" + indent(depth+1) + `"dependencies": ` + jsonDepReqArray(l.Dependencies))
	}
	if len(l.OptionalDependencies) > 0 {
		sep()
		b.WriteString("\n" + indent(depth+1) + `"optionalDependencies": ` + jsonDepReqArray(l.OptionalDependencies))
	}
	if len(l.PeerDependencies) > 0 {
		sep()
		b.WriteString("\n" + indent(depth+1) + `"peerDependencies": ` + jsonDepReqArray(l.PeerDependencies))
	}
	if len(l.PeerDependenciesMeta) > 0 {
		sep()
		b.WriteString("\n" + indent(depth+1) + `"peerDependenciesMeta": {`)
		keys := sortedKeys(l.PeerDependenciesMeta)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}
			opt := "false"
			if l.PeerDependenciesMeta[k].Optional {
				opt = "true"
			}
			b.WriteString("\n" + indent(depth+2) + jsonString(k) + `: {"optional": ` + opt + "}")
		}
		b.WriteString("\n" + indent(depth+1) + "}")
	}
	if !first {
		b.WriteString("\n" + indent(depth))
	}
	b.WriteString("}")
}

func jsonDepReqArray(set DepReqSet) string {
	deps := sortedDepReqs(set)
	var b strings.Builder
	b.WriteString("[")
	for i, d := range deps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(jsonString(d.String()))
	}
	b.WriteString("]")
	return b.String()
}

func jsonStringArray(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	var b strings.Builder
	b.WriteString("[")
	for i, v := range sorted {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(jsonString(v))
	}
	b.WriteString("]")
	return b.String()
}

// jsonNpmIDMap renders a {name: npmID} map, collapsing each value to
// its canonical short "name@version" form, dropping any peer-
// resolution suffix the recorded id carried.
func jsonNpmIDMap(m map[string]string) string {
	keys := sortedKeys(m)
	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		v := m[k]
		if short, ok := npmShortID(v); ok {
			v = short
		}
		b.WriteString(jsonString(k) + ": " + jsonString(v))
	}
	b.WriteString("}")
	return b.String()
}

func sortedDepReqs(set DepReqSet) []DepReq {
	out := make([]DepReq, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// sortedKeys returns the ascending byte-lexicographic keys of any
// string-keyed map.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
