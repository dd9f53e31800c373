package markup

import "strings"

// resolveStyles computes, for every node under root, the flattened
// style dictionary produced by applying matching rules from sheet in
// specificity order (tag, then class, then id) followed by the node's
// own inline style="..." attribute, with later declarations always
// overwriting earlier ones of the same property (spec §4.1).
func resolveStyles(root *Node, sheet stylesheet) map[*Node]map[string]string {
	out := make(map[*Node]map[string]string)
	var walk func(*Node)
	walk = func(n *Node) {
		out[n] = computeStyle(n, sheet)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

func computeStyle(n *Node, sheet stylesheet) map[string]string {
	style := make(map[string]string)

	apply := func(kind selectorKind) {
		for _, r := range sheet.rules {
			matched := false
			for _, s := range r.selectors {
				if s.kind == kind && s.matches(n) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			for _, k := range r.declKeys {
				style[k] = r.declVals[k]
			}
		}
	}

	apply(selectorTag)
	apply(selectorClass)
	apply(selectorID)

	if inline, ok := n.Attr("style"); ok {
		for _, decl := range parseInlineDecls(inline) {
			style[decl[0]] = decl[1]
		}
	}

	return style
}

func parseInlineDecls(inline string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(inline, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, [2]string{
			strings.ToLower(strings.TrimSpace(parts[0])),
			strings.TrimSpace(parts[1]),
		})
	}
	return out
}
