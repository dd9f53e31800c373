package markup

import "strings"

// selectorKind distinguishes the three selector forms the minimal rule
// set supports (spec §4.1).
type selectorKind int

const (
	selectorTag selectorKind = iota
	selectorClass
	selectorID
)

type selector struct {
	kind  selectorKind
	value string
}

// rule is one "<selector> { prop: value; ... }" block. declKeys keeps
// declaration order so last-declaration-wins can be applied within a
// single rule, not just across rules.
type rule struct {
	selectors []selector
	declKeys  []string
	declVals  map[string]string
}

type stylesheet struct {
	rules []rule
}

// collectStylesheet gathers every <style> element's text content under
// root, in document order, and parses it into one ordered rule list.
func collectStylesheet(root *Node) stylesheet {
	var css strings.Builder
	for _, styleNode := range root.Find("style") {
		css.WriteString(styleNode.Text)
		css.WriteString("\n")
	}
	return parseCSS(css.String())
}

// parseCSS implements the minimal rule set the spec requires: a flat
// list of "selector[, selector] { decl; decl }" blocks. No nesting, no
// at-rules, no combinators — only tag/class/id selectors.
func parseCSS(src string) stylesheet {
	var sheet stylesheet
	src = stripComments(src)
	for {
		openIdx := strings.IndexByte(src, '{')
		if openIdx < 0 {
			break
		}
		closeIdx := strings.IndexByte(src[openIdx:], '}')
		if closeIdx < 0 {
			break
		}
		closeIdx += openIdx

		selPart := strings.TrimSpace(src[:openIdx])
		bodyPart := src[openIdx+1 : closeIdx]
		src = src[closeIdx+1:]

		if selPart == "" {
			continue
		}
		r := rule{declVals: make(map[string]string)}
		for _, selText := range strings.Split(selPart, ",") {
			if s, ok := parseSelector(strings.TrimSpace(selText)); ok {
				r.selectors = append(r.selectors, s)
			}
		}
		for _, decl := range strings.Split(bodyPart, ";") {
			decl = strings.TrimSpace(decl)
			if decl == "" {
				continue
			}
			parts := strings.SplitN(decl, ":", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(parts[0]))
			val := strings.TrimSpace(parts[1])
			if _, exists := r.declVals[key]; !exists {
				r.declKeys = append(r.declKeys, key)
			}
			r.declVals[key] = val
		}
		if len(r.selectors) > 0 {
			sheet.rules = append(sheet.rules, r)
		}
	}
	return sheet
}

func stripComments(src string) string {
	var out strings.Builder
	for {
		start := strings.Index(src, "/*")
		if start < 0 {
			out.WriteString(src)
			break
		}
		end := strings.Index(src[start:], "*/")
		if end < 0 {
			out.WriteString(src[:start])
			break
		}
		out.WriteString(src[:start])
		src = src[start+end+2:]
	}
	return out.String()
}

func parseSelector(s string) (selector, bool) {
	switch {
	case strings.HasPrefix(s, "."):
		return selector{kind: selectorClass, value: s[1:]}, len(s) > 1
	case strings.HasPrefix(s, "#"):
		return selector{kind: selectorID, value: s[1:]}, len(s) > 1
	case s != "":
		return selector{kind: selectorTag, value: strings.ToLower(s)}, true
	default:
		return selector{}, false
	}
}

// matches reports whether sel applies to n.
func (sel selector) matches(n *Node) bool {
	switch sel.kind {
	case selectorTag:
		return strings.EqualFold(n.Tag, sel.value)
	case selectorID:
		id, _ := n.Attr("id")
		return id == sel.value
	case selectorClass:
		classAttr, _ := n.Attr("class")
		for _, c := range strings.Fields(classAttr) {
			if c == sel.value {
				return true
			}
		}
		return false
	}
	return false
}
