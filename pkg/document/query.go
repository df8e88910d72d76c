package document

import (
	"strings"

	"github.com/beevik/etree"
)

// Predicate selects elements during traversal.
type Predicate func(*etree.Element) bool

// LocalName matches elements by local name regardless of prefix or namespace.
func LocalName(name string) Predicate {
	return func(e *etree.Element) bool {
		return e.Tag == name
	}
}

// LocalNameIn matches elements whose local name is one of names.
func LocalNameIn(names ...string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(e *etree.Element) bool {
		_, ok := set[e.Tag]
		return ok
	}
}

// LocalNameContains matches elements whose local name contains sub.
func LocalNameContains(sub string) Predicate {
	return func(e *etree.Element) bool {
		return strings.Contains(e.Tag, sub)
	}
}

// And matches elements satisfying every predicate.
func And(preds ...Predicate) Predicate {
	return func(e *etree.Element) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Leaf matches elements without element children.
func Leaf() Predicate {
	return IsLeaf
}

// Walk visits root and its descendants in document order. Returning false
// from fn skips the children of the visited element.
func Walk(root *etree.Element, fn func(*etree.Element) bool) {
	if root == nil {
		return
	}
	stack := []*etree.Element{root}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(e) {
			continue
		}
		children := e.ChildElements()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// Find returns the first element in document order matching pred, or nil.
func Find(root *etree.Element, pred Predicate) *etree.Element {
	var found *etree.Element
	Walk(root, func(e *etree.Element) bool {
		if found != nil {
			return false
		}
		if pred(e) {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element matching pred in document order.
func FindAll(root *etree.Element, pred Predicate) []*etree.Element {
	var out []*etree.Element
	Walk(root, func(e *etree.Element) bool {
		if pred(e) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// FindPath returns the first element reached by a descendant named path[0]
// followed by direct children named path[1:], e.g. FindPath(root, "Dbtr", "Nm").
func FindPath(root *etree.Element, path ...string) *etree.Element {
	if len(path) == 0 {
		return nil
	}
	for _, start := range FindAll(root, LocalName(path[0])) {
		e := start
		for _, name := range path[1:] {
			if e = Child(e, name); e == nil {
				break
			}
		}
		if e != nil {
			return e
		}
	}
	return nil
}

// Child returns the first direct child of e with the given local name.
func Child(e *etree.Element, name string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

// FirstChildElement returns the first element child of e, or nil.
func FirstChildElement(e *etree.Element) *etree.Element {
	if e == nil {
		return nil
	}
	children := e.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// IsLeaf reports whether e has no element children.
func IsLeaf(e *etree.Element) bool {
	return len(e.ChildElements()) == 0
}

// Text returns the trimmed text of e, or "" for nil.
func Text(e *etree.Element) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text())
}

// LocationOf returns a slash separated path of local names from the root to e.
func LocationOf(e *etree.Element) string {
	var parts []string
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur.Tag == "" {
			break
		}
		parts = append(parts, cur.Tag)
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(parts[i])
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}
