package content

import (
	"path"
	"sort"

	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/frontmatter"
)

// NodeID is an index into the tree's node arena.
type NodeID int

const (
	// RootID is the handle of the root node.
	RootID NodeID = 0
	// NoNode is the parent of the root.
	NoNode NodeID = -1
)

// DocumentKind is the format of a node's primary document.
type DocumentKind int

const (
	KindPage     DocumentKind = iota // index.md
	KindPreBuilt                     // index.html
	KindLog                          // index.log
)

func (k DocumentKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindPreBuilt:
		return "prebuilt"
	case KindLog:
		return "log"
	default:
		return "unknown"
	}
}

// TranslationLeaf is an alternate-language payload of a document.
type TranslationLeaf struct {
	Lang       language.Tag
	Kind       DocumentKind
	Raw        []byte
	Body       []byte
	SourcePath string
	Meta       *frontmatter.ConfigMeta
}

// DocumentData is the resolved index document of a node.
type DocumentData struct {
	Kind         DocumentKind
	Raw          []byte
	Body         []byte
	SourcePath   string
	Meta         *frontmatter.ConfigMeta
	Translations map[string]*TranslationLeaf // keyed by canonical BCP-47 string
}

// Languages returns the translation tags sorted.
func (d *DocumentData) Languages() []string {
	langs := make([]string, 0, len(d.Translations))
	for l := range d.Translations {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Node is one directory of the content tree.
type Node struct {
	ID       NodeID
	Name     string
	Path     string // logical URL path, "/" for the root
	Depth    int
	Parent   NodeID
	Children []NodeID
	Doc      *DocumentData

	removed bool
}

// IsRoot reports whether n is the tree root.
func (n *Node) IsRoot() bool { return n.ID == RootID }

// Tree is an arena of nodes. Removal tombstones a slot and unlinks it from
// its parent; handles are never reused.
type Tree struct {
	nodes []*Node
	index map[string]NodeID
}

// NewTree creates a tree holding only the root.
func NewTree() *Tree {
	root := &Node{ID: RootID, Path: "/", Parent: NoNode}
	return &Tree{
		nodes: []*Node{root},
		index: map[string]NodeID{"/": RootID},
	}
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[RootID] }

// Node returns a live node by handle.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(t.nodes) || t.nodes[id].removed {
		return nil, false
	}
	return t.nodes[id], true
}

// Lookup returns a live node by logical path.
func (t *Tree) Lookup(p string) (*Node, bool) {
	id, ok := t.index[p]
	if !ok {
		return nil, false
	}
	return t.Node(id)
}

// AddChild creates a child of parent named name. An existing child with the
// same name is returned unchanged.
func (t *Tree) AddChild(parent NodeID, name string) *Node {
	p, ok := t.Node(parent)
	if !ok {
		return nil
	}
	childPath := path.Join(p.Path, name)
	if existing, ok := t.Lookup(childPath); ok {
		return existing
	}
	n := &Node{
		ID:     NodeID(len(t.nodes)),
		Name:   name,
		Path:   childPath,
		Depth:  p.Depth + 1,
		Parent: parent,
	}
	t.nodes = append(t.nodes, n)
	t.index[childPath] = n.ID
	p.Children = append(p.Children, n.ID)
	return n
}

// Remove tombstones id and its subtree and returns the removed nodes.
// The root cannot be removed.
func (t *Tree) Remove(id NodeID) []*Node {
	n, ok := t.Node(id)
	if !ok || n.IsRoot() {
		return nil
	}
	if parent, ok := t.Node(n.Parent); ok {
		kept := parent.Children[:0]
		for _, c := range parent.Children {
			if c != id {
				kept = append(kept, c)
			}
		}
		parent.Children = kept
	}

	var removed []*Node
	var mark func(*Node)
	mark = func(m *Node) {
		for _, c := range m.Children {
			if child, ok := t.Node(c); ok {
				mark(child)
			}
		}
		m.removed = true
		delete(t.index, m.Path)
		removed = append(removed, m)
	}
	mark(n)
	return removed
}

// Children returns the live children of id sorted by name.
func (t *Tree) Children(id NodeID) []*Node {
	n, ok := t.Node(id)
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if child, ok := t.Node(c); ok {
			out = append(out, child)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parent returns the parent of id.
func (t *Tree) Parent(id NodeID) (*Node, bool) {
	n, ok := t.Node(id)
	if !ok {
		return nil, false
	}
	return t.Node(n.Parent)
}

// Ancestors returns the ancestors of id, nearest first, root last.
func (t *Tree) Ancestors(id NodeID) []*Node {
	var out []*Node
	for p, ok := t.Parent(id); ok; p, ok = t.Parent(p.ID) {
		out = append(out, p)
	}
	return out
}

// Walk visits live nodes in pre-order with children sorted by name.
// A non-nil error from fn stops the walk.
func (t *Tree) Walk(fn func(*Node) error) error {
	var visit func(*Node) error
	visit = func(n *Node) error {
		if err := fn(n); err != nil {
			return err
		}
		for _, c := range t.Children(n.ID) {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.Root())
}

// PostOrder returns live nodes with every child before its parent.
func (t *Tree) PostOrder() []*Node {
	var out []*Node
	var visit func(*Node)
	visit = func(n *Node) {
		for _, c := range t.Children(n.ID) {
			visit(c)
		}
		out = append(out, n)
	}
	visit(t.Root())
	return out
}

// Nodes returns live nodes in pre-order.
func (t *Tree) Nodes() []*Node {
	var out []*Node
	_ = t.Walk(func(n *Node) error {
		out = append(out, n)
		return nil
	})
	return out
}

// Documents returns live nodes carrying a document, in pre-order.
func (t *Tree) Documents() []*Node {
	var out []*Node
	for _, n := range t.Nodes() {
		if n.Doc != nil {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	return len(t.index)
}

// Prune removes every non-root node without a document, together with its
// subtree, repeating until nothing changes. It returns the removed nodes.
func (t *Tree) Prune() []*Node {
	var removed []*Node
	for {
		var pass []*Node
		for _, n := range t.PostOrder() {
			if n.IsRoot() || n.removed || n.Doc != nil {
				continue
			}
			pass = append(pass, t.Remove(n.ID)...)
		}
		if len(pass) == 0 {
			return removed
		}
		removed = append(removed, pass...)
	}
}
