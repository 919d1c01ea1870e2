// Package reqtree implements the in-memory request tree that a saga
// accumulates as it dispatches transactions and compensations.
package reqtree

import "strings"

// Kind distinguishes a transaction node from a compensation node.
type Kind string

const (
	KindRoot         Kind = "ROOT"
	KindTransaction  Kind = "TRANSACTION"
	KindCompensation Kind = "COMPENSATION"
)

// Headers is a case-insensitive header map. Lookups normalise the key to
// ASCII lowercase; the original casing supplied on Set is preserved for
// forwarding outbound, per the case-insensitive-compare /
// preserve-casing-on-forward discipline.
type Headers struct {
	keys   map[string]string // lowercase -> original casing
	values map[string]string // lowercase -> value
}

// NewHeaders builds a Headers map from a plain string map, preserving the
// casing of the keys as given.
func NewHeaders(h map[string]string) Headers {
	hs := Headers{keys: make(map[string]string, len(h)), values: make(map[string]string, len(h))}
	for k, v := range h {
		hs.Set(k, v)
	}
	return hs
}

// Get returns the value for key (case-insensitive) and whether it was present.
func (h Headers) Get(key string) (string, bool) {
	if h.values == nil {
		return "", false
	}
	v, ok := h.values[strings.ToLower(key)]
	return v, ok
}

// Set stores key/value, preserving key's casing for later iteration.
func (h *Headers) Set(key, value string) {
	if h.keys == nil {
		h.keys = make(map[string]string)
		h.values = make(map[string]string)
	}
	lk := strings.ToLower(key)
	h.keys[lk] = key
	h.values[lk] = value
}

// Len returns the number of headers.
func (h Headers) Len() int { return len(h.values) }

// Range calls fn for every header in the map, with the originally-supplied
// casing of the key. Iteration order is unspecified.
func (h Headers) Range(fn func(key, value string)) {
	for lk, v := range h.values {
		fn(h.keys[lk], v)
	}
}

// Clone returns an independent copy of h.
func (h Headers) Clone() Headers {
	c := Headers{keys: make(map[string]string, len(h.keys)), values: make(map[string]string, len(h.values))}
	for k, v := range h.keys {
		c.keys[k] = v
	}
	for k, v := range h.values {
		c.values[k] = v
	}
	return c
}

// Node is one request/response pair in the tree. Nodes are arena-allocated
// inside a Tree and referenced by integer index, never by pointer, so the
// tree can be walked without owning pointers running in two directions.
type Node struct {
	Kind Kind

	// Configuration is an opaque reference to the spec that produced this
	// node (matchRequest for the root, a TransactionSpec or
	// CompensationSpec otherwise). The saga package gives it concrete
	// meaning; reqtree only stores it.
	Configuration any

	Method  string
	URL     string
	Headers Headers
	Body    []byte

	ResponseSet     bool
	ResponseStatus  int
	ResponseHeaders Headers
	ResponseBody    []byte

	parent   int // index into Tree.nodes; -1 until attached
	attached bool
	children []int
}

// Parent returns the index of n's parent, or -1 if n has not been attached.
func (n *Node) Parent() int { return n.parent }

// Children returns the indices of n's children in insertion order.
func (n *Node) Children() []int { return n.children }

// Tree is the arena owning every node in one saga. Not safe for concurrent
// use; a saga owns its tree exclusively and mutates it single-threadedly,
// and the tree is discarded once the response is written.
type Tree struct {
	nodes []*Node
}

// New creates a tree with a root node carrying the inbound request fields.
// The root is never attached to anything; its parent index is -1.
func New(method, url string, headers Headers, body []byte, configuration any) *Tree {
	t := &Tree{}
	root := &Node{
		Kind:          KindRoot,
		Configuration: configuration,
		Method:        method,
		URL:           url,
		Headers:       headers.Clone(),
		Body:          append([]byte(nil), body...),
		parent:        -1,
	}
	t.nodes = append(t.nodes, root)
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[0] }

// RootIndex is always 0.
func (t *Tree) RootIndex() int { return 0 }

// Node returns the node at idx.
func (t *Tree) Node(idx int) *Node { return t.nodes[idx] }

// Len returns the number of nodes currently in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// NewNode allocates a new, unattached node and returns its index.
func (t *Tree) NewNode(kind Kind, method, url string, headers Headers, body []byte, configuration any) int {
	n := &Node{
		Kind:          kind,
		Configuration: configuration,
		Method:        method,
		URL:           url,
		Headers:       headers.Clone(),
		Body:          append([]byte(nil), body...),
		parent:        -1,
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// UpdateRequest overwrites the provided outbound fields on the node at idx.
// A zero-value url leaves URL untouched; a nil body leaves Body untouched.
// Pass a non-nil, possibly-empty headers value to replace headers.
func (t *Tree) UpdateRequest(idx int, url string, headers *Headers, body []byte) {
	n := t.nodes[idx]
	if url != "" {
		n.URL = url
	}
	if headers != nil {
		n.Headers = headers.Clone()
	}
	if body != nil {
		n.Body = append([]byte(nil), body...)
	}
}

// UpdateResponse sets the node's response fields. Called at most once per
// node, on first successful dispatch; left untouched on terminal timeout.
func (t *Tree) UpdateResponse(idx int, status int, headers Headers, body []byte) {
	n := t.nodes[idx]
	n.ResponseSet = true
	n.ResponseStatus = status
	n.ResponseHeaders = headers.Clone()
	n.ResponseBody = append([]byte(nil), body...)
}

// AttachTo sets node.parent = parentIdx and appends node to the parent's
// children in insertion order. Panics if the node was already attached —
// the contract is attachTo callable at most once per node.
func (t *Tree) AttachTo(idx, parentIdx int) {
	n := t.nodes[idx]
	if n.attached {
		panic("reqtree: node already attached")
	}
	n.attached = true
	n.parent = parentIdx
	parent := t.nodes[parentIdx]
	parent.children = append(parent.children, idx)
}
