package reqtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersCaseInsensitive(t *testing.T) {
	h := NewHeaders(map[string]string{"Content-Type": "application/json"})

	v, ok := h.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)

	var got string
	h.Range(func(key, value string) {
		if value == "application/json" {
			got = key
		}
	})
	assert.Equal(t, "Content-Type", got, "original casing preserved for forwarding")
}

func TestTreeAttachToOnce(t *testing.T) {
	tr := New("GET", "http://root", NewHeaders(nil), nil, "root-config")
	idx := tr.NewNode(KindTransaction, "POST", "http://foo.svc/transact", NewHeaders(nil), nil, "spec")

	tr.AttachTo(idx, tr.RootIndex())
	assert.Equal(t, []int{idx}, tr.Root().Children())
	assert.Equal(t, tr.RootIndex(), tr.Node(idx).Parent())

	assert.Panics(t, func() { tr.AttachTo(idx, tr.RootIndex()) })
}

func TestTreeUpdateResponseSetOnce(t *testing.T) {
	tr := New("GET", "http://root", NewHeaders(nil), nil, nil)
	idx := tr.NewNode(KindTransaction, "POST", "http://foo.svc/transact", NewHeaders(nil), []byte("body"), "spec")

	assert.False(t, tr.Node(idx).ResponseSet)
	tr.UpdateResponse(idx, 200, NewHeaders(map[string]string{"X-Id": "1"}), []byte("ok"))

	n := tr.Node(idx)
	require.True(t, n.ResponseSet)
	assert.Equal(t, 200, n.ResponseStatus)
	assert.Equal(t, []byte("ok"), n.ResponseBody)
	v, ok := n.ResponseHeaders.Get("x-id")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestChildrenInsertionOrder(t *testing.T) {
	tr := New("GET", "http://root", NewHeaders(nil), nil, nil)
	a := tr.NewNode(KindTransaction, "POST", "http://a", NewHeaders(nil), nil, nil)
	b := tr.NewNode(KindTransaction, "POST", "http://b", NewHeaders(nil), nil, nil)

	tr.AttachTo(b, tr.RootIndex())
	tr.AttachTo(a, tr.RootIndex())

	assert.Equal(t, []int{b, a}, tr.Root().Children(), "children reflect attach order, not creation order")
}
