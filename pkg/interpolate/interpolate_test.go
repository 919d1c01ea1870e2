package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qboxio/qbox/pkg/reqtree"
)

func TestResolveIdempotentWithoutExpressions(t *testing.T) {
	s := "http://foo.svc/transact"
	assert.Equal(t, s, Resolve(s, Context{}))
}

func TestResolveEmptyStringUnchanged(t *testing.T) {
	assert.Equal(t, "", Resolve("", Context{}))
}

func TestResolveEmptyContextYieldsDefaults(t *testing.T) {
	s := "${root.headers.Product-Id:none}/${parent.body:empty}"
	assert.Equal(t, "none/empty", Resolve(s, Context{}))
}

func TestResolveRootHeader(t *testing.T) {
	root := Node{Headers: reqtree.NewHeaders(map[string]string{"Product-Id": "12"})}
	got := Resolve("http://ratings.svc/add/${parent.headers.Product-Id}", Context{Parent: root})
	assert.Equal(t, "http://ratings.svc/add/12", got)
}

func TestResolveTransactionResponseBody(t *testing.T) {
	ctx := Context{
		Transactions: []Node{
			{RespBody: []byte("bar")},
			{RespBody: []byte("foo")},
		},
	}
	got := Resolve("Ratings: ${transaction[0].response.body}\nDetails: ${transaction[1].response.body}\n", ctx)
	assert.Equal(t, "Ratings: bar\nDetails: foo\n", got)
}

func TestResolveOutOfRangeIndexFallsBackToDefault(t *testing.T) {
	ctx := Context{Transactions: []Node{{RespBody: []byte("bar")}}}
	got := Resolve("${transaction[5].response.body:missing}", ctx)
	assert.Equal(t, "missing", got)
}

func TestResolveCaseInsensitive(t *testing.T) {
	root := Node{Headers: reqtree.NewHeaders(map[string]string{"X-Id": "7"})}
	got := Resolve("${ROOT.HEADERS.X-Id}", Context{Root: root})
	assert.Equal(t, "7", got)
}
