// Package interpolate resolves ${...} template expressions against a
// request tree context.
package interpolate

import (
	"regexp"
	"strconv"

	"github.com/qboxio/qbox/pkg/reqtree"
)

// Node is the minimal read-only view an interpolation context needs of a
// request tree node: headers and body, both for the outbound request and,
// where applicable, the response it received.
type Node struct {
	Headers      reqtree.Headers
	Body         []byte
	RespHeaders  reqtree.Headers
	RespBody     []byte
}

// NodeFrom builds a Node view from a reqtree.Node.
func NodeFrom(n *reqtree.Node) Node {
	return Node{
		Headers:     n.Headers,
		Body:        n.Body,
		RespHeaders: n.ResponseHeaders,
		RespBody:    n.ResponseBody,
	}
}

// Context is the resolver's read-only handle onto the current saga state:
// the root request, the immediate parent, and the transactions dispatched
// so far (the root's successful children, in dispatch order).
type Context struct {
	Root         Node
	Parent       Node
	Transactions []Node
}

// pattern pairs one expression family's regexp with its replacement
// function. Each family is applied as one independent ReplaceAllStringFunc
// pass over the whole input — matching the source's per-pattern-family
// substitution loop: a pass does not re-scan text it substituted itself,
// but later families' passes run over it.
type pattern struct {
	re      *regexp.Regexp
	replace func(ctx Context, groups []string) string
}

const headerClass = `[A-Za-z0-9_-]+`

var patterns = []pattern{
	{
		re: regexp.MustCompile(`(?i)\$\{root\.headers\.(` + headerClass + `):?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			return headerOrDefault(ctx.Root.Headers, g[1], g[2])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{root\.body:?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			return bodyOrDefault(ctx.Root.Body, g[1])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{parent\.headers\.(` + headerClass + `):?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			return headerOrDefault(ctx.Parent.Headers, g[1], g[2])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{parent\.body:?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			return bodyOrDefault(ctx.Parent.Body, g[1])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{parent\.response\.headers\.(` + headerClass + `):?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			return headerOrDefault(ctx.Parent.RespHeaders, g[1], g[2])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{parent\.response\.body:?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			return bodyOrDefault(ctx.Parent.RespBody, g[1])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{transaction\[([0-9]+)\]\.request\.headers\.(` + headerClass + `):?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			idx, ok := txIndex(ctx, g[1])
			if !ok {
				return g[3]
			}
			return headerOrDefault(ctx.Transactions[idx].Headers, g[2], g[3])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{transaction\[([0-9]+)\]\.response\.headers\.(` + headerClass + `):?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			idx, ok := txIndex(ctx, g[1])
			if !ok {
				return g[3]
			}
			return headerOrDefault(ctx.Transactions[idx].RespHeaders, g[2], g[3])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{transaction\[([0-9]+)\]\.request\.body:?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			idx, ok := txIndex(ctx, g[1])
			if !ok {
				return g[2]
			}
			return bodyOrDefault(ctx.Transactions[idx].Body, g[2])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\$\{transaction\[([0-9]+)\]\.response\.body:?(.*?)\}`),
		replace: func(ctx Context, g []string) string {
			idx, ok := txIndex(ctx, g[1])
			if !ok {
				return g[2]
			}
			return bodyOrDefault(ctx.Transactions[idx].RespBody, g[2])
		},
	},
}

func headerOrDefault(h reqtree.Headers, name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

func bodyOrDefault(body []byte, def string) string {
	if len(body) == 0 {
		return def
	}
	return string(body)
}

func txIndex(ctx Context, raw string) (int, bool) {
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 || idx >= len(ctx.Transactions) {
		return 0, false
	}
	return idx, true
}

// Resolve returns s with every recognised ${...} expression substituted
// from ctx, one pattern family after another in the order of patterns,
// left-to-right within each family. Each family's pass runs over the output
// of the earlier ones, so a substituted value containing an expression of a
// later family is expanded by that family's pass. An empty string is
// returned unchanged.
func Resolve(s string, ctx Context) string {
	if s == "" {
		return s
	}
	for _, p := range patterns {
		s = p.re.ReplaceAllStringFunc(s, func(match string) string {
			groups := p.re.FindStringSubmatch(match)
			return p.replace(ctx, groups)
		})
	}
	return s
}
