// Package matcher decides whether an inbound request triggers a configured
// saga.
package matcher

import (
	"bytes"
	"fmt"

	"github.com/qboxio/qbox/pkg/reqtree"
)

// Pattern is the subset of a saga configuration's matchRequest a Request
// is checked against.
type Pattern struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Request is the inbound request to match.
type Request struct {
	Method  string
	Host    string // the Host header, used to build the fully-qualified URL when the inbound URL lacks a scheme
	Path    string // path (+ query) as received
	URL     string // pre-built fully-qualified URL, if already known; takes precedence over Host+Path
	Headers reqtree.Headers
	Body    []byte
}

// fullyQualifiedURL returns r.URL if set, else constructs http://<Host><Path>
// per the spec's rule that a scheme-less inbound URL is assumed http (https
// is out of scope).
func (r Request) fullyQualifiedURL() string {
	if r.URL != "" {
		return r.URL
	}
	return fmt.Sprintf("http://%s%s", r.Host, r.Path)
}

// Match iterates configs in order and returns the index of the first one
// whose matchRequest pattern is satisfied by req, or (false, 0) if none
// match.
func Match(req Request, configs []Pattern) (bool, int) {
	url := req.fullyQualifiedURL()

	for i, p := range configs {
		if p.URL != url {
			continue
		}
		if p.Method != req.Method {
			continue
		}
		if !headersSatisfy(req.Headers, p.Headers) {
			continue
		}
		if len(p.Body) > 0 && !bytes.Equal(req.Body, p.Body) {
			continue
		}
		return true, i
	}
	return false, 0
}

func headersSatisfy(have reqtree.Headers, want map[string]string) bool {
	for name, value := range want {
		v, ok := have.Get(name)
		if !ok || v != value {
			return false
		}
	}
	return true
}
