package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qboxio/qbox/config"
	"github.com/qboxio/qbox/pkg/gateway/response"
	"github.com/qboxio/qbox/pkg/httpclient"
	"github.com/qboxio/qbox/pkg/interpolate"
	"github.com/qboxio/qbox/pkg/logger"
	"github.com/qboxio/qbox/pkg/matcher"
	"github.com/qboxio/qbox/pkg/reqtree"
	"github.com/qboxio/qbox/pkg/saga"
)

// transportStatusCode is returned to the inbound client when the passthrough
// proxy fails to reach the upstream. 599 is not a registered HTTP status;
// it is the value the source uses to flag "the proxy itself failed".
const transportStatusCode = 599

// DispatchHandler is the Gateway's front door: it matches every inbound
// request against the loaded saga configurations, runs a saga on a hit,
// and transparently proxies everything else.
type DispatchHandler struct {
	configs []config.SagaConfig
	client  httpclient.Client
	metrics saga.MetricsRecorder
	log     logger.Logger
}

// NewDispatchHandler builds a dispatch handler over configs. client is the
// shared outbound HTTP client used both for saga dispatch and passthrough
// proxying. metrics may be nil (no-op).
func NewDispatchHandler(configs []config.SagaConfig, client httpclient.Client, metrics saga.MetricsRecorder, log logger.Logger) *DispatchHandler {
	return &DispatchHandler{configs: configs, client: client, metrics: metrics, log: log}
}

// ServeHTTP implements the rule from the gateway's dispatch table: no
// configs loaded, or no match, proxies; a match runs a saga and shapes the
// response from its onAllSucceeded/onAnyFailed template.
func (h *DispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read request body", "")
		return
	}

	headers := headersFromHTTP(r.Header)

	if len(h.configs) == 0 {
		h.proxy(w, r, headers, body)
		return
	}

	patterns := make([]matcher.Pattern, len(h.configs))
	for i, c := range h.configs {
		patterns[i] = matcher.Pattern{
			Method:  c.MatchRequest.Method,
			URL:     c.MatchRequest.URL,
			Headers: c.MatchRequest.Headers,
			Body:    []byte(c.MatchRequest.Body),
		}
	}

	matched, idx := matcher.Match(matcher.Request{
		Method:  r.Method,
		Host:    r.Host,
		Path:    requestPath(r),
		Headers: headers,
		Body:    body,
	}, patterns)

	if !matched {
		h.proxy(w, r, headers, body)
		return
	}

	h.runSaga(w, r, h.configs[idx], headers, body)
}

func (h *DispatchHandler) runSaga(w http.ResponseWriter, r *http.Request, cfg config.SagaConfig, headers reqtree.Headers, body []byte) {
	co := saga.New(cfg, r.Method, fullyQualifiedURL(r), headers, body,
		saga.WithHTTPClient(h.client), saga.WithMetrics(h.metrics))

	result := co.Execute(r.Context())

	tmpl := cfg.OnAllSucceeded
	if !result.Outcome.Succeeded() {
		tmpl = cfg.OnAnyFailed
	}
	if tmpl == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	ictx := interpolate.Context{
		Root:         interpolate.NodeFrom(co.Tree.Root()),
		Parent:       interpolate.Node{},
		Transactions: transactionViews(co, result.CompletedTransactions),
	}

	for name, value := range tmpl.Headers {
		w.Header().Set(name, interpolate.Resolve(value, ictx))
	}
	w.WriteHeader(tmpl.StatusCode)
	if tmpl.Body != "" {
		_, _ = w.Write([]byte(interpolate.Resolve(tmpl.Body, ictx)))
	}
}

func transactionViews(co *saga.Coordinator, completed []int) []interpolate.Node {
	views := make([]interpolate.Node, len(completed))
	for i, idx := range completed {
		views[i] = interpolate.NodeFrom(co.Tree.Node(idx))
	}
	return views
}

// proxy transparently forwards an unmatched request and streams back the
// upstream's status, headers and body. A transport failure (the upstream
// could not be reached at all) yields 599 with a diagnostic body; this
// never happens for a valid-but-erroring upstream response, which is
// forwarded as-is.
func (h *DispatchHandler) proxy(w http.ResponseWriter, r *http.Request, headers reqtree.Headers, body []byte) {
	resp, err := h.client.Do(r.Context(), httpclient.Request{
		Method:  r.Method,
		URL:     fullyQualifiedURL(r),
		Headers: headers,
		Body:    body,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(transportStatusCode)
		fmt.Fprintf(w, "qbox: upstream unreachable: %v", err)
		return
	}

	resp.Headers.Range(func(key, value string) { w.Header().Set(key, value) })
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func headersFromHTTP(h http.Header) reqtree.Headers {
	hs := reqtree.NewHeaders(nil)
	for name, values := range h {
		if len(values) > 0 {
			hs.Set(name, values[0])
		}
	}
	return hs
}

func requestPath(r *http.Request) string {
	if r.URL.RawQuery != "" {
		return r.URL.Path + "?" + r.URL.RawQuery
	}
	return r.URL.Path
}

func fullyQualifiedURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return fmt.Sprintf("http://%s%s", r.Host, requestPath(r))
}
