// Package saga runs one saga execution: a sequential dispatch of
// configured transactions against a single inbound request, compensating
// everything already completed the moment a later transaction fails.
package saga

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/qboxio/qbox/config"
	"github.com/qboxio/qbox/pkg/httpclient"
	"github.com/qboxio/qbox/pkg/interpolate"
	"github.com/qboxio/qbox/pkg/reqtree"
)

// Reserved headers injected on every outbound transaction/compensation
// dispatch, overwriting any caller-supplied value of the same name.
const (
	HeaderTransactionID = "X-Qbox-TransactionID"
	HeaderMessageType   = "X-Qbox-Message-Type"

	MessageTypeTransaction  = "TRANSACTION"
	MessageTypeCompensation = "COMPENSATION"
)

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithHTTPClient overrides the outbound HTTP client. Defaults to
// httpclient.New with the package's default circuit breaker config.
func WithHTTPClient(c httpclient.Client) Option {
	return func(co *Coordinator) { co.client = c }
}

// WithMetrics wires a MetricsRecorder. Defaults to a no-op recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(co *Coordinator) {
		if m != nil {
			co.metrics = m
		}
	}
}

// Coordinator owns one saga's request tree and runs its transaction
// sequence to a terminal outcome. Not safe for concurrent use — a saga
// owns its tree exclusively and runs strictly sequentially internally;
// create one Coordinator per inbound request.
type Coordinator struct {
	ID      string
	Tree    *reqtree.Tree
	Journal *Journal

	cfg     config.SagaConfig
	client  httpclient.Client
	metrics MetricsRecorder
	states  map[int]TransactionState
}

// New starts a saga for one matched inbound request. rootMethod, rootURL,
// rootHeaders and rootBody are the actual inbound request that matched —
// not the matchRequest pattern that selected cfg, which is kept only as
// the root node's configuration reference.
func New(cfg config.SagaConfig, rootMethod, rootURL string, rootHeaders reqtree.Headers, rootBody []byte, opts ...Option) *Coordinator {
	id := uuid.NewString()
	co := &Coordinator{
		ID:      id,
		Tree:    reqtree.New(rootMethod, rootURL, rootHeaders, rootBody, cfg.MatchRequest),
		Journal: NewJournal(id),
		cfg:     cfg,
		client:  httpclient.New(httpclient.DefaultCircuitBreakerConfig()),
		metrics: &nopMetricsRecorder{},
		states:  make(map[int]TransactionState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(co)
		}
	}
	return co
}

// Result is the terminal outcome of one saga execution.
type Result struct {
	Success               bool
	Outcome               SagaOutcome
	CompletedTransactions []int
	FailedCompensations   []int
}

// Execute dispatches onMatchedRequest in order. The first transaction
// whose response doesn't satisfy isSuccessIfReceives halts the sequence
// and triggers compensation, in insertion order, of every transaction
// that already succeeded.
func (c *Coordinator) Execute(ctx context.Context) *Result {
	ctx, span := sagaTracer().Start(ctx, spanSagaExecute, trace.WithAttributes(
		attribute.String("qbox.saga.id", c.ID),
	))
	defer span.End()

	start := time.Now()
	c.metrics.IncActiveSagas()
	defer c.metrics.DecActiveSagas()

	rootIdx := c.Tree.RootIndex()
	var completed []int

	for _, spec := range c.cfg.OnMatchedRequest {
		txStart := time.Now()
		nodeIdx := c.prepare(reqtree.KindTransaction, spec.Method, spec.URL, spec.Headers, spec.Body, rootIdx, spec)
		dispatched := c.dispatch(ctx, nodeIdx, spec.TimeoutMillis, spec.MaxRetriesOnTimeout, MessageTypeTransaction)

		if dispatched && c.isSuccessful(nodeIdx, spec.IsSuccessIfReceives, nodeIdx) {
			c.transition(nodeIdx, StateSuccess)
			c.Tree.AttachTo(nodeIdx, rootIdx)
			completed = append(completed, nodeIdx)
			c.Journal.Record(TransactionCompleted, nodeIdx, spec.URL)
			c.metrics.RecordTransactionDispatch("success", time.Since(txStart))
			continue
		}

		c.transition(nodeIdx, StateFailed)
		c.Journal.Record(TransactionFailed, nodeIdx, spec.URL)
		c.metrics.RecordTransactionDispatch("failed", time.Since(txStart))

		failed := c.compensate(ctx, completed)
		outcome := OutcomeAllCompensated
		if len(failed) > 0 {
			outcome = OutcomePartialCompensationFailed
		}
		c.metrics.RecordSagaExecution(string(outcome))
		c.metrics.RecordSagaDuration(string(outcome), time.Since(start))
		span.SetAttributes(attribute.String("qbox.saga.outcome", string(outcome)))
		span.SetStatus(otelcodes.Error, string(outcome))
		return &Result{
			Success:               false,
			Outcome:               outcome,
			CompletedTransactions: completed,
			FailedCompensations:   failed,
		}
	}

	c.metrics.RecordSagaExecution(string(OutcomeAllSuccess))
	c.metrics.RecordSagaDuration(string(OutcomeAllSuccess), time.Since(start))
	span.SetAttributes(attribute.String("qbox.saga.outcome", string(OutcomeAllSuccess)))
	span.SetStatus(otelcodes.Ok, "")
	return &Result{
		Success:               true,
		Outcome:               OutcomeAllSuccess,
		CompletedTransactions: completed,
	}
}

// prepare interpolates a transaction/compensation spec's url, headers and
// body against the current tree state, injects the reserved headers, and
// allocates (but does not attach) the resulting node.
func (c *Coordinator) prepare(kind reqtree.Kind, method, url string, headers map[string]string, bodyTemplate string, parentIdx int, configuration any) int {
	ictx := c.interpContext(parentIdx)

	resolvedURL := interpolate.Resolve(url, ictx)

	resolvedHeaders := reqtree.NewHeaders(nil)
	for k, v := range headers {
		resolvedHeaders.Set(k, interpolate.Resolve(v, ictx))
	}

	msgType := MessageTypeTransaction
	entryType := TransactionStarted
	if kind == reqtree.KindCompensation {
		msgType = MessageTypeCompensation
		entryType = CompensationStarted
	}
	resolvedHeaders.Set(HeaderTransactionID, c.ID)
	resolvedHeaders.Set(HeaderMessageType, msgType)

	var body []byte
	if bodyTemplate != "" {
		body = []byte(interpolate.Resolve(bodyTemplate, ictx))
	}

	idx := c.Tree.NewNode(kind, method, resolvedURL, resolvedHeaders, body, configuration)
	c.states[idx] = StateInit
	c.Journal.Record(entryType, idx, resolvedURL)
	return idx
}

// State returns nodeIdx's current position in the per-transaction state
// machine (spec.md §4.4: INIT → AWAITING → SUCCESS|FAILED, and a
// successful node additionally COMPENSATING → COMPENSATED|COMPENSATION_FAILED
// if the saga later rolls it back).
func (c *Coordinator) State(nodeIdx int) TransactionState {
	return c.states[nodeIdx]
}

// transition advances nodeIdx to next, validating against the current
// state. An invalid transition is a coordinator bug, not a runtime
// condition it should swallow — it panics, the same contract
// reqtree.AttachTo uses for its own invariant.
func (c *Coordinator) transition(nodeIdx int, next TransactionState) {
	cur := c.states[nodeIdx]
	if err := cur.ValidateTransition(next); err != nil {
		panic(err)
	}
	c.states[nodeIdx] = next
}

// dispatch sends the prepared node's request, retrying on timeout up to
// the spec's maxRetriesOnTimeout — default one total attempt for
// transactions, unbounded for compensations — and records the response on
// success. A transport error is terminal: no retry, response left unset.
func (c *Coordinator) dispatch(ctx context.Context, nodeIdx int, timeoutMillis int, maxRetries *int, msgType string) bool {
	spanName := spanTransactionDispatch
	if msgType == MessageTypeCompensation {
		spanName = spanCompensationDispatch
	}
	ctx, span := sagaTracer().Start(ctx, spanName, trace.WithAttributes(
		attribute.String("qbox.saga.id", c.ID),
	))
	defer span.End()

	c.transition(nodeIdx, StateAwaiting)

	node := c.Tree.Node(nodeIdx)
	span.SetAttributes(attribute.String("url.full", node.URL), attribute.String("http.request.method", node.Method))
	attempts, unbounded := resolveMaxAttempts(maxRetries, msgType)

	for i := 0; unbounded || i < attempts; i++ {
		select {
		case <-ctx.Done():
			span.SetStatus(otelcodes.Error, "context cancelled")
			return false
		default:
		}

		resp, err := c.client.Do(ctx, httpclient.Request{
			Method:  node.Method,
			URL:     node.URL,
			Headers: node.Headers,
			Body:    node.Body,
			Timeout: time.Duration(timeoutMillis) * time.Millisecond,
		})
		if err != nil {
			if errors.Is(err, httpclient.TimeoutError) {
				if msgType == MessageTypeCompensation {
					c.metrics.RecordCompensationRetry()
				}
				continue
			}
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return false
		}

		span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
		span.SetStatus(otelcodes.Ok, "")
		c.Tree.UpdateResponse(nodeIdx, resp.Status, resp.Headers, resp.Body)
		return true
	}
	span.SetStatus(otelcodes.Error, "timed out after all retries")
	return false
}

// resolveMaxAttempts turns maxRetriesOnTimeout into a total-attempts count.
// A configured value of zero is treated as one attempt. An unconfigured
// value defaults to one attempt for transactions and unbounded retry for
// compensations.
func resolveMaxAttempts(maxRetries *int, msgType string) (attempts int, unbounded bool) {
	if maxRetries != nil {
		if *maxRetries <= 0 {
			return 1, false
		}
		return *maxRetries, false
	}
	if msgType == MessageTypeCompensation {
		return 0, true
	}
	return 1, false
}

// isSuccessful reports whether the node's response satisfies at least one
// of the candidate matches. Header values and the body pattern are
// interpolated against parentIdx — the dispatching node's own request —
// before comparison.
func (c *Coordinator) isSuccessful(nodeIdx int, matches []config.ResponseMatch, parentIdx int) bool {
	node := c.Tree.Node(nodeIdx)
	if !node.ResponseSet {
		return false
	}
	ictx := c.interpContext(parentIdx)

	for _, m := range matches {
		if node.ResponseStatus != m.StatusCode {
			continue
		}
		if !headersSatisfy(node.ResponseHeaders, m.Headers, ictx) {
			continue
		}
		if m.Body != "" {
			if string(node.ResponseBody) != interpolate.Resolve(m.Body, ictx) {
				continue
			}
		}
		return true
	}
	return false
}

func headersSatisfy(have reqtree.Headers, want map[string]string, ictx interpolate.Context) bool {
	for k, v := range want {
		expected := interpolate.Resolve(v, ictx)
		actual, ok := have.Get(k)
		if !ok || !strings.EqualFold(actual, expected) {
			return false
		}
	}
	return true
}

// compensate dispatches onFailure for every completed transaction, in the
// same insertion order they succeeded in — never reversed. Each
// compensation that itself fails to resolve is collected and returned.
func (c *Coordinator) compensate(ctx context.Context, completed []int) []int {
	var failed []int

	for _, txIdx := range completed {
		txNode := c.Tree.Node(txIdx)
		spec, ok := txNode.Configuration.(config.TransactionSpec)
		if !ok {
			continue
		}

		c.transition(txIdx, StateCompensating)
		txFailed := false

		for _, cspec := range spec.OnFailure {
			cStart := time.Now()
			cIdx := c.prepare(reqtree.KindCompensation, cspec.Method, cspec.URL, cspec.Headers, cspec.Body, txIdx, cspec)
			dispatched := c.dispatch(ctx, cIdx, cspec.TimeoutMillis, cspec.MaxRetriesOnTimeout, MessageTypeCompensation)

			if dispatched && c.isSuccessful(cIdx, cspec.IsSuccessIfReceives, cIdx) {
				c.transition(cIdx, StateSuccess)
				c.Tree.AttachTo(cIdx, txIdx)
				c.Journal.Record(CompensationCompleted, cIdx, cspec.URL)
				c.metrics.RecordCompensation("success", time.Since(cStart))
				continue
			}

			c.transition(cIdx, StateFailed)
			c.Journal.Record(CompensationFailed, cIdx, cspec.URL)
			c.metrics.RecordCompensation("failed", time.Since(cStart))
			failed = append(failed, cIdx)
			txFailed = true
		}

		if txFailed {
			c.transition(txIdx, StateCompensationFailed)
		} else {
			c.transition(txIdx, StateCompensated)
		}
	}

	return failed
}

func (c *Coordinator) interpContext(parentIdx int) interpolate.Context {
	return interpolate.Context{
		Root:   interpolate.NodeFrom(c.Tree.Root()),
		Parent: interpolate.NodeFrom(c.Tree.Node(parentIdx)),
	}
}
