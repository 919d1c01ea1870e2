package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SagaConfig is one saga configuration document: a request pattern to
// match, the transaction sequence to run on a match, and the response
// templates for the two terminal outcomes. Already validated upstream —
// this package only decodes it into a typed shape.
type SagaConfig struct {
	Host             string           `yaml:"host"`
	MatchRequest     RequestPattern   `yaml:"matchRequest"`
	OnMatchedRequest []TransactionSpec `yaml:"onMatchedRequest"`
	OnAllSucceeded   *ResponseSpec    `yaml:"onAllSucceeded,omitempty"`
	OnAnyFailed      *ResponseSpec    `yaml:"onAnyFailed,omitempty"`
}

// RequestPattern describes the shape of a request: used both for matching
// an inbound request (matchRequest) and for issuing an outbound one
// (TransactionSpec/CompensationSpec embed it).
type RequestPattern struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
}

// TransactionSpec is one step of onMatchedRequest.
type TransactionSpec struct {
	Method              string             `yaml:"method"`
	URL                 string             `yaml:"url"`
	Headers             map[string]string  `yaml:"headers,omitempty"`
	Body                string             `yaml:"body,omitempty"`
	TimeoutMillis       int                `yaml:"timeout"`
	MaxRetriesOnTimeout *int               `yaml:"maxRetriesOnTimeout,omitempty"`
	IsSuccessIfReceives []ResponseMatch    `yaml:"isSuccessIfReceives"`
	OnFailure           []CompensationSpec `yaml:"onFailure,omitempty"`
}

// CompensationSpec is one entry of a TransactionSpec's onFailure list —
// identical shape to TransactionSpec, minus onFailure itself (compensations
// don't nest further compensations).
type CompensationSpec struct {
	Method              string            `yaml:"method"`
	URL                 string            `yaml:"url"`
	Headers             map[string]string `yaml:"headers,omitempty"`
	Body                string            `yaml:"body,omitempty"`
	TimeoutMillis       int               `yaml:"timeout"`
	MaxRetriesOnTimeout *int              `yaml:"maxRetriesOnTimeout,omitempty"`
	IsSuccessIfReceives []ResponseMatch   `yaml:"isSuccessIfReceives"`
}

// ResponseMatch is one candidate "this response counts as success" pattern.
type ResponseMatch struct {
	StatusCode int               `yaml:"status-code"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Body       string            `yaml:"body,omitempty"`
}

// ResponseSpec is an onAllSucceeded/onAnyFailed template. Its fields may
// contain interpolation expressions, resolved by the Gateway at response
// time.
type ResponseSpec struct {
	StatusCode int               `yaml:"status-code"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Body       string            `yaml:"body,omitempty"`
}

// LoadSagaConfigs reads every YAML document at path and decodes each into
// an independent SagaConfig, mirroring configuration.py's
// yaml.safe_load_all over the multi-document file.
func LoadSagaConfigs(path string) ([]SagaConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sagaconfig: open %s: %w", path, err)
	}
	defer f.Close()

	return DecodeSagaConfigs(f)
}

// DecodeSagaConfigs decodes every YAML document from r into a SagaConfig.
func DecodeSagaConfigs(r io.Reader) ([]SagaConfig, error) {
	dec := yaml.NewDecoder(r)

	var configs []SagaConfig
	for {
		var doc SagaConfig
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("sagaconfig: decode document %d: %w", len(configs), err)
		}
		configs = append(configs, doc)
	}
	return configs, nil
}
