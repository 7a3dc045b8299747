package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"goldenbatch/internal/types"
)

// DefaultPredictorURL is the local development address of the prediction
// service.
const DefaultPredictorURL = "http://localhost:5000/simulate"

// maxResponseBodySize caps how much of a response body is read (1 MB).
const maxResponseBodySize = 1 << 20

// PredictorClientConfig holds the configuration for creating a PredictorClient.
type PredictorClientConfig struct {
	URL       string // defaults to DefaultPredictorURL
	Timeout   time.Duration
	UserAgent string
	Breaker   BreakerSettings
	Logger    *slog.Logger
}

// predictResponse is the union of the success and error bodies. Both fields
// are kept raw: only the truthiness of error decides the outcome, and any
// prediction that is not the string "Pass" is a Fail.
type predictResponse struct {
	Prediction json.RawMessage `json:"prediction"`
	Error      json.RawMessage `json:"error"`
}

// PredictorClient sends one simulate request per Predict call and classifies
// every failure as a *types.AttemptError.
type PredictorClient struct {
	base   *BaseClient
	url    string
	logger *slog.Logger
}

// NewPredictorClient creates a PredictorClient with its own BaseClient.
func NewPredictorClient(cfg PredictorClientConfig) *PredictorClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	breaker := cfg.Breaker
	if breaker.Cooldown == 0 {
		breaker.Cooldown = DefaultBreakerSettings().Cooldown
	}

	base := NewBaseClient(
		&http.Client{Timeout: timeout},
		"predictor",
		breaker,
		cfg.UserAgent,
	)
	return NewPredictorClientWithBase(base, cfg)
}

// NewPredictorClientWithBase creates a PredictorClient with a pre-configured
// BaseClient.
func NewPredictorClientWithBase(base *BaseClient, cfg PredictorClientConfig) *PredictorClient {
	url := cfg.URL
	if url == "" {
		url = DefaultPredictorURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictorClient{
		base:   base,
		url:    url,
		logger: logger,
	}
}

// Endpoint returns the configured service URL.
func (c *PredictorClient) Endpoint() string {
	return c.url
}

// Base exposes the transport for health reporting.
func (c *PredictorClient) Base() *BaseClient {
	return c.base
}

// Predict posts params to the service and returns the normalized verdict.
// Errors are always *types.AttemptError.
func (c *PredictorClient) Predict(ctx context.Context, params types.ParameterSet) (types.Verdict, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", &types.AttemptError{Kind: types.FailureTransport, Message: "encoding payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &types.AttemptError{Kind: types.FailureTransport, Message: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return "", &types.AttemptError{Kind: types.FailureTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", &types.AttemptError{Kind: types.FailureTransport, Message: "reading response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A non-2xx body may still name the cause; keep it for the log only.
		c.logger.Debug("prediction service returned error status",
			"status_code", resp.StatusCode,
			"body", truncate(string(raw), 256),
		)
		return "", &types.AttemptError{Kind: types.FailureStatus, StatusCode: resp.StatusCode}
	}

	var decoded predictResponse
	if strings.TrimSpace(string(raw)) == "null" {
		err = errors.New("response body is null")
	} else {
		err = json.Unmarshal(raw, &decoded)
	}
	if err != nil {
		return "", &types.AttemptError{
			Kind:       types.FailureDecode,
			StatusCode: resp.StatusCode,
			Message:    "parsing response body",
			Err:        err,
		}
	}

	if msg, ok := applicationError(decoded.Error); ok {
		return "", &types.AttemptError{
			Kind:       types.FailureApplication,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	verdict := predictionVerdict(decoded.Prediction)
	if verdict == types.VerdictFail && !bytes.Equal(bytes.TrimSpace(decoded.Prediction), []byte(`"Fail"`)) {
		c.logger.Warn("prediction normalized to Fail", "prediction", truncate(string(decoded.Prediction), 64))
	}
	return verdict, nil
}

// predictionVerdict maps the raw prediction field onto the binary verdict.
// Numbers, booleans, objects, null and absent fields are all Fail.
func predictionVerdict(raw json.RawMessage) types.Verdict {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.VerdictFail
	}
	return types.NormalizeVerdict(s)
}

// applicationError reports whether the error field is present and truthy:
// null, false, "" and 0 do not count as errors.
func applicationError(raw json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "false", `""`, "0":
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return trimmed, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
