package step

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/schema"
	"github.com/nathro/autotransform/internal/scripting"
)

// requestTimeout bounds every templated HTTP request.
const requestTimeout = 120 * time.Second

// httpClient is replaced in tests.
var httpClient = &http.Client{Timeout: requestTimeout}

// envReplacerRe matches <env:NAME> tokens, replaced on the handler's first
// request.
var envReplacerRe = regexp.MustCompile(`<env:([^>]+)>`)

// changeReplacerRe matches <change:attr> tokens, replaced per call.
var changeReplacerRe = regexp.MustCompile(`<change:([^>]+)>`)

// RequestHandler performs parameterized HTTP requests with two replacement
// passes: constant replacers (<env:NAME>) applied once, on the first request,
// and cached for the handler's lifetime (environment changes after that
// first request are not picked up), and per-call replacers (<change:attr>)
// applied at invocation. Substitution recurses into nested maps.
type RequestHandler struct {
	URL         string         `json:"url"`
	Method      string         `json:"method,omitempty"`
	Headers     map[string]any `json:"headers,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	LogResponse bool           `json:"log_response,omitempty"`

	// Constant-replaced copies, cached at first use for the handler's
	// lifetime.
	constHeaders map[string]any
	constParams  map[string]any
	constData    map[string]any
}

func (h *RequestHandler) validate() error {
	if h.URL == "" {
		return fmt.Errorf("step: request requires a url: %w", config.ErrConfig)
	}
	switch strings.ToUpper(h.Method) {
	case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return nil
	default:
		return fmt.Errorf("step: unsupported request method %q: %w", h.Method, config.ErrConfig)
	}
}

func (h *RequestHandler) method() string {
	if h.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(h.Method)
}

// replaceValues substitutes tokens matched by re in every string value,
// recursing into nested maps.
func replaceValues(data map[string]any, re *regexp.Regexp, replacer func(string) string) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for name, val := range data {
		switch v := val.(type) {
		case string:
			out[name] = re.ReplaceAllStringFunc(v, func(match string) string {
				return replacer(re.FindStringSubmatch(match)[1])
			})
		case map[string]any:
			out[name] = replaceValues(v, re, replacer)
		default:
			out[name] = val
		}
	}
	return out
}

// applyConstants fills in <env:NAME> tokens once; subsequent calls reuse the
// cached result.
func (h *RequestHandler) applyConstants() {
	if h.constHeaders != nil || h.constParams != nil || h.constData != nil {
		return
	}
	h.constHeaders = replaceValues(h.Headers, envReplacerRe, os.Getenv)
	h.constParams = replaceValues(h.Params, envReplacerRe, os.Getenv)
	h.constData = replaceValues(h.Data, envReplacerRe, os.Getenv)
}

// changeAttr resolves a <change:attr> token against the Change.
func changeAttr(ch schema.Change, attr string) string {
	switch attr {
	case "state":
		return string(ch.State())
	case "review_state":
		return string(ch.ReviewState())
	case "test_state":
		return string(ch.TestState())
	case "schema_name":
		return ch.SchemaName()
	case "created_at":
		return strconv.FormatInt(ch.CreatedAt(), 10)
	case "updated_at":
		return strconv.FormatInt(ch.UpdatedAt(), 10)
	case "labels":
		return strings.Join(ch.Labels(), ",")
	case "reviewers":
		return strings.Join(ch.Reviewers(), ",")
	case "team_reviewers":
		return strings.Join(ch.TeamReviewers(), ",")
	default:
		return ch.String()
	}
}

// Response performs the request for the given Change and returns the raw
// response body.
func (h *RequestHandler) Response(ctx context.Context, ch schema.Change) (string, error) {
	h.applyConstants()
	replace := func(attr string) string { return changeAttr(ch, attr) }
	headers := replaceValues(h.constHeaders, changeReplacerRe, replace)
	params := replaceValues(h.constParams, changeReplacerRe, replace)
	data := replaceValues(h.constData, changeReplacerRe, replace)

	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("step: encoding request data: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, h.method(), h.URL, body)
	if err != nil {
		return "", fmt.Errorf("step: building request: %w", err)
	}
	query := url.Values{}
	for name, val := range params {
		query.Set(name, fmt.Sprintf("%v", val))
	}
	req.URL.RawQuery = query.Encode()
	for name, val := range headers {
		req.Header.Set(name, fmt.Sprintf("%v", val))
	}
	if data != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("step: %s %s: %w (%w)", h.method(), h.URL, err, scripting.ErrTransient)
	}
	defer resp.Body.Close()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("step: reading response: %w", err)
	}
	if h.LogResponse {
		event.Default().Handle(event.DebugEvent{
			Msg: fmt.Sprintf("response (%d) from %s: %s", resp.StatusCode, h.URL, responseBody),
		})
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("step: %s %s returned %d: %w",
			h.method(), h.URL, resp.StatusCode, scripting.ErrTransient)
	}
	return string(responseBody), nil
}

// RequestAction performs a templated HTTP request for the Change.
type RequestAction struct {
	RequestHandler
}

func (a *RequestAction) ComponentName() string { return "request" }

func (a *RequestAction) Run(ctx context.Context, ch schema.Change) error {
	_, err := a.Response(ctx, ch)
	return err
}

// RequestStrCondition performs a templated HTTP request and compares the
// response, either as raw text or as a field extracted from the decoded JSON
// body via a "//"-separated path.
type RequestStrCondition struct {
	RequestHandler
	Comparison    Comparison `json:"comparison"`
	Value         any        `json:"value"`
	ResponseField string     `json:"response_field,omitempty"`
}

func (c *RequestStrCondition) ComponentName() string { return "request_str" }

func (c *RequestStrCondition) Check(ctx context.Context, ch schema.Change) (bool, error) {
	body, err := c.Response(ctx, ch)
	if err != nil {
		return false, err
	}
	value := body
	if c.ResponseField != "" {
		value, err = descendField(body, c.ResponseField)
		if err != nil {
			return false, err
		}
	}
	return compareStrings(value, c.Value, c.Comparison)
}

// descendField decodes the body as JSON and walks the "a//b//c" path.
func descendField(body, field string) (string, error) {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return "", fmt.Errorf("step: response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, "//") {
		m, ok := decoded.(map[string]any)
		if !ok {
			return "", fmt.Errorf("step: response field %q: %q is not an object", field, part)
		}
		decoded, ok = m[part]
		if !ok {
			return "", fmt.Errorf("step: response has no field %q", field)
		}
	}
	if s, ok := decoded.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", decoded), nil
}

func init() {
	RegisterAction("request", func(data json.RawMessage) (Action, error) {
		var a RequestAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, a.validate()
	})
	RegisterCondition("request_str", func(data json.RawMessage) (Condition, error) {
		var c RequestStrCondition
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		if err := c.validate(); err != nil {
			return nil, err
		}
		return &c, validateComparison("request_str", c.Comparison,
			CompareEqual, CompareNotEqual, CompareIn, CompareNotIn)
	})
}
