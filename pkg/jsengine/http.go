package jsengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
)

const defaultHTTPTimeout = 30 * time.Second

// httpModule builds the "http" global exposed to flow scripts: get, post,
// put and delete shorthands plus a generic request(method, url, [options]).
// Options: body (string or object), headers, timeout (ms).
func (e *Engine) httpModule() *goja.Object {
	obj := e.runtime.NewObject()

	for _, verb := range []string{"get", "post", "put", "delete"} {
		verb := verb
		method := strings.ToUpper(verb)
		e.mustSet(obj, verb, func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 1 {
				panic(e.runtime.NewTypeError("http." + verb + " requires url"))
			}
			return e.fetch(method, call.Arguments[0].String(), optionsArg(call, 1))
		})
	}

	e.mustSet(obj, "request", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(e.runtime.NewTypeError("http.request requires method and url"))
		}
		return e.fetch(call.Arguments[0].String(), call.Arguments[1].String(), optionsArg(call, 2))
	})

	return obj
}

// mustSet sets a property on a script object, panicking into the runtime on
// failure so the error surfaces as a JS exception.
func (e *Engine) mustSet(obj *goja.Object, key string, value interface{}) {
	if err := obj.Set(key, value); err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("failed to set %s: %v", key, err)))
	}
}

// optionsArg returns the argument at idx, or nil when absent.
func optionsArg(call goja.FunctionCall, idx int) goja.Value {
	if len(call.Arguments) > idx {
		return call.Arguments[idx]
	}
	return nil
}

// requestOptions is the decoded options argument of an http call.
type requestOptions struct {
	body    io.Reader
	headers map[string]string
	timeout time.Duration
}

// decodeOptions exports the JS options object. An object body is serialized
// as JSON and defaults the Content-Type; explicit headers win.
func decodeOptions(v goja.Value) requestOptions {
	opts := requestOptions{
		headers: make(map[string]string),
		timeout: defaultHTTPTimeout,
	}
	if v == nil || goja.IsUndefined(v) {
		return opts
	}
	raw, ok := v.Export().(map[string]interface{})
	if !ok {
		return opts
	}

	switch body := raw["body"].(type) {
	case string:
		opts.body = strings.NewReader(body)
	case map[string]interface{}:
		data, _ := json.Marshal(body)
		opts.body = bytes.NewReader(data)
		opts.headers["Content-Type"] = "application/json"
	}

	if hs, ok := raw["headers"].(map[string]interface{}); ok {
		for k, hv := range hs {
			opts.headers[k] = fmt.Sprintf("%v", hv)
		}
	}

	switch t := raw["timeout"].(type) {
	case int64:
		opts.timeout = time.Duration(t) * time.Millisecond
	case float64:
		opts.timeout = time.Duration(t) * time.Millisecond
	}

	return opts
}

// fetch performs the request and returns a response object with status, ok,
// body, headers and, when the body parses as JSON, a json property.
func (e *Engine) fetch(method, rawURL string, optsVal goja.Value) goja.Value {
	opts := decodeOptions(optsVal)

	req, err := http.NewRequest(method, rawURL, opts.body)
	if err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("failed to create request: %v", err)))
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("HTTP request failed: %v", err)))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("failed to read response: %v", err)))
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	out := e.runtime.NewObject()
	e.mustSet(out, "status", resp.StatusCode)
	e.mustSet(out, "ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	e.mustSet(out, "body", string(data))
	e.mustSet(out, "headers", headers)

	var parsed map[string]interface{}
	if json.Unmarshal(data, &parsed) == nil {
		e.mustSet(out, "json", parsed)
	} else {
		e.mustSet(out, "json", goja.Null())
	}

	return out
}
