package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
	Out       io.Writer
}

// apiError es el cuerpo de error del servicio.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status=%d", e.Status)
	}
	return fmt.Sprintf("%s (status=%d): %s", e.Code, e.Status, e.Message)
}

func (c *client) do(ctx context.Context, method, path string, in any, bearer bool) (int, []byte, error) {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer && c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

// call hace el request y decodifica out si la respuesta es 2xx. Cualquier
// otro status vuelve como *apiError.
func (c *client) call(ctx context.Context, method, path string, in, out any, bearer bool) error {
	status, body, err := c.do(ctx, method, path, in, bearer)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		ae := &apiError{Status: status}
		_ = json.Unmarshal(body, ae)
		return ae
	}
	if out != nil && len(body) > 0 {
		return json.Unmarshal(body, out)
	}
	return nil
}

func (c *client) print(v any) {
	if c.OutFormat == "json" {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(c.Out, string(p))
		return
	}
	fmt.Fprintf(c.Out, "%+v\n", v)
}

func (c *client) logf(format string, args ...any) {
	if c.OutFormat == "json" {
		return
	}
	fmt.Fprintf(c.Out, format+"\n", args...)
}
