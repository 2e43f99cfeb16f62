package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/devblac/dex-catalog/internal/config"
	"github.com/devblac/dex-catalog/internal/report"
)

// Payload is the data passed to sink templates.
type Payload struct {
	report.Summary
	ConflictKeys []string
	Report       *report.Report
}

// NewPayload builds the template data for a finished run.
func NewPayload(r *report.Report) Payload {
	p := Payload{Summary: r.Summary(), Report: r}
	for _, c := range r.Conflicts {
		p.ConflictKeys = append(p.ConflictKeys, c.Key)
	}
	return p
}

// Sender delivers one rendered payload. It returns the HTTP status code
// when a response was received.
type Sender interface {
	Send(ctx context.Context, payload Payload) (int, error)
}

const defaultTemplate = `dex-catalog run {{.RunID}}: {{.Status}}
files: written={{.Files.Written}} removed={{.Files.Removed}} failed={{.Files.Failed}}
{{- if .FailedAdapters}}
failed adapters: {{join .FailedAdapters ", "}}{{end}}
{{- if .ConflictKeys}}
conflicts: {{join .ConflictKeys ", "}}{{end}}`

type httpSender struct {
	url     string
	method  string
	render  *template.Template
	client  *http.Client
	headers map[string]string
}

// NewWebhookSender builds a generic HTTP sink.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	return &httpSender{
		url:     url,
		method:  strings.ToUpper(method),
		render:  t,
		client:  defaultClient(),
		headers: headers,
	}, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return NewWebhookSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

// NewTeamsSender builds a Teams-compatible webhook sink.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	// Teams accepts simple {text: "..."} payloads.
	return NewWebhookSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

// Build constructs the sender described by cfg.
func Build(cfg config.Sink) (Sender, error) {
	switch strings.ToLower(cfg.Type) {
	case "slack":
		return NewSlackSender(cfg.WebhookURL, cfg.Template)
	case "teams":
		return NewTeamsSender(cfg.WebhookURL, cfg.Template)
	case "webhook":
		return NewWebhookSender(cfg.URL, cfg.Method, cfg.Template, map[string]string{
			"Content-Type": "application/json",
		})
	default:
		return nil, fmt.Errorf("sink %s: unsupported type %q", cfg.ID, cfg.Type)
	}
}

func (s *httpSender) Send(ctx context.Context, payload Payload) (int, error) {
	bodyStr, err := executeTemplate(s.render, payload)
	if err != nil {
		return 0, err
	}
	reqBody, err := json.Marshal(map[string]string{
		"text": bodyStr,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("sink http status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_addr": func(addr string) string {
			if len(addr) <= 10 {
				return addr
			}
			return addr[:6] + "..." + addr[len(addr)-4:]
		},
		"join": strings.Join,
	}
	t, err := template.New("msg").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 8 * time.Second,
	}
}
