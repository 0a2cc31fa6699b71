package shopassistctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/tidwall/gjson"
)

// LineReader is the prompt source of the chat command.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
	// NewLineReader overrides the interactive readline prompt.
	NewLineReader func(prompt string) (LineReader, error)
}

type runner struct {
	client  *http.Client
	baseURL string
	apiKey  string
	render  bool
	style   string
	width   int
	raw     bool
	stdout  io.Writer
	stderr  io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("shopassistctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "shopassist API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	render := fs.Bool("render", false, "render answers as terminal markdown")
	style := fs.String("style", "auto", "markdown style when -render is set (auto, dark, light, notty)")
	width := fs.Int("width", 100, "word wrap width for rendered answers")
	raw := fs.Bool("json", false, "print the full JSON response of ask")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	r := &runner{
		client:  client,
		baseURL: strings.TrimRight(*baseURL, "/"),
		apiKey:  strings.TrimSpace(*apiKey),
		render:  *render,
		style:   *style,
		width:   *width,
		raw:     *raw,
		stdout:  stdout,
		stderr:  stderr,
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "health":
		return r.get(ctx, "/v1/health")
	case "ready":
		return r.get(ctx, "/v1/ready")
	case "schema":
		return r.get(ctx, "/v1/schema")
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		return r.ask(ctx, question)
	case "chat":
		newReader := defaults.NewLineReader
		if newReader == nil {
			newReader = newReadline
		}
		return r.chat(ctx, newReader)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func (r *runner) get(ctx context.Context, path string) int {
	code, body, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(r.stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	r.printJSON(body)
	return 0
}

func (r *runner) ask(ctx context.Context, question string) int {
	answer, body, err := r.postQuestion(ctx, question)
	if err != nil {
		_, _ = fmt.Fprintln(r.stderr, err)
		return 1
	}
	if r.raw {
		r.printJSON(body)
		return 0
	}
	r.printAnswer(answer)
	return 0
}

func (r *runner) chat(ctx context.Context, newReader func(string) (LineReader, error)) int {
	reader, err := newReader("you> ")
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "start prompt: %v\n", err)
		return 1
	}
	defer func() { _ = reader.Close() }()

	go func() {
		<-ctx.Done()
		_ = reader.Close()
	}()

	for {
		line, err := reader.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return 0
			}
			_, _ = fmt.Fprintf(r.stderr, "readline: %v\n", err)
			return 1
		}
		question := strings.TrimSpace(line)
		switch question {
		case "":
			continue
		case "exit", "quit":
			return 0
		}
		answer, _, err := r.postQuestion(ctx, question)
		if err != nil {
			_, _ = fmt.Fprintln(r.stderr, err)
			continue
		}
		r.printAnswer(answer)
	}
}

func (r *runner) postQuestion(ctx context.Context, question string) (string, []byte, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", nil, fmt.Errorf("encode question: %w", err)
	}
	code, body, err := r.do(ctx, http.MethodPost, "/v1/ask", payload)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		message := gjson.GetBytes(body, "message").String()
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		return "", body, fmt.Errorf("http %d: %s", code, message)
	}
	answer := gjson.GetBytes(body, "answer")
	if !answer.Exists() {
		return "", body, fmt.Errorf("response has no answer")
	}
	return answer.String(), body, nil
}

func (r *runner) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (r *runner) printAnswer(answer string) {
	if r.render {
		if rendered, err := renderMarkdown(answer, r.style, r.width); err == nil {
			_, _ = fmt.Fprint(r.stdout, rendered)
			return
		}
	}
	_, _ = fmt.Fprintln(r.stdout, answer)
}

func (r *runner) printJSON(body []byte) {
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(r.stdout, string(body))
	}
}

func renderMarkdown(text, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(text)
}

func newReadline(prompt string) (LineReader, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: shopassistctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema              GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask <question...>   POST /v1/ask and print the answer")
	_, _ = fmt.Fprintln(w, "  chat                interactive prompt; each line is sent to /v1/ask")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
