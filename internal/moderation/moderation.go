// Package moderation consults an external content classifier before publish.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/validation"
)

// Verdict is the classifier's answer.
type Verdict string

const (
	VerdictSafe   Verdict = "SAFE"
	VerdictUnsafe Verdict = "UNSAFE"
)

// Classifier labels a title and excerpt.
type Classifier interface {
	Classify(ctx context.Context, title, excerpt string) (Verdict, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, title, excerpt string) (Verdict, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, title, excerpt string) (Verdict, error) {
	return f(ctx, title, excerpt)
}

// HTTPConfig configures the HTTP classifier.
type HTTPConfig struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

type httpClassifier struct {
	cfg HTTPConfig
}

// NewHTTPClassifier posts {title, excerpt} as JSON and expects {verdict}.
func NewHTTPClassifier(cfg HTTPConfig) Classifier {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &httpClassifier{cfg: cfg}
}

func (c *httpClassifier) Classify(ctx context.Context, title, excerpt string) (Verdict, error) {
	url := strings.TrimSpace(c.cfg.URL)
	if url == "" {
		return "", fmt.Errorf("moderation url is required")
	}
	body, err := json.Marshal(map[string]string{
		"title":   title,
		"excerpt": excerpt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal moderation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("moderation request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("moderation request status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode moderation response: %w", err)
	}
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(payload.Verdict))); v {
	case VerdictSafe, VerdictUnsafe:
		return v, nil
	default:
		return "", fmt.Errorf("unknown moderation verdict %q", payload.Verdict)
	}
}

// Gate applies the publish policy: only an explicit non-safe verdict blocks.
// A missing classifier, a failure or a timeout lets the content through.
type Gate struct {
	classifier Classifier
	timeout    time.Duration
	excerptLen int
}

// NewGate wraps classifier. A nil classifier approves everything.
func NewGate(classifier Classifier, timeout time.Duration, excerptLen int) *Gate {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if excerptLen <= 0 {
		excerptLen = 500
	}
	return &Gate{classifier: classifier, timeout: timeout, excerptLen: excerptLen}
}

// Check returns a policy-violation error when the classifier rejects the text.
func (g *Gate) Check(ctx context.Context, title, body string) error {
	if g == nil || g.classifier == nil {
		return nil
	}
	ctx, span := observability.StartServiceSpan(ctx, "ModerationGate", "Check")
	defer span.End()

	excerpt := validation.Excerpt(validation.StripTags(body), g.excerptLen)
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	verdict, err := g.classifier.Classify(cctx, title, excerpt)
	if err != nil {
		observability.ModerationChecks.WithLabelValues("unavailable").Inc()
		observability.Logger.WarnContext(ctx, "moderation unavailable, failing open",
			slog.String("error", err.Error()))
		return nil
	}
	if verdict != VerdictSafe {
		observability.ModerationChecks.WithLabelValues("unsafe").Inc()
		return models.NewPolicyViolationError("This content violates our community guidelines")
	}
	observability.ModerationChecks.WithLabelValues("safe").Inc()
	return nil
}
