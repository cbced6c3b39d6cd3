// Package webpage fetches a company website and reduces it to plain text.
package webpage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
)

// MaxChars bounds the stored page text.
const MaxChars = 20000

var ErrInvalidURL = errors.New("invalid URL")

// Page is the text content of a fetched page.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

type Fetcher struct {
	client *resty.Client
	policy *bluemonday.Policy
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; dossier/1.0)").
		SetHeader("Accept", "text/html,application/xhtml+xml")
	return &Fetcher{client: c, policy: bluemonday.StrictPolicy()}
}

// NormalizeURL adds an https scheme when missing and rejects anything that
// is not http(s).
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// Fetch downloads rawURL and returns its visible text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s returned status %d", target, resp.StatusCode())
	}
	ct := resp.Header().Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, fmt.Errorf("%s is not a web page (%s)", target, ct)
	}

	text, truncated := f.Text(resp.String())
	return &Page{
		URL:       target,
		Title:     pageTitle(resp.String()),
		Content:   text,
		Truncated: truncated,
	}, nil
}

var (
	dropBlocks = regexp.MustCompile(`(?is)<(script|style|noscript|svg|template|head)\b.*?</(script|style|noscript|svg|template|head)>`)
	blockEnds  = regexp.MustCompile(`(?i)</(p|div|section|article|li|h[1-6]|tr|header|footer|nav)>|<br\s*/?>`)
	spaces     = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlines   = regexp.MustCompile(`\s*\n\s*`)
	titleTag   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// Text strips markup, collapses whitespace and truncates to MaxChars.
func (f *Fetcher) Text(html string) (string, bool) {
	html = dropBlocks.ReplaceAllString(html, " ")
	html = blockEnds.ReplaceAllString(html, "\n")
	text := f.policy.Sanitize(html)
	text = unescape(text)
	text = spaces.ReplaceAllString(text, " ")
	text = strings.TrimSpace(newlines.ReplaceAllString(text, "\n"))

	runes := []rune(text)
	if len(runes) > MaxChars {
		return string(runes[:MaxChars]), true
	}
	return text, false
}

func pageTitle(html string) string {
	m := titleTag.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(unescape(bluemonday.StrictPolicy().Sanitize(m[1])))
}

var entities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&quot;", `"`, "&lt;", "<", "&gt;", ">", "&nbsp;", " ")

func unescape(s string) string { return entities.Replace(s) }
