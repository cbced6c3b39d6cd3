// Package jobfeed reads job-board RSS and Atom feeds into posting previews
// that can prefill new applications.
package jobfeed

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const userAgent = "dossier/1.0 (+job feed preview)"

// Posting is one feed item rendered as a job posting.
type Posting struct {
	Title       string     `json:"title"`
	Company     string     `json:"company,omitempty"`
	Position    string     `json:"position"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Published   *time.Time `json:"published,omitempty"`
}

// Preview is a parsed feed.
type Preview struct {
	Title    string    `json:"title"`
	Link     string    `json:"link,omitempty"`
	Postings []Posting `json:"postings"`
}

type Fetcher struct {
	parser *gofeed.Parser
	client *http.Client
	policy *bluemonday.Policy
}

// NewFetcher returns a fetcher using client, or a client with a 30 second
// timeout when nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Fetcher{
		parser: parser,
		client: client,
		policy: bluemonday.StrictPolicy(),
	}
}

// Fetch downloads and parses the feed at url, returning at most limit
// postings (all when limit <= 0).
func (f *Fetcher) Fetch(ctx context.Context, url string, limit int) (*Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", url, err)
	}
	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}
	return f.preview(parsed, limit), nil
}

func (f *Fetcher) preview(feed *gofeed.Feed, limit int) *Preview {
	p := &Preview{Title: feed.Title, Link: feed.Link, Postings: []Posting{}}
	for _, item := range feed.Items {
		if limit > 0 && len(p.Postings) >= limit {
			break
		}
		desc := item.Content
		if desc == "" {
			desc = item.Description
		}
		company, position := splitTitle(item.Title)
		if company == "" && item.Author != nil {
			company = item.Author.Name
		}
		posting := Posting{
			Title:       item.Title,
			Company:     company,
			Position:    position,
			Link:        item.Link,
			Description: f.Clean(desc),
		}
		if item.PublishedParsed != nil {
			posting.Published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			posting.Published = item.UpdatedParsed
		}
		p.Postings = append(p.Postings, posting)
	}
	return p
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// Clean strips markup from a feed description, keeping paragraph breaks.
func (f *Fetcher) Clean(raw string) string {
	r := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n\n", "</li>", "\n")
	text := html.UnescapeString(f.policy.Sanitize(r.Replace(raw)))
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// splitTitle recognizes the common "Position at Company" and
// "Company: Position" item titles used by job boards.
func splitTitle(title string) (company, position string) {
	title = strings.TrimSpace(title)
	if i := strings.LastIndex(title, " at "); i > 0 {
		return strings.TrimSpace(title[i+4:]), strings.TrimSpace(title[:i])
	}
	if i := strings.Index(title, ": "); i > 0 {
		return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+2:])
	}
	return "", title
}
