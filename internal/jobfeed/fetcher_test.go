package jobfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Go Jobs</title>
    <link>https://jobs.example.com</link>
    <item>
      <title>Senior Go Engineer at Acme</title>
      <link>https://jobs.example.com/1</link>
      <description><![CDATA[<p>Build <b>distributed</b> systems.</p><script>alert(1)</script><ul><li>Go</li><li>SQL &amp; Postgres</li></ul>]]></description>
      <pubDate>Mon, 01 Jul 2024 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Globex: Platform Engineer</title>
      <link>https://jobs.example.com/2</link>
      <description>Kubernetes</description>
    </item>
    <item>
      <title>Site Reliability Engineer</title>
      <link>https://jobs.example.com/3</link>
      <description>On call</description>
    </item>
  </channel>
</rss>`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "dossier")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	p, err := NewFetcher(nil).Fetch(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "Go Jobs", p.Title)
	require.Len(t, p.Postings, 3)

	first := p.Postings[0]
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "Senior Go Engineer", first.Position)
	assert.Equal(t, "https://jobs.example.com/1", first.Link)
	assert.NotContains(t, first.Description, "<")
	assert.NotContains(t, first.Description, "alert")
	assert.Contains(t, first.Description, "Build distributed systems.")
	assert.Contains(t, first.Description, "SQL & Postgres")
	require.NotNil(t, first.Published)
	assert.Equal(t, 2024, first.Published.Year())

	assert.Equal(t, "Globex", p.Postings[1].Company)
	assert.Equal(t, "Platform Engineer", p.Postings[1].Position)
	assert.Equal(t, "", p.Postings[2].Company)
}

func TestFetch_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	p, err := NewFetcher(nil).Fetch(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	assert.Len(t, p.Postings, 1)
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(nil).Fetch(context.Background(), srv.URL, 0)
	assert.ErrorContains(t, err, "status 404")
}

func TestFetch_NotAFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nope</body></html>")
	}))
	defer srv.Close()

	_, err := NewFetcher(nil).Fetch(context.Background(), srv.URL, 0)
	assert.Error(t, err)
}

func TestClean_DecodesEntities(t *testing.T) {
	f := NewFetcher(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"numeric apostrophe", "<p>We&#39;re hiring</p>", "We're hiring"},
		{"named accent", "Caf&eacute; team", "Café team"},
		{"hex dash", "Go &#x2014; remote", "Go \u2014 remote"},
		{"nbsp collapses", "Senior&nbsp;&nbsp;Engineer", "Senior Engineer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Clean(tt.in))
		})
	}
}
