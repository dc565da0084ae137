package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alertsFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Google アラート - 日産</title>
  <entry>
    <title type="html">&lt;b&gt;日産&lt;/b&gt;、新型リーフ発売</title>
    <link href="https://www.google.com/url?rct=j&amp;sa=t&amp;url=https://news.example.jp/a/1&amp;ct=ga"/>
    <published>2025-08-20T06:01:00Z</published>
    <updated>2025-08-20T06:01:00Z</updated>
  </entry>
  <entry>
    <title>Plain headline</title>
    <link href="https://news.example.jp/a/2"/>
    <author><name>Example Times</name></author>
    <updated>2025-08-20T07:30:00Z</updated>
  </entry>
</feed>`

func TestFetch_AtomAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(alertsFeed))
	}))
	defer srv.Close()

	rows, err := NewFetcher(srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "日産、新型リーフ発売", rows[0].Title)
	assert.Equal(t, "https://news.example.jp/a/1", rows[0].URL)
	assert.Equal(t, "Google アラート - 日産", rows[0].Attribution)
	posted, ok := rows[0].PostedAt.(time.Time)
	require.True(t, ok)
	assert.True(t, posted.Equal(time.Date(2025, 8, 20, 6, 1, 0, 0, time.UTC)))

	assert.Equal(t, "Plain headline", rows[1].Title)
	assert.Equal(t, "Example Times", rows[1].Attribution)
	assert.NotNil(t, rows[1].PostedAt)
}

func TestFetch_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.Client()).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestUnwrapLink(t *testing.T) {
	cases := map[string]string{
		"https://www.google.com/url?rct=j&url=https://a.example/x&ct=ga": "https://a.example/x",
		"https://www.google.co.jp/url?q=https://b.example/y":             "https://b.example/y",
		"https://www.google.com/search?q=https://c.example":              "https://www.google.com/search?q=https://c.example",
		"https://news.example.jp/url?url=https://d.example":              "https://news.example.jp/url?url=https://d.example",
		" https://e.example/z ":                                          "https://e.example/z",
	}
	for in, want := range cases {
		assert.Equal(t, want, UnwrapLink(in), in)
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Nissan & Honda talks", PlainText("<b>Nissan</b> &amp; Honda\n  talks"))
	assert.Equal(t, "no markup", PlainText(" no   markup "))
}
