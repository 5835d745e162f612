package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/glyphchat/internal/config"
)

func newClient(t *testing.T, endpoint string, pages int) *Client {
	t.Helper()
	c, err := New(config.WebSearchConfig{APIKey: "k", EngineID: "cx", Results: 3, ScrapePages: pages}, WithEndpoint(endpoint))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()
	if _, err := New(config.WebSearchConfig{APIKey: "k"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "prefers main",
			html: `<body><nav>menu</nav><main><h1>Title</h1><p>First</p><p>Second</p><script>x()</script></main><footer>foot</footer></body>`,
			want: "Title First Second",
		},
		{
			name: "article when no main",
			html: `<body><header>top</header><article><p>Body   text</p><aside>ad</aside></article></body>`,
			want: "Body text",
		},
		{
			name: "falls back to body",
			html: `<body><div>Plain <b>page</b></div><form><input value="x">Sign up</form><style>p{}</style></body>`,
			want: "Plain page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if err != nil {
				t.Fatal(err)
			}
			if got := ExtractText(doc); got != tt.want {
				t.Errorf("ExtractText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractText_Caps(t *testing.T) {
	t.Parallel()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<main>" + strings.Repeat("é", 3000) + "</main>"))
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(ExtractText(doc)); n != MaxPageText {
		t.Errorf("length = %d, want %d", n, MaxPageText)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" || q.Get("cx") != "cx" || q.Get("q") != "go generics" || q.Get("num") != "3" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"items":[
			{"title":" A ","link":"https://a.example","snippet":"first\n hit"},
			{"title":"B","link":"https://b.example","snippet":"second"},
			{"title":"C","link":"https://c.example","snippet":"third"},
			{"title":"D","link":"https://d.example","snippet":"fourth"}]}`)
	}))
	defer srv.Close()

	got, err := newClient(t, srv.URL, 0).Search(context.Background(), "  go generics ")
	if err != nil {
		t.Fatal(err)
	}
	want := []Result{
		{Title: "A", Link: "https://a.example", Snippet: "first hit"},
		{Title: "B", Link: "https://b.example", Snippet: "second"},
		{Title: "C", Link: "https://c.example", Snippet: "third"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 0).Search(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Errorf("err = %v", err)
	}
}

func TestSources_ScrapesTopPagesAndKeepsSnippets(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"items":[
			{"title":"Good","link":"%[1]s/good","snippet":"good snippet"},
			{"title":"Broken","link":"%[1]s/broken","snippet":"broken snippet"},
			{"title":"Skipped","link":"%[1]s/skipped","snippet":"skipped snippet"}]}`, base)
	})
	mux.HandleFunc("/good", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><main><p>Scraped article</p></main></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	mux.HandleFunc("/skipped", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("page beyond scrape limit was fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	sources, err := newClient(t, srv.URL+"/search", 2).Sources(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(sources))
	}
	if !sources[0].Scraped || sources[0].Text != "Scraped article" {
		t.Errorf("source 0 = %+v", sources[0])
	}
	if sources[1].Scraped || sources[1].Text != "broken snippet" {
		t.Errorf("source 1 = %+v", sources[1])
	}
	if sources[2].Scraped || sources[2].Text != "skipped snippet" {
		t.Errorf("source 2 = %+v", sources[2])
	}

	formatted := FormatSources(sources)
	if !strings.HasPrefix(formatted, "[1] Good ("+base+"/good)\nScraped article\n\n[2] Broken") {
		t.Errorf("FormatSources = %q", formatted)
	}
}
