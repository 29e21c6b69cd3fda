package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.amazon.com/s?k=mechanical+keyboard", "amazon"},
		{"https://www.amazon.de/s?k=tastatur", "amazon"},
		{"https://www.zillow.com/homes/for_sale/", "zillow"},
		{"https://news.ycombinator.com/", "hackernews"},
		{"https://NEWS.YCOMBINATOR.COM/newest", "hackernews"},
		{"https://blog.example/posts", "generic"},
		{"", "generic"},
	}
	for _, tt := range tests {
		if got := table.Resolve(tt.url).Name; got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	table := DefaultTable()
	url := "https://www.zillow.com/homes/"
	first := table.Resolve(url)
	for i := 0; i < 10; i++ {
		if got := table.Resolve(url); got.Name != first.Name {
			t.Fatalf("Resolve not idempotent: %q then %q", first.Name, got.Name)
		}
	}
}

func TestResolvePriorityOrder(t *testing.T) {
	table := &Table{rules: []Rule{
		{Name: "specific", Match: []string{"shop.example.com"}},
		{Name: "broad", Match: []string{"example.com"}},
	}}
	if got := table.Resolve("https://shop.example.com/items").Name; got != "specific" {
		t.Errorf("first matching rule must win, got %q", got)
	}
	if got := table.Resolve("https://www.example.com/").Name; got != "broad" {
		t.Errorf("got %q, want broad", got)
	}
}

const anchorsHTML = `<html><body>
<nav><a href="/home">Home</a></nav>
<main>
  <a href="/articles/writing-reliable-scrapers">Writing reliable scrapers for unreliable websites</a>
  <a href="https://other.example/guide">A complete guide to polite crawling etiquette</a>
  <a>An anchor without any href that still has quite long text</a>
</main>
</body></html>`

func TestExtractFromHTMLGeneric(t *testing.T) {
	items, err := ExtractFromHTML(anchorsHTML, "https://blog.example/", genericRule)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3 (short 'Home' anchor filtered): %v", len(items), items)
	}
	if got := items[0]["href"]; got != "https://blog.example/articles/writing-reliable-scrapers" {
		t.Errorf("relative href not resolved against page url, got %q", got)
	}
	if got := items[1]["href"]; got != "https://other.example/guide" {
		t.Errorf("absolute href mangled, got %q", got)
	}
	if _, ok := items[2]["href"]; ok {
		t.Error("anchor without href must not have an href field")
	}
	if items[2]["text"] == "" {
		t.Error("anchor without href must still carry its text")
	}
}

func TestExtractFromHTMLExplicitSelector(t *testing.T) {
	htmlStr := `<html><body><h2>Hi</h2><h2>Yo</h2></body></html>`
	items, err := ExtractFromHTML(htmlStr, "https://x.example/", Generic("h2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("explicit selectors must not apply a text length filter, got %d items", len(items))
	}
}

func TestSanitize(t *testing.T) {
	items := []Item{
		{"title": "kept by title", "price": "10"},
		{"text": "kept by text"},
		{"price": "13"},
		{"title": "  ", "text": ""},
		{"title": "another"},
		{"title": "one more"},
	}
	cleaned := Sanitize(items, 3)
	if len(cleaned) != 3 {
		t.Fatalf("got %d items, want 3", len(cleaned))
	}
	for _, item := range cleaned {
		if item["title"] == "" && item["text"] == "" {
			t.Errorf("item without primary field survived: %v", item)
		}
	}

	all := Sanitize(items, 0)
	if len(all) != 4 {
		t.Errorf("limit 0 must keep every valid item, got %d", len(all))
	}
}

func TestForTarget(t *testing.T) {
	if rule, ok := ForTarget("headlines"); !ok || rule.Selector != "h1, h2, h3" {
		t.Errorf("headlines target broken: %v %v", rule, ok)
	}
	if rule, ok := ForTarget("Links"); !ok || rule.Selector != "a" {
		t.Errorf("links target broken: %v %v", rule, ok)
	}
	if _, ok := ForTarget("sidebar"); ok {
		t.Error("unknown target must not resolve")
	}
}

func TestRuleInPage(t *testing.T) {
	if !DefaultTable().Resolve("https://www.amazon.com/").InPage() {
		t.Error("amazon rule must run in the page context")
	}
	if genericRule.InPage() {
		t.Error("generic rule must run host-side")
	}
}

func TestLoadFile(t *testing.T) {
	content := `rules:
  - name: docs
    match: ["docs.example"]
    ready_selector: ".doc"
    script: |
      Array.from(document.querySelectorAll('.doc')).map((el) => ({title: el.innerText}))
`
	path := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rule := table.Resolve("https://docs.example/getting-started")
	if rule.Name != "docs" || rule.ReadySelector != ".doc" || !rule.InPage() {
		t.Errorf("loaded rule broken: %+v", rule)
	}
	if got := table.Resolve("https://other.example/").Name; got != "generic" {
		t.Errorf("fallback lost after loading a file, got %q", got)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	empty := filepath.Join(t.TempDir(), "empty.yml")
	if err := os.WriteFile(empty, []byte("rules: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(empty); err == nil {
		t.Error("expected an error for a rules file without rules")
	}
}
