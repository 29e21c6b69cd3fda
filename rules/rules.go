// Package rules maps the current page url to an extraction strategy. The
// table is priority-ordered configuration data: site specific rules are
// tried first, in order, before the generic anchor fallback.
package rules

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// An Item is one extracted result. Its shape is owned by the rule that
// produced it; consumers must treat the fields as site-dependent.
type Item map[string]string

// A Rule describes how to turn a rendered page into items. Rules with a
// Script are evaluated inside the page context and must be self-contained
// expressions returning an array of objects. Rules without a Script are
// applied host-side to the captured document via Selector.
type Rule struct {
	Name          string   `yaml:"name"`
	Match         []string `yaml:"match,omitempty"`
	ReadySelector string   `yaml:"ready_selector,omitempty"`
	Script        string   `yaml:"script,omitempty"`
	Selector      string   `yaml:"selector,omitempty"`
	MinTextLen    int      `yaml:"min_text_len,omitempty"`
	// ScrollIterations overrides the default pre-extraction scroll pass for
	// lazy-loading-heavy pages. 0 means the configured default.
	ScrollIterations int `yaml:"scroll_iterations,omitempty"`
}

// InPage reports whether the rule runs inside the page context.
func (r Rule) InPage() bool {
	return r.Script != ""
}

const amazonScript = `Array.from(document.querySelectorAll("div[data-component-type='s-search-result']"))
	.map((el) => ({
		title: el.querySelector("h2 span")?.innerText?.trim(),
		price: el.querySelector(".a-price-whole")?.innerText?.replace(/\s/g, ""),
		url: el.querySelector("h2 a")?.href,
		image: el.querySelector("img")?.src,
	}))
	.filter((item) => item.title)`

const zillowScript = `Array.from(document.querySelectorAll("article"))
	.map((card) => ({
		title: card.querySelector("address")?.innerText?.trim(),
		price: card.querySelector("[data-test='property-price']")?.innerText?.trim(),
		url: card.querySelector("a")?.href,
		image: card.querySelector("img")?.src,
	}))
	.filter((card) => card.title)`

const hackerNewsScript = `Array.from(document.querySelectorAll(".athing"))
	.map((row) => ({
		title: row.querySelector(".titleline > a")?.innerText?.trim(),
		url: row.querySelector(".titleline > a")?.href,
	}))
	.filter((row) => row.title)`

// genericRule collects anchors with non-trivial text. It ignores the domain
// entirely and only fires when no site rule matches.
var genericRule = Rule{
	Name:       "generic",
	Selector:   "a",
	MinTextLen: 20,
}

func defaultRules() []Rule {
	return []Rule{
		{
			Name:          "amazon",
			Match:         []string{"amazon."},
			ReadySelector: "div[data-component-type='s-search-result']",
			Script:        amazonScript,
		},
		{
			Name:             "zillow",
			Match:            []string{"zillow.com"},
			ReadySelector:    "article",
			Script:           zillowScript,
			ScrollIterations: 30, // listing cards lazy-load aggressively
		},
		{
			Name:          "hackernews",
			Match:         []string{"news.ycombinator.com"},
			ReadySelector: ".athing",
			Script:        hackerNewsScript,
		},
	}
}

// Table is the priority-ordered rule table. Resolution is a pure function
// of the url string.
type Table struct {
	rules []Rule
}

func DefaultTable() *Table {
	return &Table{rules: defaultRules()}
}

// LoadFile reads a rule table from a yml file, keeping the rules in file
// order. The generic fallback stays built in.
func LoadFile(path string) (*Table, error) {
	var fileConfig struct {
		Rules []Rule `yaml:"rules"`
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(content, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if len(fileConfig.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	return &Table{rules: fileConfig.Rules}, nil
}

// Resolve returns the first rule whose match substrings appear in the url,
// falling back to the generic anchor rule.
func (t *Table) Resolve(pageURL string) Rule {
	lowered := strings.ToLower(pageURL)
	for _, r := range t.rules {
		for _, m := range r.Match {
			if strings.Contains(lowered, strings.ToLower(m)) {
				return r
			}
		}
	}
	return genericRule
}

// Generic builds a host-side rule for an explicit selector override. No
// minimum text length applies, the caller asked for exactly this selector.
func Generic(selector string) Rule {
	return Rule{Name: "custom", Selector: selector}
}

// ForTarget resolves a named shortcut to a host-side rule.
func ForTarget(target string) (Rule, bool) {
	switch strings.ToLower(target) {
	case "headlines":
		return Rule{Name: "headlines", Selector: "h1, h2, h3", MinTextLen: 10}, true
	case "links":
		return Rule{Name: "links", Selector: "a", MinTextLen: 5}, true
	}
	return Rule{}, false
}

// ExtractFromHTML applies a host-side rule to a captured document, mapping
// each matched element to {text, href}. Relative hrefs are resolved against
// the page url.
func ExtractFromHTML(htmlStr, pageURL string, rule Rule) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	items := []Item{}
	doc.Find(rule.Selector).Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) < rule.MinTextLen {
			return
		}
		item := Item{"text": text}
		if href, ok := s.Attr("href"); ok && href != "" {
			item["href"] = resolveHref(base, href)
		}
		items = append(items, item)
	})
	return items, nil
}

func resolveHref(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Sanitize drops items lacking a primary field and truncates to limit.
// An element missing any other mapped field is kept with the field absent.
func Sanitize(items []Item, limit int) []Item {
	cleaned := []Item{}
	for _, item := range items {
		if strings.TrimSpace(item["title"]) == "" && strings.TrimSpace(item["text"]) == "" {
			continue
		}
		cleaned = append(cleaned, item)
		if limit > 0 && len(cleaned) == limit {
			break
		}
	}
	return cleaned
}
