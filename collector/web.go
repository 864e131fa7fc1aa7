package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/nlp"
)

const (
	webConfidence      = 0.7
	maxContentRunes    = 5000
	descriptionRunes   = 200
	maxPageBytes       = 2 << 20
	defaultUserAgent   = "goknow/0.1 (educational purposes)"
	defaultWebTimeout  = 10 * time.Second
	defaultPoliteDelay = time.Second
)

// DefaultSeedURLs are fetched when no seed URLs are configured.
var DefaultSeedURLs = []string{
	"https://vi.wikipedia.org/wiki/Trí_tuệ_nhân_tạo",
	"https://www.python.org/doc/",
	"https://github.com/topics/artificial-intelligence",
	"https://stackoverflow.com/questions/tagged/machine-learning",
	"https://www.kaggle.com/competitions",
}

// DefaultTrustedDomains limits which hosts the web source will fetch.
var DefaultTrustedDomains = []string{
	"wikipedia.org", "python.org", "github.com", "stackoverflow.com",
}

var contentClassRe = regexp.MustCompile(`content|main|article`)

// WebConfig configures the web source. A seed URL may contain the
// placeholder {query}, replaced by the path-escaped question.
type WebConfig struct {
	SeedURLs       []string      `json:"seed_urls" yaml:"seed_urls"`
	TrustedDomains []string      `json:"trusted_domains" yaml:"trusted_domains"`
	UserAgent      string        `json:"user_agent" yaml:"user_agent"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
	// Delay and Jitter space out successive fetches.
	Delay  time.Duration `json:"delay" yaml:"delay"`
	Jitter time.Duration `json:"jitter" yaml:"jitter"`
}

// DefaultWebConfig returns the web source defaults.
func DefaultWebConfig() WebConfig {
	return WebConfig{
		SeedURLs:       DefaultSeedURLs,
		TrustedDomains: DefaultTrustedDomains,
		UserAgent:      defaultUserAgent,
		Timeout:        defaultWebTimeout,
		Delay:          defaultPoliteDelay,
		Jitter:         defaultPoliteDelay,
	}
}

// WebSource scrapes pages from a fixed list of candidate URLs.
type WebSource struct {
	cfg    WebConfig
	client *http.Client
	cache  *Cache
	logger *zap.Logger
}

// NewWebSource creates a web source. cache may be nil.
func NewWebSource(cfg WebConfig, cache *Cache, logger *zap.Logger) *WebSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebTimeout
	}
	if len(cfg.SeedURLs) == 0 {
		cfg.SeedURLs = DefaultSeedURLs
	}
	return &WebSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		logger: logger,
	}
}

func (w *WebSource) Name() string { return "web" }

// Collect fetches candidate pages until max records are built. Pages that
// fail to load or yield no text are skipped.
func (w *WebSource) Collect(ctx context.Context, query string, max int) ([]learner.Record, error) {
	if max <= 0 {
		max = 1
	}
	urls := w.candidates(query, max*2)
	if len(urls) == 0 {
		w.logger.Warn("no trusted candidate urls", zap.String("query", query))
		return nil, nil
	}

	var records []learner.Record
	for _, u := range urls {
		if len(records) >= max {
			break
		}
		if err := ctx.Err(); err != nil {
			return records, err
		}

		rec, cached, err := w.scrape(ctx, u)
		if err != nil {
			w.logger.Warn("scrape failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if rec == nil {
			continue
		}
		records = append(records, *rec)

		if !cached {
			if err := sleep(ctx, jitter(w.cfg.Delay, w.cfg.Jitter)); err != nil {
				return records, err
			}
		}
	}

	w.logger.Info("web collection finished", zap.String("query", query), zap.Int("records", len(records)))
	return records, nil
}

// candidates expands the seed URLs for query and keeps at most limit
// valid URLs on trusted hosts.
func (w *WebSource) candidates(query string, limit int) []string {
	var out []string
	for _, seed := range w.cfg.SeedURLs {
		u := strings.ReplaceAll(seed, "{query}", url.PathEscape(strings.TrimSpace(query)))
		if !nlp.ValidURL(u) {
			w.logger.Warn("invalid seed url", zap.String("url", u))
			continue
		}
		if !w.trusted(u) {
			continue
		}
		out = append(out, u)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (w *WebSource) trusted(raw string) bool {
	if len(w.cfg.TrustedDomains) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, d := range w.cfg.TrustedDomains {
		if strings.Contains(u.Host, d) {
			return true
		}
	}
	return false
}

func (w *WebSource) scrape(ctx context.Context, pageURL string) (*learner.Record, bool, error) {
	body, cached := w.cache.Get(pageURL)
	if !cached {
		var err error
		body, err = w.fetch(ctx, pageURL)
		if err != nil {
			return nil, false, err
		}
		if err := w.cache.Put(pageURL, body); err != nil {
			w.logger.Warn("fetch cache write failed", zap.String("url", pageURL), zap.Error(err))
		}
	}

	page, err := extractPage(body)
	if err != nil {
		return nil, cached, fmt.Errorf("parsing html: %w", err)
	}
	if page.title == "" && page.content == "" {
		return nil, cached, nil
	}

	host := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Host
	}

	rec := &learner.Record{
		Title:      page.title,
		Content:    page.content,
		URL:        pageURL,
		Source:     host,
		Confidence: learner.Float(webConfidence),
	}
	if page.title != "" {
		rec.Entities = []learner.Entity{{
			Name:        page.title,
			Type:        "concept",
			Description: nlp.Truncate(page.content, descriptionRunes),
		}}
	}
	return rec, cached, nil
}

func (w *WebSource) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.8,en-US;q=0.5,en;q=0.3")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

type page struct {
	title   string
	content string
}

// extractPage pulls the title and the main text out of an HTML document.
// The main text is the largest article, main or div element whose class
// mentions content, main or article; failing that, every paragraph.
func extractPage(body []byte) (page, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return page{}, err
	}

	var p page
	var best string
	var paragraphs []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Title:
				if p.title == "" {
					p.title = nlp.CleanText(textOf(n, " "))
				}
			case atom.Article, atom.Main, atom.Div:
				if contentClassRe.MatchString(attr(n, "class")) {
					if t := textOf(n, "\n"); len([]rune(t)) > len([]rune(best)) {
						best = t
					}
				}
			case atom.P:
				if t := textOf(n, " "); t != "" {
					paragraphs = append(paragraphs, t)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	content := best
	if content == "" {
		content = strings.Join(paragraphs, "\n")
	}
	p.content = nlp.Truncate(nlp.CleanText(content), maxContentRunes)
	return p, nil
}

// textOf joins the trimmed text nodes under n with sep, skipping scripts
// and styles. Markup left inside text nodes (escaped code samples, raw
// noscript bodies) is stripped.
func textOf(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		case n.Type == html.TextNode:
			if t := strings.TrimSpace(nlp.StripHTML(n.Data)); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
