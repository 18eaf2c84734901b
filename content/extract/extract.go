// Package extract turns a tracked content source into a plain-text snapshot.
// Each source names one of a closed set of extraction modes; the mode picks
// the strategy that walks the fetched document. There is deliberately no
// dynamic dispatch here: an unknown mode is a configuration bug and is
// rejected up front by Mode.Validate.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Mode selects an extraction strategy for a source.
type Mode string

const (
	// ModeEvents extracts the upcoming-events slider entries.
	ModeEvents Mode = "events"
	// ModeNews extracts the latest news paragraphs.
	ModeNews Mode = "news"
	// ModeCalendar extracts per-day event listings, following calendar links.
	ModeCalendar Mode = "calendar"
	// ModeLinks extracts the partner-resource link gallery.
	ModeLinks Mode = "links"
	// ModePhones extracts contact phone entries.
	ModePhones Mode = "phones"
	// ModeArticle extracts the readable article text of the whole page.
	ModeArticle Mode = "article"
)

// ErrUnknownMode reports a mode with no registered strategy.
var ErrUnknownMode = errors.New("unknown extraction mode")

// Validate reports whether the mode names a registered strategy.
func (m Mode) Validate() error {
	if _, ok := strategies[m]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
	return nil
}

type strategyFunc func(ctx context.Context, e *Extractor, doc *html.Node, base *url.URL) (string, error)

var strategies = map[Mode]strategyFunc{
	ModeEvents:   extractEvents,
	ModeNews:     extractNews,
	ModeCalendar: extractCalendar,
	ModeLinks:    extractLinks,
	ModePhones:   extractPhones,
	ModeArticle:  extractArticle,
}

// Extractor fetches source pages and applies extraction strategies.
type Extractor struct {
	client *http.Client
}

// New creates an Extractor. A nil client gets a default with a 30s timeout.
func New(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{client: client}
}

// FetchText downloads the source and returns its plain-text snapshot
// according to mode.
func (e *Extractor) FetchText(ctx context.Context, rawURL string, mode Mode) (string, error) {
	strategy, ok := strategies[mode]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse source url %q: %w", rawURL, err)
	}

	doc, err := e.fetchDocument(ctx, rawURL)
	if err != nil {
		return "", err
	}

	text, err := strategy(ctx, e, doc, base)
	if err != nil {
		return "", fmt.Errorf("extract %q from %s: %w", string(mode), rawURL, err)
	}
	return text, nil
}

func (e *Extractor) fetchDocument(ctx context.Context, rawURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// resolveURL joins a possibly relative href against the page base.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
