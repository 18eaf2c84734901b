package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const newsLimit = 7

// extractEvents walks the events slider and keeps dated entries within the
// next month.
func extractEvents(_ context.Context, _ *Extractor, doc *html.Node, _ *url.URL) (string, error) {
	slider := findByID(doc, "events-slider")
	if slider == nil {
		return "", nil
	}

	now := time.Now()
	monthLater := now.AddDate(0, 1, 0)

	var entries []string
	for _, link := range findAllByClass(slider, "one-link") {
		name := textContent(findFirstByClass(link, "caption"))
		dateText := textContent(findFirstByClass(link, "date"))
		if name == "" || dateText == "" {
			continue
		}

		date, err := time.Parse("2006-01-02", dateText)
		if err != nil {
			slog.Warn("events: unparseable date", "date", dateText, "event", name)
			continue
		}
		if date.After(monthLater) {
			continue
		}
		entries = append(entries, fmt.Sprintf("Событие: %s, дата: %s", name, date.Format("2006-01-02")))
	}
	return strings.Join(entries, "; "), nil
}

// extractNews collects the first few news paragraphs from the front page.
func extractNews(_ context.Context, _ *Extractor, doc *html.Node, _ *url.URL) (string, error) {
	var sb strings.Builder
	count := 0
	for _, item := range findAllByClass(doc, "item-content") {
		if count >= newsLimit {
			break
		}
		for _, p := range findAllByTag(item, "p") {
			text := textContent(p)
			if text == "" {
				continue
			}
			sb.WriteString("Новость: ")
			sb.WriteString(text)
			sb.WriteString(";")
			count++
			if count >= newsLimit {
				break
			}
		}
	}
	return sb.String(), nil
}

// extractCalendar finds linked dates in the calendar widget and follows each
// link to collect that day's event names.
func extractCalendar(ctx context.Context, e *Extractor, doc *html.Node, base *url.URL) (string, error) {
	var entries []string
	for _, cell := range findAllByClass(doc, "calendar-cell") {
		for _, a := range findAllByTag(cell, "a") {
			href := attr(a, "href")
			if href == "" {
				continue
			}
			dateText := textContent(a)
			dayURL := resolveURL(base, href)
			if dayURL == "" {
				continue
			}

			dayDoc, err := e.fetchDocument(ctx, dayURL)
			if err != nil {
				return "", err
			}

			var names []string
			for _, listItem := range findAllByClass(dayDoc, "list-item") {
				for _, item := range findAllByClass(listItem, "item") {
					if name := textContent(item); name != "" {
						names = append(names, name)
					}
				}
			}
			if len(names) > 0 {
				entries = append(entries, fmt.Sprintf("Дата: %s, События: %s", dateText, strings.Join(names, ", ")))
			}
		}
	}
	return strings.Join(entries, "; "), nil
}

// extractLinks collects the partner-resource gallery entries.
func extractLinks(_ context.Context, _ *Extractor, doc *html.Node, _ *url.URL) (string, error) {
	gallery := findByID(doc, "logos-gallery")
	if gallery == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, link := range findAllByClass(gallery, "one-link") {
		name := textContent(findFirstByClass(link, "caption"))
		ref := textContent(findFirstByClass(link, "link"))
		if name == "" || ref == "" {
			continue
		}
		fmt.Fprintf(&sb, "Ресурс: %s, Ссылка: %s;", name, ref)
	}
	return sb.String(), nil
}

// extractPhones collects contact entries from the contacts page.
func extractPhones(_ context.Context, _ *Extractor, doc *html.Node, _ *url.URL) (string, error) {
	var entries []string
	for _, span := range findAllByClass(doc, "phone") {
		if text := textContent(span); text != "" {
			entries = append(entries, text)
		}
	}
	return strings.Join(entries, "; "), nil
}

// extractArticle returns the readable main text of the page. Used for
// sections whose markup is plain content rather than a structured widget.
func extractArticle(_ context.Context, _ *Extractor, doc *html.Node, base *url.URL) (string, error) {
	article, err := readability.FromDocument(doc, base)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}
