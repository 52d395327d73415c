package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	xhtml "golang.org/x/net/html"

	"github.com/kjstillabower/paddock-weather/internal/models"
	"github.com/kjstillabower/paddock-weather/internal/observability"
)

// DefaultAlertTitle replaces an empty item title.
const DefaultAlertTitle = "Alert"

// ErrFeedParse is returned when the alerts document is not a readable feed.
var ErrFeedParse = errors.New("alerts feed parse failed")

// AlertsClient fetches the regional weather warnings feed.
type AlertsClient interface {
	Alerts(ctx context.Context) ([]models.AlertItem, error)
}

// FeedClient reads an RSS or Atom warnings feed. Any other XML document is
// scanned for item elements.
type FeedClient struct {
	feedURL string
	timeout time.Duration
	client  *http.Client
	parser  *gofeed.Parser
}

func NewFeedClient(feedURL string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		feedURL: feedURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		parser:  gofeed.NewParser(),
	}
}

// SetTransport routes feed requests through rt.
func (f *FeedClient) SetTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Alerts returns every feed item in feed order. An empty feed is not an error.
func (f *FeedClient) Alerts(ctx context.Context) ([]models.AlertItem, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("alerts", "error").Inc()
		return nil, fmt.Errorf("alerts build request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("alerts", "error").Inc()
		observability.UpstreamDuration.WithLabelValues("alerts", "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("alerts request timeout: %w", err)
		}
		return nil, fmt.Errorf("alerts http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues("alerts", status).Inc()
	observability.UpstreamDuration.WithLabelValues("alerts", status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alerts read body: %w", err)
	}
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return scanItems(body)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}
	return mapFeed(feed), nil
}

func mapFeed(feed *gofeed.Feed) []models.AlertItem {
	items := make([]models.AlertItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := item.Title
		if title == "" {
			title = DefaultAlertTitle
		}
		items = append(items, models.AlertItem{
			Title:       title,
			Description: item.Description,
			Link:        item.Link,
		})
	}
	return items
}

var cdataSection = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

// scanItems reads item elements from an XML document with no recognised feed
// root. The document goes through the HTML parser, so CDATA sections are
// escaped first and link, a void element there, keeps its URL in the following
// text node.
func scanItems(body []byte) ([]models.AlertItem, error) {
	if !bytes.Contains(body, []byte("<")) {
		return nil, fmt.Errorf("%w: not an XML document", ErrFeedParse)
	}
	src := cdataSection.ReplaceAllStringFunc(string(body), func(m string) string {
		return html.EscapeString(cdataSection.FindStringSubmatch(m)[1])
	})
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedParse, err)
	}

	items := make([]models.AlertItem, 0)
	doc.Find("item").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("title").First().Text())
		if title == "" {
			title = DefaultAlertTitle
		}
		items = append(items, models.AlertItem{
			Title:       title,
			Description: strings.TrimSpace(item.Find("description").First().Text()),
			Link:        itemLink(item.Find("link").First()),
		})
	})
	return items, nil
}

func itemLink(link *goquery.Selection) string {
	if link.Length() == 0 {
		return ""
	}
	if text := strings.TrimSpace(link.Text()); text != "" {
		return text
	}
	if next := link.Nodes[0].NextSibling; next != nil && next.Type == xhtml.TextNode {
		return strings.TrimSpace(next.Data)
	}
	return ""
}
