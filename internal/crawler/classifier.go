package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/local-job-scraper/internal/metrics"
)

// KeywordClassifier fetches a careers page and reports which job keywords
// appear in its visible text.
type KeywordClassifier struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewKeywordClassifier wires a classifier to a fetcher.
func NewKeywordClassifier(fetcher Fetcher, logger *zap.Logger) *KeywordClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{fetcher: fetcher, logger: logger}
}

// Match implements KeywordMatcher. Matched keywords come back in the order
// given, spelled as given. Matching is a case-insensitive substring test, so
// "estimator" matches "cost-estimator-ii".
func (k *KeywordClassifier) Match(ctx context.Context, careerURL string, keywords []string) Outcome[[]string] {
	page, err := k.fetcher.Fetch(ctx, careerURL)
	if err != nil {
		metrics.ObserveSiteFetch("careers", "error", 0)
		k.logger.Debug("careers page fetch failed", zap.String("url", careerURL), zap.Error(err))
		return Failed[[]string](fmt.Errorf("classify %s: %w", careerURL, err))
	}
	metrics.ObserveSiteFetch("careers", statusOutcome(page.StatusCode), page.ContentLength())

	text, err := VisibleText(page.Body)
	if err != nil {
		return Failed[[]string](TransportError("parse "+careerURL, err))
	}
	return Succeeded(MatchKeywords(text, keywords))
}

// MatchKeywords returns the keywords contained in text, preserving input
// order. Empty keywords never match.
func MatchKeywords(text string, keywords []string) []string {
	lowered := strings.ToLower(text)
	found := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(lowered, needle) {
			found = append(found, kw)
		}
	}
	return found
}

// skippedElements hold no rendered text.
var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// VisibleText flattens an HTML document into its rendered text, joining
// text nodes with single spaces.
func VisibleText(body []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}
