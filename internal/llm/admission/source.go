package admission

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Source produces a premium table.
type Source interface {
	Fetch(ctx context.Context) (PremiumModelCache, error)
	Name() string
}

// multipliersSectionID is the anchor of the "Model multipliers" heading in
// the billing docs.
const multipliersSectionID = "model-multipliers"

// maxDocBytes bounds how much of the docs page is read.
const maxDocBytes = 4 << 20

var (
	// ErrTableNotFound means the docs page had no model multipliers table.
	ErrTableNotFound = errors.New("model multipliers table not found")
	// ErrNoModels means the table was found but no row could be parsed.
	ErrNoModels = errors.New("no models parsed from multipliers table")
)

// displayAliases maps documentation display names to API model IDs where
// the mechanical lower-case-and-hyphenate rule gets it wrong.
var displayAliases = map[string]string{
	"claude sonnet 3.5": "claude-3.5-sonnet",
	"claude sonnet 3.7": "claude-3.7-sonnet",
	"gpt 5 mini":        "gpt-5-mini",
	"gpt 5 codex":       "gpt-5-codex",
	"gpt 4.1":           "gpt-4.1",
	"gpt 4o":            "gpt-4o",
	"gpt 5":             "gpt-5",
}

// DocsSource scrapes the Copilot billing documentation.
type DocsSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewDocsSource creates a DocsSource. A nil client selects a default client.
func NewDocsSource(url string, client *http.Client, timeout time.Duration) *DocsSource {
	if client == nil {
		client = &http.Client{}
	}
	return &DocsSource{url: url, client: client, timeout: timeout}
}

// Name implements Source.
func (s *DocsSource) Name() string { return s.url }

// Fetch implements Source.
func (s *DocsSource) Fetch(ctx context.Context) (PremiumModelCache, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return PremiumModelCache{}, fmt.Errorf("failed to build docs request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return PremiumModelCache{}, fmt.Errorf("failed to fetch premium docs: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return PremiumModelCache{}, fmt.Errorf("premium docs returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return PremiumModelCache{}, fmt.Errorf("failed to read premium docs: %w", err)
	}
	return ParseMultipliersTable(body)
}

// ParseMultipliersTable extracts the model multiplier table from a Copilot
// billing docs page. Rows are "model | paid multiplier | free multiplier";
// only the paid column is used. Rows whose multiplier is not numeric
// ("Not applicable") are skipped.
func ParseMultipliersTable(page []byte) (PremiumModelCache, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return PremiumModelCache{}, fmt.Errorf("failed to parse premium docs: %w", err)
	}

	table := findMultipliersTable(doc)
	if table == nil {
		return PremiumModelCache{}, ErrTableNotFound
	}

	var rendered bytes.Buffer
	if err := html.Render(&rendered, table); err != nil {
		return PremiumModelCache{}, fmt.Errorf("failed to render multipliers table: %w", err)
	}
	sum := sha256.Sum256(rendered.Bytes())

	multipliers := make(map[string]float64)
	for tr := range descendants(table, atom.Tr) {
		name, value, ok := rowCells(tr)
		if !ok {
			continue
		}
		id := NormalizeDisplayName(name)
		if id == "" {
			continue
		}
		m, ok := parseMultiplier(value)
		if !ok {
			continue
		}
		multipliers[id] = m
	}
	if len(multipliers) == 0 {
		return PremiumModelCache{}, ErrNoModels
	}

	return PremiumModelCache{
		Multipliers: multipliers,
		Source:      SourceDocs,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// findMultipliersTable returns the first table following the heading whose
// id is multipliersSectionID, in document order.
func findMultipliersTable(doc *html.Node) *html.Node {
	seenHeading := false
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		if !seenHeading {
			if isHeading(n.DataAtom) && attr(n, "id") == multipliersSectionID {
				seenHeading = true
			}
			continue
		}
		if n.DataAtom == atom.Table {
			return n
		}
	}
	return nil
}

func isHeading(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4:
		return true
	}
	return false
}

// rowCells returns the row header text and the first data cell's text.
func rowCells(tr *html.Node) (name, value string, ok bool) {
	var haveName, haveValue bool
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case c.DataAtom == atom.Th && !haveName:
			name, haveName = textOf(c), true
		case c.DataAtom == atom.Td && haveName && !haveValue:
			value, haveValue = textOf(c), true
		}
	}
	return name, value, haveName && haveValue
}

func descendants(n *html.Node, a atom.Atom) func(func(*html.Node) bool) {
	return func(yield func(*html.Node) bool) {
		for d := range n.Descendants() {
			if d.Type == html.ElementNode && d.DataAtom == a {
				if !yield(d) {
					return
				}
			}
		}
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// parseMultiplier accepts "1", "0.33", "10x" and "1×".
func parseMultiplier(cell string) (float64, bool) {
	cell = strings.TrimSpace(strings.ToLower(cell))
	cell = strings.TrimSuffix(cell, "x")
	cell = strings.TrimSuffix(cell, "×")
	m, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || m < 0 {
		return 0, false
	}
	return m, true
}

// NormalizeDisplayName maps a documentation display name such as
// "Claude Sonnet 4.5" to its API model ID, "claude-sonnet-4.5".
func NormalizeDisplayName(name string) string {
	key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if key == "" {
		return ""
	}
	if id, ok := displayAliases[key]; ok {
		return id
	}
	return strings.ReplaceAll(key, " ", "-")
}
