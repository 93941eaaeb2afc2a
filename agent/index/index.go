// Package index provides local keyword-scored retrieval indexes over the
// four knowledge domains. Each index satisfies contract.Retriever: a query
// plus result count in, ranked matches out, no mutation surface. The offline
// vector-index build pipeline is a separate concern; this package only reads
// its JSON metadata artifacts.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	contractx "github.com/alitalabs/alita/agent/contract"
)

const defaultK = 5

const (
	catalogFile = "product_catalog.json"
	faqFile     = "product_faqs.json"
	policyFile  = "company_policy.json"
	ordersFile  = "order_database.json"
)

// Product is one catalog row.
type Product struct {
	ProductID        string  `json:"product_id"`
	ProductName      string  `json:"product_name"`
	Category         string  `json:"category"`
	Description      string  `json:"description"`
	Price            float64 `json:"price"`
	Rating           float64 `json:"rating"`
	DeliveryTimeDays int     `json:"delivery_time_days"`
	ReturnEligible   *bool   `json:"return_eligible,omitempty"`
}

type faqProduct struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	FAQs        []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"faqs"`
}

type scoredDoc struct {
	score   float64
	id      string
	payload map[string]any
}

func rank(scored []scoredDoc, k int) []contractx.RetrievalMatch {
	if k <= 0 {
		k = defaultK
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	matches := make([]contractx.RetrievalMatch, 0, len(scored))
	for _, doc := range scored {
		matches = append(matches, contractx.RetrievalMatch{
			DocumentID: doc.id,
			Score:      doc.score,
			Payload:    doc.payload,
		})
	}
	return matches
}

func loadJSON(path string, target any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index metadata %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode index metadata %s: %w", path, err)
	}
	return nil
}

/* ------------------------------- catalog ------------------------------- */

type CatalogIndex struct {
	products []Product
}

var _ contractx.Retriever = (*CatalogIndex)(nil)

func LoadCatalog(path string) (*CatalogIndex, error) {
	var products []Product
	if err := loadJSON(path, &products); err != nil {
		return nil, err
	}
	return &CatalogIndex{products: products}, nil
}

func (i *CatalogIndex) Search(_ context.Context, query string, k int) ([]contractx.RetrievalMatch, error) {
	constraints := ParseConstraints(query)
	cleaned := normalizeQuery(constraints.CleanedQuery)
	if cleaned == "" {
		return nil, nil
	}

	var scored []scoredDoc
	for _, p := range i.products {
		score := scoreField(cleaned, p.ProductName, 3)
		score += scoreField(cleaned, p.ProductID, 2)
		score += scoreField(cleaned, p.Category, 2)
		score += scoreField(cleaned, p.Description, 1)
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredDoc{score: score, id: p.ProductID, payload: productPayload(p)})
	}

	matches := rank(scored, k)
	matches = filterCatalog(matches, constraints)
	sortCatalog(matches, constraints.Sort)
	return matches, nil
}

// Categories lists up to limit distinct catalog categories in file order,
// used for "not found" suggestions.
func (i *CatalogIndex) Categories(limit int) []string {
	var seen []string
	for _, p := range i.products {
		if p.Category == "" || contains(seen, p.Category) {
			continue
		}
		seen = append(seen, p.Category)
		if len(seen) >= limit {
			break
		}
	}
	return seen
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func productPayload(p Product) map[string]any {
	payload := map[string]any{
		"domain":             "catalog",
		"product_id":         p.ProductID,
		"product_name":       p.ProductName,
		"category":           p.Category,
		"description":        p.Description,
		"price":              p.Price,
		"rating":             p.Rating,
		"delivery_time_days": p.DeliveryTimeDays,
	}
	if p.ReturnEligible != nil {
		payload["return_eligible"] = *p.ReturnEligible
	}
	return payload
}

func filterCatalog(matches []contractx.RetrievalMatch, c Constraints) []contractx.RetrievalMatch {
	if !c.HasMaxPrice && !c.HasMinPrice && !c.HasMinRating && c.Category == "" {
		return matches
	}
	filtered := matches[:0]
	for _, m := range matches {
		price, _ := m.Payload["price"].(float64)
		rating, _ := m.Payload["rating"].(float64)
		category, _ := m.Payload["category"].(string)
		if c.HasMaxPrice && price > c.MaxPrice {
			continue
		}
		if c.HasMinPrice && price < c.MinPrice {
			continue
		}
		if c.HasMinRating && rating < c.MinRating {
			continue
		}
		if c.Category != "" && !strings.EqualFold(category, c.Category) {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}

func sortCatalog(matches []contractx.RetrievalMatch, hint string) {
	switch hint {
	case SortPriceAsc:
		sort.SliceStable(matches, func(i, j int) bool {
			pi, _ := matches[i].Payload["price"].(float64)
			pj, _ := matches[j].Payload["price"].(float64)
			return pi < pj
		})
	case SortDeliveryAsc:
		sort.SliceStable(matches, func(i, j int) bool {
			di, _ := matches[i].Payload["delivery_time_days"].(int)
			dj, _ := matches[j].Payload["delivery_time_days"].(int)
			return di < dj
		})
	}
}

/* --------------------------------- faq --------------------------------- */

type FAQIndex struct {
	faqs []faqProduct
}

var _ contractx.Retriever = (*FAQIndex)(nil)

func LoadFAQ(path string) (*FAQIndex, error) {
	var faqs []faqProduct
	if err := loadJSON(path, &faqs); err != nil {
		return nil, err
	}
	return &FAQIndex{faqs: faqs}, nil
}

func (i *FAQIndex) Search(_ context.Context, query string, k int) ([]contractx.RetrievalMatch, error) {
	cleaned := normalizeQuery(query)
	if cleaned == "" {
		return nil, nil
	}

	var scored []scoredDoc
	for _, p := range i.faqs {
		for n, faq := range p.FAQs {
			score := scoreField(cleaned, p.ProductName, 2)
			score += scoreField(cleaned, p.ProductID, 2)
			score += scoreField(cleaned, faq.Question, 3)
			score += scoreField(cleaned, faq.Answer, 1)
			if score <= 0 {
				continue
			}
			scored = append(scored, scoredDoc{
				score: score,
				id:    fmt.Sprintf("%s#%d", p.ProductID, n),
				payload: map[string]any{
					"domain":       "faq",
					"product_id":   p.ProductID,
					"product_name": p.ProductName,
					"question":     faq.Question,
					"answer":       faq.Answer,
				},
			})
		}
	}
	return rank(scored, k), nil
}

/* -------------------------------- policy -------------------------------- */

type policyEntry struct {
	Section string
	Text    string
}

type PolicyIndex struct {
	entries []policyEntry
}

var _ contractx.Retriever = (*PolicyIndex)(nil)

func LoadPolicy(path string) (*PolicyIndex, error) {
	var doc map[string]any
	if err := loadJSON(path, &doc); err != nil {
		return nil, err
	}
	root, _ := doc["policy_document"].(map[string]any)
	return &PolicyIndex{entries: flattenPolicy(root, nil)}, nil
}

// flattenPolicy walks the nested policy document and emits one entry per
// clean_text segment, with a breadcrumb section path.
func flattenPolicy(node any, path []string) []policyEntry {
	var entries []policyEntry
	switch n := node.(type) {
	case map[string]any:
		newPath := path
		if topic, _ := n["topic"].(string); topic != "" {
			newPath = append(append([]string{}, path...), topic)
		}
		if text, _ := n["clean_text"].(string); text != "" {
			section := "policy"
			if len(newPath) > 0 {
				section = strings.Join(newPath, " > ")
			}
			entries = append(entries, policyEntry{Section: section, Text: text})
		}
		if segments, ok := n["segments"].([]any); ok {
			for _, seg := range segments {
				entries = append(entries, flattenPolicy(seg, newPath)...)
			}
		}
		for key, value := range n {
			switch key {
			case "topic", "clean_text", "segments", "citation_ids":
				continue
			}
			childPath := append(append([]string{}, path...), strings.ReplaceAll(key, "_", " "))
			entries = append(entries, flattenPolicy(value, childPath)...)
		}
	case []any:
		for _, item := range n {
			entries = append(entries, flattenPolicy(item, path)...)
		}
	}
	return entries
}

func (i *PolicyIndex) Search(_ context.Context, query string, k int) ([]contractx.RetrievalMatch, error) {
	cleaned := normalizeQuery(query)
	if cleaned == "" {
		return nil, nil
	}

	var scored []scoredDoc
	for _, entry := range i.entries {
		score := scoreField(cleaned, entry.Section, 2)
		score += scoreField(cleaned, entry.Text, 3)
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredDoc{
			score: score,
			id:    entry.Section,
			payload: map[string]any{
				"domain":  "policy",
				"section": entry.Section,
				"text":    entry.Text,
			},
		})
	}
	return rank(scored, k), nil
}

/* -------------------------------- orders -------------------------------- */

type OrdersIndex struct {
	orders []contractx.OrderRecord
}

var _ contractx.Retriever = (*OrdersIndex)(nil)

func LoadOrders(path string) (*OrdersIndex, error) {
	var orders []contractx.OrderRecord
	if err := loadJSON(path, &orders); err != nil {
		return nil, err
	}
	return &OrdersIndex{orders: orders}, nil
}

// FindOrder satisfies contract.OrderStore over the same metadata.
func (i *OrdersIndex) FindOrder(_ context.Context, orderID string) (*contractx.OrderRecord, error) {
	for _, order := range i.orders {
		if strings.EqualFold(order.OrderID, orderID) {
			found := order
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", contractx.ErrOrderNotFound, orderID)
}

func (i *OrdersIndex) Search(_ context.Context, query string, k int) ([]contractx.RetrievalMatch, error) {
	cleaned := normalizeQuery(query)
	if cleaned == "" {
		return nil, nil
	}

	// An exact customer-id query returns that customer's orders directly,
	// preserving file order.
	if customerIDExactPattern.MatchString(cleaned) {
		var matches []contractx.RetrievalMatch
		for _, order := range i.orders {
			if normalizeQuery(order.CustomerID) != cleaned {
				continue
			}
			matches = append(matches, contractx.RetrievalMatch{
				DocumentID: order.OrderID,
				Score:      1,
				Payload:    orderPayload(order),
			})
			if len(matches) >= maxInt(1, k) {
				break
			}
		}
		return matches, nil
	}

	var scored []scoredDoc
	for _, order := range i.orders {
		score := scoreField(cleaned, order.OrderID, 3)
		score += scoreField(cleaned, order.CustomerID, 2)
		score += scoreField(cleaned, order.Status, 2)
		score += scoreField(cleaned, order.Date, 1)
		for _, product := range order.Products {
			score += scoreField(cleaned, product.ProductName, 2)
			score += scoreField(cleaned, product.ProductID, 2)
		}
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredDoc{score: score, id: order.OrderID, payload: orderPayload(order)})
	}
	return rank(scored, k), nil
}

func orderPayload(order contractx.OrderRecord) map[string]any {
	products := make([]map[string]any, 0, len(order.Products))
	for _, p := range order.Products {
		products = append(products, map[string]any{
			"product_id":   p.ProductID,
			"product_name": p.ProductName,
		})
	}
	return map[string]any{
		"domain":       "orders",
		"order_id":     order.OrderID,
		"customer_id":  order.CustomerID,
		"order_status": order.Status,
		"order_date":   order.Date,
		"products":     products,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

/* --------------------------------- set --------------------------------- */

// Set bundles the four domain indexes loaded from one data directory.
type Set struct {
	Catalog *CatalogIndex
	FAQ     *FAQIndex
	Policy  *PolicyIndex
	Orders  *OrdersIndex
}

func LoadSet(dataDir string) (*Set, error) {
	catalog, err := LoadCatalog(filepath.Join(dataDir, catalogFile))
	if err != nil {
		return nil, err
	}
	faq, err := LoadFAQ(filepath.Join(dataDir, faqFile))
	if err != nil {
		return nil, err
	}
	policy, err := LoadPolicy(filepath.Join(dataDir, policyFile))
	if err != nil {
		return nil, err
	}
	orders, err := LoadOrders(filepath.Join(dataDir, ordersFile))
	if err != nil {
		return nil, err
	}
	return &Set{Catalog: catalog, FAQ: faq, Policy: policy, Orders: orders}, nil
}
