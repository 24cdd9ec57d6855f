package rma

import (
	"encoding/json"
	"strconv"
	"strings"

	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

const (
	// IssueDetailsFormatStructured tags the JSON form written by new intakes.
	IssueDetailsFormatStructured = "structured_v1"
	// IssueDetailsFormatLegacy tags details recovered from the historical
	// line-oriented text blob.
	IssueDetailsFormatLegacy = "legacy_text"
)

// IssueLineItem is one returned unit inside the issue details.
type IssueLineItem struct {
	Item   string `json:"item"`
	SKU    string `json:"sku,omitempty"`
	Serial string `json:"serial,omitempty"`
	Qty    int    `json:"qty,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IssueDetails is the normalized view of a case's issue_details column.
type IssueDetails struct {
	Format       string          `json:"format"`
	WebhookTopic string          `json:"webhook_topic,omitempty"`
	LineItems    []IssueLineItem `json:"line_items,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

// EncodeIssueDetails renders details in the structured form for storage.
func EncodeIssueDetails(details IssueDetails) (string, error) {
	details.Format = IssueDetailsFormatStructured
	raw, err := json.Marshal(details)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode issue details")
	}
	return string(raw), nil
}

// ParseIssueDetails reads both stored forms: the structured JSON one (tagged
// by a format field) and the historical line-oriented text blob
// ("Webhook topic: ..." / "line_1: item=...,sku=...,qty=...,reason=...").
// Empty input yields nil.
func ParseIssueDetails(raw string) *IssueDetails {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var details IssueDetails
		if err := json.Unmarshal([]byte(trimmed), &details); err == nil {
			if details.Format == "" {
				details.Format = IssueDetailsFormatStructured
			}
			return &details
		}
	}

	return parseLegacyIssueDetails(trimmed)
}

func parseLegacyIssueDetails(raw string) *IssueDetails {
	details := &IssueDetails{Format: IssueDetailsFormatLegacy}
	var notes []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if topic, ok := strings.CutPrefix(line, "Webhook topic:"); ok {
			details.WebhookTopic = strings.TrimSpace(topic)
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if ok && strings.HasPrefix(strings.TrimSpace(key), "line_") {
			details.LineItems = append(details.LineItems, parseLegacyLineItem(value))
			continue
		}

		notes = append(notes, line)
	}

	details.Notes = strings.Join(notes, "\n")
	return details
}

// parseLegacyLineItem reads "item=Widget,sku=W1,serial=S1,qty=2,reason=damaged".
func parseLegacyLineItem(raw string) IssueLineItem {
	var item IssueLineItem
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "item":
			item.Item = value
		case "sku":
			item.SKU = value
		case "serial":
			item.Serial = value
		case "qty":
			if qty, err := strconv.Atoi(value); err == nil {
				item.Qty = qty
			}
		case "reason":
			item.Reason = value
		}
	}
	return item
}
