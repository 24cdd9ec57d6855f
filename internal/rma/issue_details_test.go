package rma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueDetailsLegacyLines(t *testing.T) {
	raw := "Webhook topic: orders/create\nline_1: item=Widget,sku=W1,qty=2,reason=damaged"

	details := ParseIssueDetails(raw)
	require.NotNil(t, details)
	assert.Equal(t, IssueDetailsFormatLegacy, details.Format)
	assert.Equal(t, "orders/create", details.WebhookTopic)
	require.Len(t, details.LineItems, 1)
	assert.Equal(t, IssueLineItem{
		Item:   "Widget",
		SKU:    "W1",
		Qty:    2,
		Reason: "damaged",
	}, details.LineItems[0])
}

func TestParseIssueDetailsLegacyMultipleLines(t *testing.T) {
	raw := "Webhook topic: returns/create\n" +
		"line_1: item=Amp,sku=A7,serial=SN-900,qty=1,reason=no power\n" +
		"line_2: item=Cable,qty=3\n" +
		"Customer left a voicemail"

	details := ParseIssueDetails(raw)
	require.NotNil(t, details)
	assert.Equal(t, "returns/create", details.WebhookTopic)
	require.Len(t, details.LineItems, 2)
	assert.Equal(t, "SN-900", details.LineItems[0].Serial)
	assert.Equal(t, "no power", details.LineItems[0].Reason)
	assert.Equal(t, 3, details.LineItems[1].Qty)
	assert.Equal(t, "Customer left a voicemail", details.Notes)
}

func TestParseIssueDetailsStructured(t *testing.T) {
	raw := `{"format":"structured_v1","webhook_topic":"returns/create","line_items":[{"item":"Widget","sku":"W1","qty":2,"reason":"damaged"}]}`

	details := ParseIssueDetails(raw)
	require.NotNil(t, details)
	assert.Equal(t, IssueDetailsFormatStructured, details.Format)
	assert.Equal(t, "returns/create", details.WebhookTopic)
	require.Len(t, details.LineItems, 1)
	assert.Equal(t, "Widget", details.LineItems[0].Item)
}

func TestParseIssueDetailsEmpty(t *testing.T) {
	assert.Nil(t, ParseIssueDetails(""))
	assert.Nil(t, ParseIssueDetails("   \n  "))
}

func TestParseIssueDetailsMalformedJSONFallsBack(t *testing.T) {
	raw := "{not json at all"

	details := ParseIssueDetails(raw)
	require.NotNil(t, details)
	assert.Equal(t, IssueDetailsFormatLegacy, details.Format)
	assert.Equal(t, raw, details.Notes)
}

func TestEncodeIssueDetailsRoundTrip(t *testing.T) {
	encoded, err := EncodeIssueDetails(IssueDetails{
		WebhookTopic: "returns/create",
		LineItems:    []IssueLineItem{{Item: "Widget", SKU: "W1", Qty: 2, Reason: "damaged"}},
	})
	require.NoError(t, err)

	details := ParseIssueDetails(encoded)
	require.NotNil(t, details)
	assert.Equal(t, IssueDetailsFormatStructured, details.Format)
	assert.Equal(t, "returns/create", details.WebhookTopic)
	require.Len(t, details.LineItems, 1)
	assert.Equal(t, 2, details.LineItems[0].Qty)
}
