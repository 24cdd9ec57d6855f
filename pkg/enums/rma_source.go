package enums

import "fmt"

// RmaSource identifies the intake channel that opened a case.
type RmaSource string

const (
	RmaSourceShopifyWebhook RmaSource = "shopify_webhook"
	RmaSourceManual         RmaSource = "manual"
	RmaSourcePublicForm     RmaSource = "public_form"
)

var validRmaSources = []RmaSource{
	RmaSourceShopifyWebhook,
	RmaSourceManual,
	RmaSourcePublicForm,
}

// String implements fmt.Stringer.
func (s RmaSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RmaSource.
func (s RmaSource) IsValid() bool {
	for _, candidate := range validRmaSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRmaSource converts raw input into an RmaSource.
func ParseRmaSource(value string) (RmaSource, error) {
	for _, candidate := range validRmaSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rma source %q", value)
}
