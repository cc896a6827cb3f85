package services

import (
	"strings"
)

// Bank remittance content is often prefixed with a system-generated reference
// token: the "VQR" scheme tag followed by 13 alphanumerics, 16 characters in
// total, then a space, then the merchant-supplied text.
const (
	vietqrSchemeTag    = "VQR"
	vietqrRefPrefixLen = 16
)

// extractContent recovers the merchant-supplied fragment from raw remittance
// content. This is a heuristic: when no prefix is recognized the trimmed raw
// content is returned as-is, never an error.
func extractContent(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, vietqrSchemeTag) && len(trimmed) > vietqrRefPrefixLen {
		// First space at or after the end of the reference token.
		rel := strings.Index(trimmed[vietqrRefPrefixLen:], " ")
		if rel >= 0 {
			idx := vietqrRefPrefixLen + rel
			if idx < len(trimmed)-1 {
				return strings.TrimSpace(trimmed[idx+1:])
			}
		}
	}

	return trimmed
}

// contentOverlaps reports whether callback content and a payment description
// refer to the same payment. Either containment direction counts: the stored
// description is sometimes a fragment of the bank-visible text and sometimes
// a superset of it. Empty input on either side never matches.
func contentOverlaps(callbackContent, paymentDescription string) bool {
	if callbackContent == "" || paymentDescription == "" {
		return false
	}

	extracted := extractContent(callbackContent)
	if extracted == "" {
		return false
	}

	return strings.Contains(paymentDescription, extracted) ||
		strings.Contains(extracted, paymentDescription)
}
