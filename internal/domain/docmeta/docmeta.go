// Package docmeta normalizes user-supplied document metadata before indexing.
package docmeta

import (
	"strings"
	"time"
)

// DocType is a normalized document category. Values outside the known set
// collapse to TypeOther so the document_type index field stays a closed tag set.
type DocType string

// Known document types.
const (
	TypeQuarterlyReport    DocType = "quarterly_report"
	TypeNewsletter         DocType = "newsletter"
	TypeArticles           DocType = "articles"
	TypeAnnualReport       DocType = "annual_report"
	TypeFinancialStatement DocType = "financial_statement"
	TypePresentation       DocType = "presentation"
	TypeWhitepaper         DocType = "whitepaper"
	TypeResearchReport     DocType = "research_report"
	TypePolicyDocument     DocType = "policy_document"
	TypeManual             DocType = "manual"
	TypeGuide              DocType = "guide"
	TypeClientReviews      DocType = "client_reviews"
	TypeNYPColumns         DocType = "nyp_columns"
	TypeOTQ                DocType = "otq"
	TypeOther              DocType = "other"
)

var knownTypes = map[DocType]bool{
	TypeQuarterlyReport:    true,
	TypeNewsletter:         true,
	TypeArticles:           true,
	TypeAnnualReport:       true,
	TypeFinancialStatement: true,
	TypePresentation:       true,
	TypeWhitepaper:         true,
	TypeResearchReport:     true,
	TypePolicyDocument:     true,
	TypeManual:             true,
	TypeGuide:              true,
	TypeClientReviews:      true,
	TypeNYPColumns:         true,
	TypeOTQ:                true,
	TypeOther:              true,
}

// NormalizeType maps a raw type string onto the known set.
// Matching is case-insensitive and ignores surrounding whitespace.
// Returns (TypeOther, false) for empty or unrecognized input.
func NormalizeType(raw string) (DocType, bool) {
	dt := DocType(strings.ToLower(strings.TrimSpace(raw)))
	if dt == "" {
		return TypeOther, false
	}
	if knownTypes[dt] {
		return dt, true
	}
	return TypeOther, false
}

// ParsePublishedDate parses a published date as RFC 3339 or plain YYYY-MM-DD.
// Unparseable or empty input yields (time.Now().UTC(), false): a wrong
// publication date must never block indexing. The result is always UTC.
func ParsePublishedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true
	}
	return time.Now().UTC(), false
}
