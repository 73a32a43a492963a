/*
Package parser turns extracted statement text into structured candidate
transactions for the ingestor.

PURPOSE:
  Defines the single Parser contract the ledger core consumes, plus a
  registry of issuer-specific implementations with source autodetection.
  The core never inspects document-format details; it only trusts the
  Parsed structure produced here.

SCOPE:
  Parsers operate on text pages that have already been extracted from the
  source document. Byte-level extraction (PDF layout, OCR) is a separate
  concern handled upstream.

ADDING AN ISSUER:
  Implement Parser, register a detection pattern in detectors. Each issuer
  is a regex line parser over its statement layout.

SEE ALSO:
  - ingest/ingestor.go: the consumer of Parsed
*/
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

// ErrUnsupportedSource is the hard parse failure: no registered issuer
// matched the document text.
var ErrUnsupportedSource = errors.New("unsupported bank/card type")

// =============================================================================
// CONTRACT - What every parser produces
// =============================================================================

// Issue is one parse problem worth recording in the ingestion log.
type Issue struct {
	Level   ledger.LogLevel
	Message string
}

// Candidate is one not-yet-persisted transaction extracted from a statement.
type Candidate struct {
	Date        ledger.Date
	Description string
	Debit       decimal.NullDecimal
	Credit      decimal.NullDecimal
	Balance     decimal.NullDecimal
	RawLine     string
}

// Parsed is the collaborator-supplied structure the ingestor consumes.
type Parsed struct {
	SourceType  ledger.SourceType
	Source      string
	Account     string
	PeriodStart ledger.Date
	PeriodEnd   ledger.Date
	Candidates  []Candidate
	Issues      []Issue
}

// Parser is one issuer-specific statement parser.
type Parser interface {
	// Source returns the issuer code this parser handles.
	Source() string

	// Parse extracts statement metadata and candidate transactions from
	// text pages. Parse problems are reported as Issues, not errors; an
	// error means the document is unusable.
	Parse(pages []string) (Parsed, error)
}

// =============================================================================
// REGISTRY - Autodetection and dispatch
// =============================================================================

var detectors = []struct {
	source  string
	pattern *regexp.Regexp
}{
	{"SBI", regexp.MustCompile(`(?i)state bank of india|sbi`)},
	{"HDFC", regexp.MustCompile(`(?i)hdfc\s+bank|hdfc`)},
	{"AMEX", regexp.MustCompile(`(?i)american express|amex|credit card statement`)},
}

// DetectSource identifies the issuer from statement text.
func DetectSource(text string) (string, bool) {
	for _, d := range detectors {
		if d.pattern.MatchString(text) {
			return d.source, true
		}
	}
	return "", false
}

// ForSource returns the parser for an issuer code.
func ForSource(source string) (Parser, bool) {
	switch source {
	case "SBI":
		return &SBIParser{}, true
	case "HDFC":
		return &HDFCParser{}, true
	case "AMEX":
		return &AMEXParser{}, true
	}
	return nil, false
}

// Parse autodetects the issuer from the first page and dispatches.
// Returns ErrUnsupportedSource when no issuer matches.
func Parse(pages []string) (Parsed, error) {
	if len(pages) == 0 {
		return Parsed{}, fmt.Errorf("%w: empty document", ErrUnsupportedSource)
	}
	source, ok := DetectSource(pages[0])
	if !ok {
		return Parsed{}, ErrUnsupportedSource
	}
	p, _ := ForSource(source)
	return p.Parse(pages)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// parseAnyDate tries each layout in turn.
func parseAnyDate(s string, layouts []string) (ledger.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ledger.Date{Time: t}, true
		}
	}
	return ledger.Date{}, false
}

// parseMoney parses "1,234.56" style amounts. Zero and empty parse as null:
// every registered layout prints 0.00 in the unused amount column, so a zero
// here can only mean "no amount on this side". An issuer whose statements
// carry genuine zero-amount rows must not route them through this helper.
func parseMoney(s string) decimal.NullDecimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "0" || s == "0.00" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// dedupeCandidates keeps the first occurrence of each defining-field tuple.
// Statement layouts sometimes repeat rows across page breaks.
func dedupeCandidates(candidates []Candidate) []Candidate {
	type key struct {
		date, desc, debit, credit string
	}
	seen := make(map[key]bool)
	var unique []Candidate
	for _, c := range candidates {
		k := key{c.Date.String(), c.Description, moneyKey(c.Debit), moneyKey(c.Credit)}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, c)
	}
	return unique
}

func moneyKey(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
