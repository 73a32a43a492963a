package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// HDFC - Bank statement layout: DATE DESC AMOUNT1 AMOUNT2 [BALANCE]
// The two amount columns are withdrawal/deposit; the printed layout leaves
// the unused one as 0.00, so direction is inferred from which is non-zero.
// =============================================================================

type HDFCParser struct{}

var (
	hdfcAccountRe = regexp.MustCompile(`(\*{5}\d{4}|50\d{8})`)
	hdfcPeriodRe  = regexp.MustCompile(`(?i)(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\s+to\s+(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`)
	hdfcLineRe    = regexp.MustCompile(`(?i)^(\d{1,2}[-/](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*[-/]\d{2,4})\s+(.+?)\s+([\d,]+\.?\d*)\s*([\d,]+\.?\d*)\s*([\d,]+\.?\d*)?$`)
	hdfcStartRe   = regexp.MustCompile(`^\d{1,2}[-/]`)
)

var hdfcDateLayouts = []string{"2-Jan-06", "2-January-06", "2-Jan-2006", "2-January-2006", "2/1/2006", "2/1/06", "2-1-2006", "2-1-06"}

func (p *HDFCParser) Source() string { return "HDFC" }

func (p *HDFCParser) Parse(pages []string) (Parsed, error) {
	parsed := Parsed{
		SourceType: ledger.SourceBank,
		Source:     "HDFC",
		Account:    "UNKNOWN",
	}
	if len(pages) == 0 {
		return Parsed{}, fmt.Errorf("%w: empty document", ErrUnsupportedSource)
	}

	if m := hdfcAccountRe.FindStringSubmatch(pages[0]); m != nil {
		parsed.Account = m[1]
	} else {
		parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning, "could not extract account reference"})
	}

	if m := hdfcPeriodRe.FindStringSubmatch(pages[0]); m != nil {
		if start, ok := parseAnyDate(m[1], hdfcDateLayouts); ok {
			parsed.PeriodStart = start
		}
		if end, ok := parseAnyDate(m[2], hdfcDateLayouts); ok {
			parsed.PeriodEnd = end
		}
	}

	for _, page := range pages {
		lines := strings.Split(page, "\n")
		for i := 0; i < len(lines); {
			line := strings.TrimSpace(lines[i])
			if len(line) < 10 {
				i++
				continue
			}
			m := hdfcLineRe.FindStringSubmatch(line)
			if m == nil {
				i++
				continue
			}

			date, ok := parseAnyDate(m[1], hdfcDateLayouts)
			if !ok {
				parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning,
					fmt.Sprintf("could not parse date %q, row skipped", m[1])})
				i++
				continue
			}

			description := strings.TrimSpace(m[2])
			debit, credit := inferDebitCredit(parseMoney(m[3]), parseMoney(m[4]))

			i++
			for i < len(lines) {
				next := strings.TrimSpace(lines[i])
				if next == "" || hdfcStartRe.MatchString(next) {
					break
				}
				description += " " + next
				i++
			}

			parsed.Candidates = append(parsed.Candidates, Candidate{
				Date:        date,
				Description: description,
				Debit:       debit,
				Credit:      credit,
				Balance:     parseMoney(m[5]),
				RawLine:     line,
			})
		}
	}

	parsed.Candidates = dedupeCandidates(parsed.Candidates)
	fillPeriodFromCandidates(&parsed)
	return parsed, nil
}

// inferDebitCredit picks the non-zero column; when both are set the first
// (withdrawal) column wins.
func inferDebitCredit(a1, a2 decimal.NullDecimal) (debit, credit decimal.NullDecimal) {
	switch {
	case a1.Valid:
		return a1, decimal.NullDecimal{}
	case a2.Valid:
		return decimal.NullDecimal{}, a2
	default:
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}
}
