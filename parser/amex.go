package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// AMEX - Card statement layout: MM/DD DESC AMOUNT [C|D]
// Rows live under a "Transactions"/"Purchases" section header. The row year
// comes from the statement date; direction defaults to debit (a purchase).
// =============================================================================

type AMEXParser struct{}

var (
	amexAccountRe = regexp.MustCompile(`Account Number[:\s]+(\d{4}\s\d{6}\s\d{5}|\d{15})`)
	amexDateRe    = regexp.MustCompile(`Statement Date[:\s]+([A-Z][a-z]+\s\d{1,2},\s\d{4})`)
	amexLineRe    = regexp.MustCompile(`^(\d{2}/\d{2})\s+(.+?)\s+([\d,]+\.\d{2})(?:\s+(C|D))?$`)
)

func (p *AMEXParser) Source() string { return "AMEX" }

func (p *AMEXParser) Parse(pages []string) (Parsed, error) {
	parsed := Parsed{
		SourceType: ledger.SourceCard,
		Source:     "AMEX",
		Account:    "AMEX-UNKNOWN",
	}
	if len(pages) == 0 {
		return Parsed{}, fmt.Errorf("%w: empty document", ErrUnsupportedSource)
	}
	text := strings.Join(pages, "\n")

	if m := amexAccountRe.FindStringSubmatch(text); m != nil {
		parsed.Account = strings.TrimSpace(m[1])
	} else {
		parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning, "could not extract account number"})
	}

	var statementDate ledger.Date
	if m := amexDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("January 2, 2006", m[1]); err == nil {
			statementDate = ledger.Date{Time: t}
		}
	}
	if statementDate.IsZero() {
		parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning,
			"statement date missing, row years derived from row order are unavailable"})
	} else {
		parsed.PeriodStart = ledger.NewDate(statementDate.Time.Year(), statementDate.Time.Month(), 1)
		parsed.PeriodEnd = statementDate
	}

	inSection := false
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Transactions") || strings.Contains(line, "Purchases") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}

		line = strings.TrimSpace(line)
		if len(line) < 12 {
			continue
		}
		m := amexLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, ok := amexRowDate(m[1], statementDate)
		if !ok {
			parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning,
				fmt.Sprintf("could not resolve row date %q, row skipped", m[1])})
			continue
		}

		amount := parseMoney(m[3])
		direction := m[4]
		if direction == "" {
			direction = "D"
		}

		c := Candidate{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			RawLine:     line,
		}
		if direction == "C" {
			c.Credit = amount
		} else {
			c.Debit = amount
		}
		parsed.Candidates = append(parsed.Candidates, c)
	}

	parsed.Candidates = dedupeCandidates(parsed.Candidates)
	fillPeriodFromCandidates(&parsed)
	return parsed, nil
}

// amexRowDate resolves MM/DD against the statement year.
func amexRowDate(mmdd string, statementDate ledger.Date) (ledger.Date, bool) {
	if statementDate.IsZero() {
		return ledger.Date{}, false
	}
	parts := strings.SplitN(mmdd, "/", 2)
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return ledger.Date{}, false
	}
	return ledger.NewDate(statementDate.Time.Year(), time.Month(month), day), true
}
