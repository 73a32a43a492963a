package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// SBI - Bank statement layout: DATE DESC DEBIT CREDIT BALANCE
// =============================================================================

type SBIParser struct{}

var (
	sbiAccountRe = regexp.MustCompile(`(\*{5}\d{4}|[A-Z0-9]{10,})`)
	sbiPeriodRe  = regexp.MustCompile(`(?i)(\d{1,2}[-/](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*[-/]\d{4})\s+to\s+(\d{1,2}[-/](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*[-/]\d{4})`)
	sbiLineRe    = regexp.MustCompile(`(?i)^(\d{1,2}[-/](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*[-/]\d{4})\s+(.+?)\s+([\d,]+\.?\d*)\s+([\d,]+\.?\d*)\s+([\d,]+\.?\d*)$`)
	sbiStartRe   = regexp.MustCompile(`^\d{1,2}[-/]`)
)

var sbiDateLayouts = []string{"2-Jan-2006", "2-January-2006", "2/1/2006", "2-1-2006", "2-1-06"}

func (p *SBIParser) Source() string { return "SBI" }

func (p *SBIParser) Parse(pages []string) (Parsed, error) {
	parsed := Parsed{
		SourceType: ledger.SourceBank,
		Source:     "SBI",
		Account:    "UNKNOWN",
	}
	if len(pages) == 0 {
		return Parsed{}, fmt.Errorf("%w: empty document", ErrUnsupportedSource)
	}

	if m := sbiAccountRe.FindStringSubmatch(pages[0]); m != nil {
		parsed.Account = m[1]
	} else {
		parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning, "could not extract account reference"})
	}

	if m := sbiPeriodRe.FindStringSubmatch(pages[0]); m != nil {
		if start, ok := parseAnyDate(m[1], sbiDateLayouts); ok {
			parsed.PeriodStart = start
		}
		if end, ok := parseAnyDate(m[2], sbiDateLayouts); ok {
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
			m := sbiLineRe.FindStringSubmatch(line)
			if m == nil {
				i++
				continue
			}

			date, ok := parseAnyDate(m[1], sbiDateLayouts)
			if !ok {
				parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning,
					fmt.Sprintf("could not parse date %q, row skipped", m[1])})
				i++
				continue
			}

			description := strings.TrimSpace(m[2])

			// Wrapped descriptions continue on the following lines until the
			// next dated row.
			i++
			for i < len(lines) {
				next := strings.TrimSpace(lines[i])
				if next == "" || sbiStartRe.MatchString(next) {
					break
				}
				description += " " + next
				i++
			}

			parsed.Candidates = append(parsed.Candidates, Candidate{
				Date:        date,
				Description: description,
				Debit:       parseMoney(m[3]),
				Credit:      parseMoney(m[4]),
				Balance:     parseMoney(m[5]),
				RawLine:     line,
			})
		}
	}

	parsed.Candidates = dedupeCandidates(parsed.Candidates)
	fillPeriodFromCandidates(&parsed)
	return parsed, nil
}

// fillPeriodFromCandidates derives the covered period from the row dates when
// the statement header didn't yield one. Deterministic, unlike defaulting to
// the current day.
func fillPeriodFromCandidates(parsed *Parsed) {
	if !parsed.PeriodStart.IsZero() && !parsed.PeriodEnd.IsZero() {
		return
	}
	if len(parsed.Candidates) == 0 {
		return
	}
	minDate, maxDate := parsed.Candidates[0].Date, parsed.Candidates[0].Date
	for _, c := range parsed.Candidates[1:] {
		if c.Date.Before(minDate) {
			minDate = c.Date
		}
		if c.Date.After(maxDate) {
			maxDate = c.Date
		}
	}
	if parsed.PeriodStart.IsZero() {
		parsed.PeriodStart = minDate
	}
	if parsed.PeriodEnd.IsZero() {
		parsed.PeriodEnd = maxDate
	}
	parsed.Issues = append(parsed.Issues, Issue{ledger.LevelWarning,
		"statement period missing from header, derived from row dates"})
}
