/*
Package lineage infers relationships between transactions recorded across
different statements.

PURPOSE:
  A card payment shows up twice: debited from the bank statement, credited
  on the card statement. The detector finds such pairs in the unlinked
  pool and records a directed, typed, confidence-scored edge.

RULES (priority order; first match wins per pair):
  1. duplicate  (1.00) identical date/description/amounts, different statements
  2. cc_payment (0.95) opposite direction, equal magnitude, within 2 days,
                       different sources
  3. refund     (0.80) opposite direction, equal magnitude, within 30 days,
                       description similarity above 0.7
  4. transfer   (0.60) equal magnitude, similarity above 0.7, any direction

  Confidence is fixed per rule, never adjusted after creation.

SCALING:
  Candidates are bucketed by absolute amount before pairing: rules 2-4
  require equal magnitudes and rule 1 implies them, so cross-bucket pairs
  can never match. Detection after an ingest is further scoped to pairs
  involving at least one newly inserted transaction, which keeps repeated
  passes off pairs that already failed to match.

IDEMPOTENCE:
  Edges are append-only: a pair gets at most one edge, enforced by a
  check-then-insert inside a single store transaction plus the store's
  unordered-pair uniqueness constraint. Re-running detection over an
  unchanged set creates nothing.

SEE ALSO:
  - ingest/ingestor.go: triggers detection after each commit
  - ledger/types.go: Lineage and Evidence definitions
*/
package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

// Fixed per-rule confidences.
const (
	ConfidenceDuplicate = 1.0
	ConfidenceCCPayment = 0.95
	ConfidenceRefund    = 0.80
	ConfidenceTransfer  = 0.60
)

// Config carries the matching-rule parameters. Defaults mirror the rule
// definitions above; loosen or tighten per deployment.
type Config struct {
	CCPaymentWindowDays int     // inclusive, default 2
	RefundWindowDays    int     // inclusive, default 30
	SimilarityThreshold float64 // exclusive lower bound, default 0.7
}

func DefaultConfig() Config {
	return Config{
		CCPaymentWindowDays: 2,
		RefundWindowDays:    30,
		SimilarityThreshold: 0.7,
	}
}

// Report summarizes one detection pass.
type Report struct {
	CandidateCount int // size of the unlinked pool
	PairsEvaluated int
	EdgesCreated   int
	EdgesSkipped   int // pair linked by a concurrent pass between proposal and commit
}

// Detector proposes lineage edges over the unlinked transaction pool.
type Detector struct {
	store ledger.Store
	cfg   Config
	log   zerolog.Logger
}

// New takes cfg as given: callers wanting the documented rule parameters pass
// DefaultConfig(). A zero Config is a legitimate, maximally strict detector.
func New(store ledger.Store, cfg Config, log zerolog.Logger) *Detector {
	return &Detector{store: store, cfg: cfg, log: log}
}

// Detect runs one pass over the transactions lacking any lineage edge.
// added scopes evaluation to pairs involving at least one of the given
// transactions; pass nil for a full pass (e.g. after a restore).
// All edges proposed in one pass commit together or not at all.
func (d *Detector) Detect(ctx context.Context, added []ledger.Transaction) (Report, error) {
	candidates, err := d.store.UnlinkedTransactions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load unlinked transactions: %w", err)
	}

	var addedSet map[ledger.TransactionID]bool
	if added != nil {
		addedSet = make(map[ledger.TransactionID]bool, len(added))
		for _, tx := range added {
			addedSet[tx.ID] = true
		}
	}

	report := Report{CandidateCount: len(candidates)}
	proposals := d.propose(candidates, addedSet, &report)
	if len(proposals) == 0 {
		return report, nil
	}

	// Check-then-insert inside one transaction: concurrent passes cannot
	// double-create an edge for the same pair, and one pass's edges are
	// never observed half-committed.
	err = d.store.WithTx(ctx, func(s ledger.Store) error {
		for _, edge := range proposals {
			linked, err := s.PairLinked(ctx, edge.FromID, edge.ToID)
			if err != nil {
				return err
			}
			if linked {
				report.EdgesSkipped++
				continue
			}
			if err := s.InsertLineage(ctx, edge); err != nil {
				return err
			}
			report.EdgesCreated++
		}
		return nil
	})
	if err != nil {
		report.EdgesCreated = 0
		return report, fmt.Errorf("failed to commit lineage edges: %w", err)
	}

	d.log.Info().
		Int("candidates", report.CandidateCount).
		Int("pairs", report.PairsEvaluated).
		Int("edges", report.EdgesCreated).
		Msg("lineage detection pass complete")
	return report, nil
}

// propose evaluates every eligible unordered pair exactly once and returns
// the edges the rules produce.
func (d *Detector) propose(candidates []ledger.Transaction, addedSet map[ledger.TransactionID]bool, report *Report) []ledger.Lineage {
	now := time.Now().UTC()
	var proposals []ledger.Lineage

	// Pairs with different magnitudes can never match; bucket first.
	buckets := make(map[string][]ledger.Transaction)
	for _, tx := range candidates {
		buckets[magnitudeKey(tx)] = append(buckets[magnitudeKey(tx)], tx)
	}

	for _, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if addedSet != nil && !addedSet[a.ID] && !addedSet[b.ID] {
					continue
				}
				report.PairsEvaluated++
				if edge, ok := d.match(a, b, now); ok {
					proposals = append(proposals, edge)
				}
			}
		}
	}
	return proposals
}

func magnitudeKey(tx ledger.Transaction) string {
	mag, ok := tx.Magnitude()
	if !ok {
		return ""
	}
	return mag.Abs().StringFixed(2)
}

// match applies the rules in priority order; the first hit wins.
func (d *Detector) match(a, b ledger.Transaction, now time.Time) (ledger.Lineage, bool) {
	dateDelta := ledger.DaysApart(a.Date, b.Date)
	magnitude, hasAmount := a.Magnitude()

	// Rule 1: duplicate - the same real-world transaction printed in two
	// statements (reprints, overlapping periods).
	if a.StatementID != b.StatementID &&
		a.Date.Equal(b.Date) &&
		a.Description == b.Description &&
		nullEqual(a.Debit, b.Debit) &&
		nullEqual(a.Credit, b.Credit) {
		from, to := orderByID(a, b)
		return ledger.Lineage{
			FromID:     from.ID,
			ToID:       to.ID,
			Type:       ledger.RelationDuplicate,
			Confidence: ConfidenceDuplicate,
			Evidence: ledger.Evidence{
				Amount:        magnitude,
				DateDeltaDays: dateDelta,
				Similarity:    1.0,
				Reason:        "identical row in two statements",
			},
			CreatedAt: now,
		}, true
	}

	// Remaining rules all require an amount on both sides with equal
	// magnitude; bucketing guarantees the magnitudes already match.
	if !hasAmount {
		return ledger.Lineage{}, false
	}

	opposite := (a.IsDebit() && b.IsCredit()) || (a.IsCredit() && b.IsDebit())

	// Rule 2: cc_payment - a bank debit funding a card credit.
	if opposite && dateDelta <= d.cfg.CCPaymentWindowDays && a.Source != b.Source {
		from, to := orderByDirection(a, b)
		return ledger.Lineage{
			FromID:     from.ID,
			ToID:       to.ID,
			Type:       ledger.RelationCCPayment,
			Confidence: ConfidenceCCPayment,
			Evidence: ledger.Evidence{
				Amount:        magnitude,
				DateDeltaDays: dateDelta,
				Reason:        fmt.Sprintf("%s debit matches %s credit", from.Source, to.Source),
			},
			CreatedAt: now,
		}, true
	}

	similarity := TokenSimilarity(a.Description, b.Description)

	// Rule 3: refund - a debit reversed as a credit with a similar description.
	if opposite && dateDelta <= d.cfg.RefundWindowDays && similarity > d.cfg.SimilarityThreshold {
		from, to := orderByDirection(a, b)
		return ledger.Lineage{
			FromID:     from.ID,
			ToID:       to.ID,
			Type:       ledger.RelationRefund,
			Confidence: ConfidenceRefund,
			Evidence: ledger.Evidence{
				Amount:        magnitude,
				DateDeltaDays: dateDelta,
				Similarity:    similarity,
				Reason:        "debit reversed as credit",
			},
			CreatedAt: now,
		}, true
	}

	// Rule 4: transfer - equal money, matching description, any direction.
	if similarity > d.cfg.SimilarityThreshold {
		from, to := orderByDirection(a, b)
		return ledger.Lineage{
			FromID:     from.ID,
			ToID:       to.ID,
			Type:       ledger.RelationTransfer,
			Confidence: ConfidenceTransfer,
			Evidence: ledger.Evidence{
				Amount:        magnitude,
				DateDeltaDays: dateDelta,
				Similarity:    similarity,
				Reason:        "equal amounts with matching description",
			},
			CreatedAt: now,
		}, true
	}

	return ledger.Lineage{}, false
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}

// orderByDirection points the edge from the debit side to the credit side
// (money flows debit -> credit). Directionless pairs fall back to ID order
// so edge creation stays deterministic.
func orderByDirection(a, b ledger.Transaction) (from, to ledger.Transaction) {
	switch {
	case a.IsDebit() && b.IsCredit():
		return a, b
	case b.IsDebit() && a.IsCredit():
		return b, a
	default:
		return orderByID(a, b)
	}
}

func orderByID(a, b ledger.Transaction) (from, to ledger.Transaction) {
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}
