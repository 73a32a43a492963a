/*
identity.go - Content-addressed identity

PURPOSE:
  Both identifier kinds are pure functions of content, so re-parsing the
  same source bytes always yields the same rows:

    StatementID   = sha256(raw document bytes)
    TransactionID = sha256(statement_id | date | description | debit | credit)

  No randomness, no wall clock, no machine state. Identity is what makes
  ingestion idempotent and archive/restore lossless.

CANONICAL FORM:
  Amounts are keyed at cent precision (two decimal places). "350", "350.0"
  and "350.00" are the same money and must hash identically; an absent
  amount keys as the empty string, which can never collide with a number.

COLLISIONS:
  Two genuinely distinct rows can hash to the same TransactionID when their
  defining fields are identical (e.g. two equal coffee purchases on one
  day). Treated as a dedup event, logged at warning level by the ingestor,
  never fatal.

SEE ALSO:
  - ingest/ingestor.go: the only producer of new identities
  - archive/manager.go: restores rows with their original identities intact
*/
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeStatementID hashes the raw source document bytes.
func ComputeStatementID(raw []byte) StatementID {
	sum := sha256.Sum256(raw)
	return StatementID(hex.EncodeToString(sum[:]))
}

// ComputeTransactionID hashes the defining fields of a transaction.
// Identical inputs produce identical IDs across machines and runs.
func ComputeTransactionID(stmt StatementID, date Date, description string, debit, credit decimal.NullDecimal) TransactionID {
	key := strings.Join([]string{
		string(stmt),
		date.String(),
		description,
		amountKey(debit),
		amountKey(credit),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return TransactionID(hex.EncodeToString(sum[:]))
}

func amountKey(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
