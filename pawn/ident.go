/*
ident.go - Year-scoped sequential identifiers

PURPOSE:
  Formats and parses the shop's contract and policy identifiers:

    E-20250007   pawn contract, 2025, sequence 7
    C-20250012   purchase contract, 2025, sequence 12
    P-20250003   policy, 2025, sequence 3

  Contract sequences are scoped by type AND year; policy sequences by year
  only. The next sequence is max(existing suffixes for the scope) + 1, so a
  year rollover restarts at 1.

CONCURRENCY:
  The read-max-then-insert pattern assumes a single writer. Stores run it
  inside the save transaction; multi-process access to a shared database
  could still race and is out of scope.

SEE ALSO:
  - store.go: NextContractSequence / NextPolicySequence on ContractStore
  - store/sqlite: derives sequences with SQL over stored identifiers
*/
package pawn

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatContractID builds a contract identifier for the given type, year and
// sequence, e.g. FormatContractID(Pawn, 2025, 7) == "E-20250007".
func FormatContractID(t ContractType, year, seq int) string {
	return fmt.Sprintf("%s-%d%04d", t.Prefix(), year, seq)
}

// FormatPolicyID builds a policy identifier, e.g. "P-20250003".
func FormatPolicyID(year, seq int) string {
	return fmt.Sprintf("P-%d%04d", year, seq)
}

// ParseIdentSequence extracts the numeric sequence from a stored identifier.
// Returns 0 for identifiers that do not match the {prefix}-{yyyy}{NNNN}
// shape, so malformed rows never poison the next sequence.
func ParseIdentSequence(id string) int {
	dash := strings.IndexByte(id, '-')
	if dash < 0 || len(id) < dash+6 {
		return 0
	}
	seq, err := strconv.Atoi(id[dash+5:])
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

// IdentYear extracts the four-digit year from a stored identifier, or 0.
func IdentYear(id string) int {
	dash := strings.IndexByte(id, '-')
	if dash < 0 || len(id) < dash+5 {
		return 0
	}
	year, err := strconv.Atoi(id[dash+1 : dash+5])
	if err != nil {
		return 0
	}
	return year
}
