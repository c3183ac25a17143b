package entity

import "fmt"

// Constants of the HIP-15 address checksum.
const (
	checksumLength = 5
	checksumP3     = 26 * 26 * 26
	checksumP5     = 26 * 26 * 26 * 26 * 26
	checksumM      = 1_000_003
	checksumW      = 31
)

// ChecksumMismatchError is a validation error: the checksum embedded in an
// entity reference was not computed for the target ledger.
type ChecksumMismatchError struct {
	ID       EntityID
	Ledger   LedgerID
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("entity %s has checksum %q, expected %q for ledger %s", e.ID, e.Actual, e.Expected, e.Ledger)
}

// Checksum computes the five letter checksum of id on ledger.
func Checksum(ledger LedgerID, id EntityID) string {
	addr := id.String()

	var sd0, sd1, sd, sh int
	for i := 0; i < len(addr); i++ {
		d := 10
		if addr[i] != '.' {
			d = int(addr[i] - '0')
		}
		sd = (checksumW*sd + d) % checksumP3
		if i%2 == 0 {
			sd0 = (sd0 + d) % 11
		} else {
			sd1 = (sd1 + d) % 11
		}
	}

	// the ledger id is followed by six zero bytes
	salt := append(append([]byte{}, ledger...), make([]byte, 6)...)
	for _, b := range salt {
		sh = (checksumW*sh + int(b)) % checksumP5
	}

	c := ((((len(addr)%5)*11+sd0)*11+sd1)*checksumP3 + sd + sh) % checksumP5
	cp := (c * checksumM) % checksumP5

	out := make([]byte, checksumLength)
	for i := checksumLength - 1; i >= 0; i-- {
		out[i] = byte('a' + cp%26)
		cp /= 26
	}
	return string(out)
}

// ValidateChecksum checks the embedded checksum against ledger. An absent
// checksum is not an error.
func (id EntityID) ValidateChecksum(ledger LedgerID) error {
	if id.Checksum == "" {
		return nil
	}
	expected := Checksum(ledger, id)
	if expected != id.Checksum {
		return &ChecksumMismatchError{ID: id.WithoutChecksum(), Ledger: ledger, Expected: expected, Actual: id.Checksum}
	}
	return nil
}

// ValidateChecksums validates every non-nil id and returns the first mismatch.
func ValidateChecksums(ledger LedgerID, ids ...*EntityID) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if err := id.ValidateChecksum(ledger); err != nil {
			return err
		}
	}
	return nil
}
