package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidEntityID is returned when a string cannot be parsed as shard.realm.num.
var ErrInvalidEntityID = errors.New("invalid entity id")

// EntityID identifies an account, token, topic, file, contract or schedule.
// Checksum is optional metadata carried from the textual form and is only
// validated when present.
type EntityID struct {
	Shard    uint64
	Realm    uint64
	Num      uint64
	Checksum string
}

type (
	AccountID  = EntityID
	TokenID    = EntityID
	TopicID    = EntityID
	FileID     = EntityID
	ContractID = EntityID
	ScheduleID = EntityID
)

// New returns the entity shard.realm.num without a checksum.
func New(shard, realm, num uint64) EntityID {
	return EntityID{Shard: shard, Realm: realm, Num: num}
}

// FromNum returns the entity 0.0.num.
func FromNum(num uint64) EntityID {
	return EntityID{Num: num}
}

// Parse accepts "shard.realm.num", "shard.realm.num-checksum" and a bare "num".
func Parse(s string) (EntityID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EntityID{}, fmt.Errorf("%w: empty string", ErrInvalidEntityID)
	}

	var checksum string
	if i := strings.IndexByte(s, '-'); i != -1 {
		s, checksum = s[:i], s[i+1:]
		if !isChecksumShaped(checksum) {
			return EntityID{}, fmt.Errorf("%w: malformed checksum %q", ErrInvalidEntityID, checksum)
		}
	}

	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		num, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return EntityID{}, fmt.Errorf("%w: %q", ErrInvalidEntityID, s)
		}
		return EntityID{Num: num, Checksum: checksum}, nil
	case 3:
		var nums [3]uint64
		for i, p := range parts {
			n, err := strconv.ParseUint(p, 10, 64)
			if err != nil {
				return EntityID{}, fmt.Errorf("%w: %q", ErrInvalidEntityID, s)
			}
			nums[i] = n
		}
		return EntityID{Shard: nums[0], Realm: nums[1], Num: nums[2], Checksum: checksum}, nil
	default:
		return EntityID{}, fmt.Errorf("%w: %q", ErrInvalidEntityID, s)
	}
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) EntityID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String implements fmt.Stringer. The checksum is never included.
func (id EntityID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

// StringWithChecksum formats the entity with the checksum computed for ledger.
func (id EntityID) StringWithChecksum(ledger LedgerID) string {
	return id.String() + "-" + Checksum(ledger, id)
}

// IsZero reports whether the id is 0.0.0.
func (id EntityID) IsZero() bool {
	return id.Shard == 0 && id.Realm == 0 && id.Num == 0
}

// Equal compares shard, realm and num, ignoring the checksum.
func (id EntityID) Equal(other EntityID) bool {
	return id.Shard == other.Shard && id.Realm == other.Realm && id.Num == other.Num
}

// WithoutChecksum strips the checksum.
func (id EntityID) WithoutChecksum() EntityID {
	id.Checksum = ""
	return id
}

func isChecksumShaped(s string) bool {
	if len(s) != checksumLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
