package entity

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// LedgerID is the network identity used to salt entity checksums.
type LedgerID []byte

var (
	Mainnet    = LedgerID{0x00}
	Testnet    = LedgerID{0x01}
	Previewnet = LedgerID{0x02}
)

// LedgerIDFromString accepts a well known network name or a hex encoded ledger id.
func LedgerIDFromString(s string) (LedgerID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	case "previewnet":
		return Previewnet, nil
	}

	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("invalid ledger id %q", s)
	}
	return LedgerID(b), nil
}

// String implements fmt.Stringer.
func (l LedgerID) String() string {
	switch {
	case l.Equal(Mainnet):
		return "mainnet"
	case l.Equal(Testnet):
		return "testnet"
	case l.Equal(Previewnet):
		return "previewnet"
	}
	return hex.EncodeToString(l)
}

func (l LedgerID) Equal(other LedgerID) bool {
	return bytes.Equal(l, other)
}

func (l LedgerID) IsEmpty() bool {
	return len(l) == 0
}
