package operations

import (
	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// TokenPause stops all operations on a token. Signed by the pause key.
type TokenPause struct {
	TokenID entity.TokenID
}

func (p TokenPause) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.TransactionData{Field: hapi.BodyTokenPause, Body: hapi.AppendEntityID(nil, 1, p.TokenID)}
}

func (p TokenPause) Method() string { return hapi.MethodPauseToken }

func (p TokenPause) ValidateChecksums(ledger entity.LedgerID) error {
	return p.TokenID.ValidateChecksum(ledger)
}

// TokenUnpause resumes a paused token. Signed by the pause key.
type TokenUnpause struct {
	TokenID entity.TokenID
}

func (p TokenUnpause) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.TransactionData{Field: hapi.BodyTokenUnpause, Body: hapi.AppendEntityID(nil, 1, p.TokenID)}
}

func (p TokenUnpause) Method() string { return hapi.MethodUnpauseToken }

func (p TokenUnpause) ValidateChecksums(ledger entity.LedgerID) error {
	return p.TokenID.ValidateChecksum(ledger)
}

// TokenUnfreeze lets account transact with the token again. Signed by the freeze key.
type TokenUnfreeze struct {
	TokenID   entity.TokenID
	AccountID entity.AccountID
}

func (u TokenUnfreeze) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.TransactionData{Field: hapi.BodyTokenUnfreeze, Body: tokenAccountBody(u.TokenID, u.AccountID)}
}

func (u TokenUnfreeze) Method() string { return hapi.MethodUnfreezeTokenAccount }

func (u TokenUnfreeze) ValidateChecksums(ledger entity.LedgerID) error {
	return entity.ValidateChecksums(ledger, &u.TokenID, &u.AccountID)
}

// TokenRevokeKyc removes the KYC flag of account for the token. Signed by the KYC key.
type TokenRevokeKyc struct {
	TokenID   entity.TokenID
	AccountID entity.AccountID
}

func (r TokenRevokeKyc) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.TransactionData{Field: hapi.BodyTokenRevokeKyc, Body: tokenAccountBody(r.TokenID, r.AccountID)}
}

func (r TokenRevokeKyc) Method() string { return hapi.MethodRevokeKycFromToken }

func (r TokenRevokeKyc) ValidateChecksums(ledger entity.LedgerID) error {
	return entity.ValidateChecksums(ledger, &r.TokenID, &r.AccountID)
}

// TokenWipe burns Amount fungible units, or the listed NFT serials, held by
// account. Signed by the wipe key.
type TokenWipe struct {
	TokenID       entity.TokenID
	AccountID     entity.AccountID
	Amount        uint64
	SerialNumbers []int64
}

func (w TokenWipe) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	b := tokenAccountBody(w.TokenID, w.AccountID)
	b = hapi.AppendVarint(b, 3, w.Amount)
	b = hapi.AppendPackedInt64(b, 4, w.SerialNumbers)
	return hapi.TransactionData{Field: hapi.BodyTokenWipe, Body: b}
}

func (w TokenWipe) Method() string { return hapi.MethodWipeTokenAccount }

func (w TokenWipe) ValidateChecksums(ledger entity.LedgerID) error {
	return entity.ValidateChecksums(ledger, &w.TokenID, &w.AccountID)
}

func tokenAccountBody(token entity.TokenID, account entity.AccountID) []byte {
	b := hapi.AppendEntityID(nil, 1, token)
	return hapi.AppendEntityID(b, 2, account)
}
