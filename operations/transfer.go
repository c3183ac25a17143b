package operations

import (
	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

var (
	_ txm.TransactionData   = (*Transfer)(nil)
	_ txm.ChecksumValidator = (*Transfer)(nil)
)

// Transfer moves hbar between accounts. Amounts are tinybars, debits
// negative, and must sum to zero for the network to accept the transfer.
type Transfer struct {
	transfers []hapi.Transfer
}

func NewTransfer() *Transfer {
	return &Transfer{}
}

// AddHbarTransfer adds amount to account. Repeated accounts are merged.
func (t *Transfer) AddHbarTransfer(account entity.AccountID, amount int64) *Transfer {
	return t.add(account, amount, false)
}

// AddApprovedHbarTransfer debits account through a previously granted allowance.
func (t *Transfer) AddApprovedHbarTransfer(account entity.AccountID, amount int64) *Transfer {
	return t.add(account, amount, true)
}

func (t *Transfer) add(account entity.AccountID, amount int64, approved bool) *Transfer {
	i := slices.IndexFunc(t.transfers, func(x hapi.Transfer) bool {
		return x.AccountID.Equal(account) && x.IsApproval == approved
	})
	if i >= 0 {
		t.transfers[i].Amount += amount
		return t
	}
	t.transfers = append(t.transfers, hapi.Transfer{AccountID: account, Amount: amount, IsApproval: approved})
	return t
}

// HbarTransfers returns the merged transfers in insertion order.
func (t *Transfer) HbarTransfers() []hapi.Transfer {
	return slices.Clone(t.transfers)
}

// Balance is the sum of all amounts, zero for a valid transfer.
func (t *Transfer) Balance() int64 {
	var sum int64
	for _, x := range t.transfers {
		sum += x.Amount
	}
	return sum
}

func (t *Transfer) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.CryptoTransferBody(t.transfers)
}

func (t *Transfer) Method() string { return hapi.MethodCryptoTransfer }

func (t *Transfer) ValidateChecksums(ledger entity.LedgerID) error {
	ids := make([]*entity.EntityID, len(t.transfers))
	for i := range t.transfers {
		ids[i] = &t.transfers[i].AccountID
	}
	return entity.ValidateChecksums(ledger, ids...)
}
