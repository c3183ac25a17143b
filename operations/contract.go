package operations

import (
	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// ContractDelete marks a contract deleted and moves its remaining hbar to
// either TransferAccountID or TransferContractID. When both are set the
// account wins.
type ContractDelete struct {
	ContractID         entity.ContractID
	TransferAccountID  *entity.AccountID
	TransferContractID *entity.ContractID
	PermanentRemoval   bool
}

func (d ContractDelete) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	b := hapi.AppendEntityID(nil, 1, d.ContractID)
	switch {
	case d.TransferAccountID != nil:
		b = hapi.AppendEntityID(b, 2, *d.TransferAccountID)
	case d.TransferContractID != nil:
		b = hapi.AppendEntityID(b, 3, *d.TransferContractID)
	}
	b = hapi.AppendBool(b, 4, d.PermanentRemoval)
	return hapi.TransactionData{Field: hapi.BodyContractDeleteInstance, Body: b}
}

func (d ContractDelete) Method() string { return hapi.MethodDeleteContract }

func (d ContractDelete) ValidateChecksums(ledger entity.LedgerID) error {
	return entity.ValidateChecksums(ledger, &d.ContractID, d.TransferAccountID, d.TransferContractID)
}
