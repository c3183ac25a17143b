package operations

import (
	"fmt"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

var _ txm.QueryData = AccountBalanceQuery{}

// AccountBalanceQuery asks for the hbar balance of an account, or of a
// contract when ContractID is set. It is free.
type AccountBalanceQuery struct {
	AccountID  entity.AccountID
	ContractID *entity.ContractID
}

func (q AccountBalanceQuery) WireQuery(header hapi.QueryHeader) hapi.QueryData {
	data := hapi.NewQueryData(hapi.QueryCryptoGetAccountBalance, header)
	if q.ContractID != nil {
		data.Body = hapi.AppendEntityID(data.Body, 3, *q.ContractID)
	} else {
		data.Body = hapi.AppendEntityID(data.Body, 2, q.AccountID)
	}
	return data
}

func (q AccountBalanceQuery) Method() string { return hapi.MethodCryptoGetBalance }

func (q AccountBalanceQuery) IsPaymentRequired() bool { return false }

func (q AccountBalanceQuery) ValidateChecksums(ledger entity.LedgerID) error {
	return entity.ValidateChecksums(ledger, &q.AccountID, q.ContractID)
}

// AccountBalance is the answer to an AccountBalanceQuery.
type AccountBalance struct {
	AccountID entity.AccountID
	// Tinybars is the hbar balance in tinybars.
	Tinybars uint64
}

// ParseAccountBalance decodes a CryptoGetAccountBalanceResponse.
func ParseAccountBalance(resp *hapi.Response) (AccountBalance, error) {
	var balance AccountBalance
	if resp.Field != hapi.QueryCryptoGetAccountBalance {
		return balance, fmt.Errorf("unexpected response field %d for balance query", resp.Field)
	}
	err := hapi.Walk(resp.Body, func(f hapi.Field) error {
		var err error
		switch f.Num {
		case 2:
			balance.AccountID, err = hapi.UnmarshalEntityID(f.Bytes)
		case 3:
			balance.Tinybars = f.Uint
		}
		return err
	})
	return balance, err
}

// AccountBalanceResponse encodes a successful balance answer, for fake nodes.
func AccountBalanceResponse(balance AccountBalance) []byte {
	body := hapi.AppendEntityID(nil, 2, balance.AccountID)
	body = hapi.AppendVarint(body, 3, balance.Tinybars)
	resp := hapi.Response{Field: hapi.QueryCryptoGetAccountBalance, Body: body}
	return resp.Marshal()
}
