package hedera

import (
	"context"

	"github.com/smartcontractkit/chainlink-common/pkg/loop"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/monitor"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

var (
	_ txm.QueryPayer   = &Operator{}
	_ monitor.Accounts = &Operator{}
)

// Operator is the account paying for the client's requests and the key it signs with.
type Operator struct {
	account   entity.AccountID
	ks        loop.Keystore
	publicKey string
}

func (o *Operator) AccountID() entity.AccountID { return o.account }

// PublicKey is the hex encoded public key the operator signs with.
func (o *Operator) PublicKey() string { return o.publicKey }

func (o *Operator) SignTransaction(ctx context.Context, tx *txm.FrozenTransaction) error {
	return tx.SignWithKeystore(ctx, o.ks, o.publicKey)
}

// Accounts lists the operator account for the balance monitor.
func (o *Operator) Accounts(context.Context) ([]string, error) {
	return []string{o.account.String()}, nil
}
