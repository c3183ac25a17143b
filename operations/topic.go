package operations

import (
	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// TopicDelete deletes a consensus topic. It must be signed by the topic admin key.
type TopicDelete struct {
	TopicID entity.TopicID
}

func (d TopicDelete) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.TransactionData{
		Field: hapi.BodyConsensusDeleteTopic,
		Body:  hapi.AppendEntityID(nil, 1, d.TopicID),
	}
}

func (d TopicDelete) Method() string { return hapi.MethodDeleteTopic }

func (d TopicDelete) ValidateChecksums(ledger entity.LedgerID) error {
	return d.TopicID.ValidateChecksum(ledger)
}
