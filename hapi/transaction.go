package hapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

// TransactionBody data oneof numbers.
const (
	BodyCryptoTransfer         protowire.Number = 14
	BodyContractDeleteInstance protowire.Number = 22
	BodyConsensusDeleteTopic   protowire.Number = 26
	BodyTokenUnfreeze          protowire.Number = 32
	BodyTokenRevokeKyc         protowire.Number = 34
	BodyTokenWipe              protowire.Number = 39
	BodyTokenPause             protowire.Number = 46
	BodyTokenUnpause           protowire.Number = 47
)

// TransactionData is the operation specific part of a TransactionBody: the
// oneof field number and the encoded inner message.
type TransactionData struct {
	Field protowire.Number
	Body  []byte
}

// TransactionBody is the signed content of a transaction. One body exists per
// target node since the node account is part of it.
type TransactionBody struct {
	TransactionID  entity.TransactionID
	NodeAccountID  entity.AccountID
	TransactionFee uint64
	ValidDuration  time.Duration
	Memo           string
	Data           TransactionData
}

func (b *TransactionBody) Marshal() []byte {
	var out []byte
	out = AppendMessage(out, 1, MarshalTransactionID(b.TransactionID))
	out = AppendEntityID(out, 2, b.NodeAccountID)
	out = AppendVarint(out, 3, b.TransactionFee)
	var duration []byte
	duration = AppendVarint(duration, 1, uint64(int64(b.ValidDuration/time.Second)))
	out = AppendMessage(out, 4, duration)
	out = AppendString(out, 6, b.Memo)
	if b.Data.Field != 0 {
		out = AppendMessage(out, b.Data.Field, b.Data.Body)
	}
	return out
}

func (b *TransactionBody) Unmarshal(msg []byte) error {
	*b = TransactionBody{}
	return Walk(msg, func(f Field) error {
		var err error
		switch f.Num {
		case 1:
			b.TransactionID, err = UnmarshalTransactionID(f.Bytes)
		case 2:
			b.NodeAccountID, err = UnmarshalEntityID(f.Bytes)
		case 3:
			b.TransactionFee = f.Uint
		case 4:
			err = Walk(f.Bytes, func(d Field) error {
				if d.Num == 1 {
					b.ValidDuration = time.Duration(d.Int64()) * time.Second
				}
				return nil
			})
		case 5:
			// generateRecord, deprecated
		case 6:
			b.Memo = string(f.Bytes)
		default:
			if f.Type == protowire.BytesType {
				b.Data = TransactionData{Field: f.Num, Body: f.Bytes}
			}
		}
		return err
	})
}

// SignaturePair is one signature over the body bytes. Exactly one of Ed25519
// and ECDSASecp256k1 is set.
type SignaturePair struct {
	PubKeyPrefix   []byte
	Ed25519        []byte
	ECDSASecp256k1 []byte
}

func (p *SignaturePair) marshal() []byte {
	var b []byte
	b = AppendBytes(b, 1, p.PubKeyPrefix)
	b = AppendBytes(b, 3, p.Ed25519)
	b = AppendBytes(b, 6, p.ECDSASecp256k1)
	return b
}

func (p *SignaturePair) unmarshal(msg []byte) error {
	return Walk(msg, func(f Field) error {
		switch f.Num {
		case 1:
			p.PubKeyPrefix = f.Bytes
		case 3:
			p.Ed25519 = f.Bytes
		case 6:
			p.ECDSASecp256k1 = f.Bytes
		}
		return nil
	})
}

// SignedTransaction pairs the body bytes with the signatures covering them.
type SignedTransaction struct {
	BodyBytes []byte
	SigPairs  []SignaturePair
}

func (s *SignedTransaction) Marshal() []byte {
	var sigMap []byte
	for i := range s.SigPairs {
		sigMap = AppendMessage(sigMap, 1, s.SigPairs[i].marshal())
	}
	var b []byte
	b = AppendBytes(b, 1, s.BodyBytes)
	b = AppendMessage(b, 2, sigMap)
	return b
}

func (s *SignedTransaction) Unmarshal(msg []byte) error {
	*s = SignedTransaction{}
	return Walk(msg, func(f Field) error {
		switch f.Num {
		case 1:
			s.BodyBytes = f.Bytes
		case 2:
			return Walk(f.Bytes, func(p Field) error {
				if p.Num != 1 {
					return nil
				}
				var pair SignaturePair
				if err := pair.unmarshal(p.Bytes); err != nil {
					return err
				}
				s.SigPairs = append(s.SigPairs, pair)
				return nil
			})
		}
		return nil
	})
}

// MarshalTransaction wraps signed transaction bytes into the Transaction message
// accepted by every transaction rpc.
func MarshalTransaction(signedTransactionBytes []byte) []byte {
	return AppendBytes(nil, 5, signedTransactionBytes)
}

// UnmarshalTransaction returns the signed transaction bytes of a Transaction message.
func UnmarshalTransaction(msg []byte) ([]byte, error) {
	var signed []byte
	err := Walk(msg, func(f Field) error {
		if f.Num == 5 {
			signed = f.Bytes
		}
		return nil
	})
	if err == nil && signed == nil {
		return nil, fmt.Errorf("transaction has no signedTransactionBytes")
	}
	return signed, err
}

// TransactionResponse is the precheck verdict of a submitted transaction.
type TransactionResponse struct {
	PrecheckCode Status
	Cost         uint64
}

func (r *TransactionResponse) Marshal() []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(r.PrecheckCode))
	b = AppendVarint(b, 2, r.Cost)
	return b
}

func (r *TransactionResponse) Unmarshal(msg []byte) error {
	*r = TransactionResponse{}
	return Walk(msg, func(f Field) error {
		switch f.Num {
		case 1:
			r.PrecheckCode = Status(int32(f.Uint))
		case 2:
			r.Cost = f.Uint
		}
		return nil
	})
}

// Transfer is one hbar movement of a CryptoTransfer. Debits are negative.
type Transfer struct {
	AccountID  entity.AccountID
	Amount     int64
	IsApproval bool
}

// CryptoTransferBody encodes a CryptoTransferTransactionBody moving hbar only.
func CryptoTransferBody(transfers []Transfer) TransactionData {
	var list []byte
	for _, t := range transfers {
		var aa []byte
		aa = AppendEntityID(aa, 1, t.AccountID)
		aa = AppendSint64(aa, 2, t.Amount)
		aa = AppendBool(aa, 3, t.IsApproval)
		list = AppendMessage(list, 1, aa)
	}
	return TransactionData{Field: BodyCryptoTransfer, Body: AppendMessage(nil, 1, list)}
}

// ParseCryptoTransferBody is the inverse of CryptoTransferBody.
func ParseCryptoTransferBody(body []byte) ([]Transfer, error) {
	var transfers []Transfer
	err := Walk(body, func(f Field) error {
		if f.Num != 1 {
			return nil
		}
		return Walk(f.Bytes, func(aa Field) error {
			if aa.Num != 1 {
				return nil
			}
			var t Transfer
			err := Walk(aa.Bytes, func(x Field) error {
				var err error
				switch x.Num {
				case 1:
					t.AccountID, err = UnmarshalEntityID(x.Bytes)
				case 2:
					t.Amount = x.Sint64()
				case 3:
					t.IsApproval = x.Uint != 0
				}
				return err
			})
			transfers = append(transfers, t)
			return err
		})
	})
	return transfers, err
}
