package hapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

// Query and Response oneof numbers. Both messages use the same numbering.
const (
	QueryCryptoGetAccountBalance protowire.Number = 7
	QueryCryptoGetInfo           protowire.Number = 9
	QueryFileGetContents         protowire.Number = 12
	QueryTransactionGetReceipt   protowire.Number = 14
)

type ResponseType int32

const (
	ResponseTypeAnswerOnly       ResponseType = 0
	ResponseTypeAnswerStateProof ResponseType = 1
	ResponseTypeCostAnswer       ResponseType = 2
)

// QueryHeader carries the payment transaction of a query, if any, and whether
// the node should answer or only quote the cost.
type QueryHeader struct {
	Payment      []byte // encoded Transaction message
	ResponseType ResponseType
}

func (h QueryHeader) Marshal() []byte {
	var b []byte
	b = AppendBytes(b, 1, h.Payment)
	b = AppendVarint(b, 2, uint64(h.ResponseType))
	return b
}

// QueryData is an encoded query: the oneof field number and the inner message,
// whose field 1 is always the QueryHeader.
type QueryData struct {
	Field protowire.Number
	Body  []byte
}

// NewQueryData starts a query body with its header. Callers append the query
// specific fields to Body.
func NewQueryData(field protowire.Number, header QueryHeader) QueryData {
	return QueryData{Field: field, Body: AppendMessage(nil, 1, header.Marshal())}
}

// Marshal encodes the outer Query message.
func (q QueryData) Marshal() []byte {
	return AppendMessage(nil, q.Field, q.Body)
}

// ParseQuery splits an encoded Query into its oneof field and header. Used by
// fake nodes in tests.
func ParseQuery(msg []byte) (QueryData, QueryHeader, error) {
	var q QueryData
	var h QueryHeader
	err := Walk(msg, func(f Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		q = QueryData{Field: f.Num, Body: f.Bytes}
		return Walk(f.Bytes, func(inner Field) error {
			if inner.Num != 1 {
				return nil
			}
			return Walk(inner.Bytes, func(hf Field) error {
				switch hf.Num {
				case 1:
					h.Payment = hf.Bytes
				case 2:
					h.ResponseType = ResponseType(int32(hf.Uint))
				}
				return nil
			})
		})
	})
	if err == nil && q.Field == 0 {
		err = fmt.Errorf("query has no body")
	}
	return q, h, err
}

// ResponseHeader is the precheck verdict of a query.
type ResponseHeader struct {
	PrecheckCode Status
	ResponseType ResponseType
	Cost         uint64
}

func (h ResponseHeader) Marshal() []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(h.PrecheckCode))
	b = AppendVarint(b, 2, uint64(h.ResponseType))
	b = AppendVarint(b, 3, h.Cost)
	return b
}

// Response is a decoded Response message. Body is the whole inner message,
// header included, for the query specific parser.
type Response struct {
	Field  protowire.Number
	Header ResponseHeader
	Body   []byte
}

// Marshal encodes the response. Body must not already contain a header.
func (r *Response) Marshal() []byte {
	inner := AppendMessage(nil, 1, r.Header.Marshal())
	inner = append(inner, r.Body...)
	return AppendMessage(nil, r.Field, inner)
}

func (r *Response) Unmarshal(msg []byte) error {
	*r = Response{}
	err := Walk(msg, func(f Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		r.Field, r.Body = f.Num, f.Bytes
		return Walk(f.Bytes, func(inner Field) error {
			if inner.Num != 1 {
				return nil
			}
			return Walk(inner.Bytes, func(hf Field) error {
				switch hf.Num {
				case 1:
					r.Header.PrecheckCode = Status(int32(hf.Uint))
				case 2:
					r.Header.ResponseType = ResponseType(int32(hf.Uint))
				case 3:
					r.Header.Cost = hf.Uint
				}
				return nil
			})
		})
	})
	if err == nil && r.Field == 0 {
		return fmt.Errorf("response has no body")
	}
	return err
}

// ExchangeRate is the hbar to cent rate active until ExpirationTime.
type ExchangeRate struct {
	HbarEquiv      int32
	CentEquiv      int32
	ExpirationTime time.Time
}

func (e *ExchangeRate) marshal() []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(int64(e.HbarEquiv)))
	b = AppendVarint(b, 2, uint64(int64(e.CentEquiv)))
	if !e.ExpirationTime.IsZero() {
		b = AppendMessage(b, 3, AppendVarint(nil, 1, uint64(e.ExpirationTime.Unix())))
	}
	return b
}

func (e *ExchangeRate) unmarshal(msg []byte) error {
	return Walk(msg, func(f Field) error {
		var err error
		switch f.Num {
		case 1:
			e.HbarEquiv = int32(f.Uint)
		case 2:
			e.CentEquiv = int32(f.Uint)
		case 3:
			e.ExpirationTime, err = unmarshalTimestamp(f.Bytes)
		}
		return err
	})
}

// ExchangeRateSet holds the current and next exchange rates.
type ExchangeRateSet struct {
	Current ExchangeRate
	Next    ExchangeRate
}

// TransactionReceipt is the consensus outcome of a transaction. Entity fields
// are set only when the transaction created that entity.
type TransactionReceipt struct {
	Status                 Status
	AccountID              *entity.AccountID
	FileID                 *entity.FileID
	ContractID             *entity.ContractID
	ExchangeRate           *ExchangeRateSet
	TopicID                *entity.TopicID
	TopicSequenceNumber    uint64
	TopicRunningHash       []byte
	TokenID                *entity.TokenID
	NewTotalSupply         uint64
	ScheduleID             *entity.ScheduleID
	ScheduledTransactionID *entity.TransactionID
	SerialNumbers          []int64
}

func (r *TransactionReceipt) Marshal() []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(r.Status))
	appendOptional := func(num protowire.Number, id *entity.EntityID) {
		if id != nil {
			b = AppendEntityID(b, num, *id)
		}
	}
	appendOptional(2, r.AccountID)
	appendOptional(3, r.FileID)
	appendOptional(4, r.ContractID)
	if r.ExchangeRate != nil {
		var set []byte
		set = AppendMessage(set, 1, r.ExchangeRate.Current.marshal())
		set = AppendMessage(set, 2, r.ExchangeRate.Next.marshal())
		b = AppendMessage(b, 5, set)
	}
	appendOptional(6, r.TopicID)
	b = AppendVarint(b, 7, r.TopicSequenceNumber)
	b = AppendBytes(b, 8, r.TopicRunningHash)
	appendOptional(10, r.TokenID)
	b = AppendVarint(b, 11, r.NewTotalSupply)
	appendOptional(12, r.ScheduleID)
	if r.ScheduledTransactionID != nil {
		b = AppendMessage(b, 13, MarshalTransactionID(*r.ScheduledTransactionID))
	}
	return AppendPackedInt64(b, 14, r.SerialNumbers)
}

func (r *TransactionReceipt) Unmarshal(msg []byte) error {
	*r = TransactionReceipt{}
	optional := func(v []byte) (*entity.EntityID, error) {
		id, err := UnmarshalEntityID(v)
		return &id, err
	}
	return Walk(msg, func(f Field) error {
		var err error
		switch f.Num {
		case 1:
			r.Status = Status(int32(f.Uint))
		case 2:
			r.AccountID, err = optional(f.Bytes)
		case 3:
			r.FileID, err = optional(f.Bytes)
		case 4:
			r.ContractID, err = optional(f.Bytes)
		case 5:
			set := &ExchangeRateSet{}
			err = Walk(f.Bytes, func(rf Field) error {
				switch rf.Num {
				case 1:
					return set.Current.unmarshal(rf.Bytes)
				case 2:
					return set.Next.unmarshal(rf.Bytes)
				}
				return nil
			})
			r.ExchangeRate = set
		case 6:
			r.TopicID, err = optional(f.Bytes)
		case 7:
			r.TopicSequenceNumber = f.Uint
		case 8:
			r.TopicRunningHash = f.Bytes
		case 10:
			r.TokenID, err = optional(f.Bytes)
		case 11:
			r.NewTotalSupply = f.Uint
		case 12:
			r.ScheduleID, err = optional(f.Bytes)
		case 13:
			var id entity.TransactionID
			id, err = UnmarshalTransactionID(f.Bytes)
			r.ScheduledTransactionID = &id
		case 14:
			var serials []int64
			serials, err = f.Int64s()
			r.SerialNumbers = append(r.SerialNumbers, serials...)
		}
		return err
	})
}

// TransactionGetReceiptQuery builds the free receipt query for id.
func TransactionGetReceiptQuery(id entity.TransactionID) QueryData {
	q := NewQueryData(QueryTransactionGetReceipt, QueryHeader{ResponseType: ResponseTypeAnswerOnly})
	q.Body = AppendMessage(q.Body, 2, MarshalTransactionID(id))
	return q
}

// ParseTransactionGetReceiptResponse extracts the receipt from a decoded response.
func ParseTransactionGetReceiptResponse(resp *Response) (*TransactionReceipt, error) {
	if resp.Field != QueryTransactionGetReceipt {
		return nil, fmt.Errorf("unexpected response field %d for receipt query", resp.Field)
	}
	receipt := &TransactionReceipt{}
	err := Walk(resp.Body, func(f Field) error {
		if f.Num == 2 {
			return receipt.Unmarshal(f.Bytes)
		}
		return nil
	})
	return receipt, err
}

// ReceiptResponse is the body of a TransactionGetReceiptResponse, for fake nodes.
func ReceiptResponse(precheck Status, receipt *TransactionReceipt) []byte {
	resp := &Response{Field: QueryTransactionGetReceipt, Header: ResponseHeader{PrecheckCode: precheck}}
	if receipt != nil {
		resp.Body = AppendMessage(nil, 2, receipt.Marshal())
	}
	return resp.Marshal()
}
