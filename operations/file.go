package operations

import (
	"fmt"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

var _ txm.QueryData = FileContentsQuery{}

// FileContentsQuery reads the contents of a file. It is a paid query.
type FileContentsQuery struct {
	FileID entity.FileID
}

func (q FileContentsQuery) WireQuery(header hapi.QueryHeader) hapi.QueryData {
	data := hapi.NewQueryData(hapi.QueryFileGetContents, header)
	data.Body = hapi.AppendEntityID(data.Body, 2, q.FileID)
	return data
}

func (q FileContentsQuery) Method() string { return hapi.MethodGetFileContent }

func (q FileContentsQuery) IsPaymentRequired() bool { return true }

func (q FileContentsQuery) ValidateChecksums(ledger entity.LedgerID) error {
	return q.FileID.ValidateChecksum(ledger)
}

// ParseFileContents decodes a FileGetContentsResponse.
func ParseFileContents(resp *hapi.Response) ([]byte, error) {
	if resp.Field != hapi.QueryFileGetContents {
		return nil, fmt.Errorf("unexpected response field %d for file contents query", resp.Field)
	}
	var contents []byte
	err := hapi.Walk(resp.Body, func(f hapi.Field) error {
		if f.Num != 2 {
			return nil
		}
		return hapi.Walk(f.Bytes, func(fc hapi.Field) error {
			if fc.Num == 2 {
				contents = fc.Bytes
			}
			return nil
		})
	})
	return contents, err
}

// FileContentsBody is the query specific part of a successful file contents
// answer, for fake nodes.
func FileContentsBody(file entity.FileID, contents []byte) []byte {
	fc := hapi.AppendEntityID(nil, 1, file)
	fc = hapi.AppendBytes(fc, 2, contents)
	return hapi.AppendMessage(nil, 2, fc)
}
