package hapi

import "strconv"

// Status is the network ResponseCodeEnum, used both for precheck verdicts and
// receipt statuses.
type Status int32

// https://github.com/hashgraph/hedera-protobufs/blob/main/services/response_code.proto
const (
	StatusOK                            Status = 0
	StatusInvalidTransaction            Status = 1
	StatusPayerAccountNotFound          Status = 2
	StatusInvalidNodeAccount            Status = 3
	StatusTransactionExpired            Status = 4
	StatusInvalidTransactionStart       Status = 5
	StatusInvalidTransactionDuration    Status = 6
	StatusInvalidSignature              Status = 7
	StatusMemoTooLong                   Status = 8
	StatusInsufficientTxFee             Status = 9
	StatusInsufficientPayerBalance      Status = 10
	StatusDuplicateTransaction          Status = 11
	StatusBusy                          Status = 12
	StatusNotSupported                  Status = 13
	StatusInvalidFileID                 Status = 14
	StatusInvalidAccountID              Status = 15
	StatusInvalidContractID             Status = 16
	StatusInvalidTransactionID          Status = 17
	StatusReceiptNotFound               Status = 18
	StatusRecordNotFound                Status = 19
	StatusUnknown                       Status = 21
	StatusSuccess                       Status = 22
	StatusFailInvalid                   Status = 23
	StatusFailFee                       Status = 24
	StatusFailBalance                   Status = 25
	StatusKeyRequired                   Status = 26
	StatusBadEncoding                   Status = 27
	StatusInsufficientAccountBalance    Status = 28
	StatusContractRevertExecuted        Status = 33
	StatusInvalidPayerSignature         Status = 43
	StatusPlatformNotActive             Status = 67
	StatusPlatformTransactionNotCreated Status = 69
	StatusInvalidPayerAccountID         Status = 71
	StatusAccountDeleted                Status = 72
	StatusInvalidTopicID                Status = 150
	StatusUnauthorized                  Status = 157
	StatusInvalidTokenID                Status = 167
	StatusTokenHasNoKycKey              Status = 177
	StatusTokenWasDeleted               Status = 179
	StatusTokenNotAssociatedToAccount   Status = 184
)

var statusNames = map[Status]string{
	StatusOK:                            "OK",
	StatusInvalidTransaction:            "INVALID_TRANSACTION",
	StatusPayerAccountNotFound:          "PAYER_ACCOUNT_NOT_FOUND",
	StatusInvalidNodeAccount:            "INVALID_NODE_ACCOUNT",
	StatusTransactionExpired:            "TRANSACTION_EXPIRED",
	StatusInvalidTransactionStart:       "INVALID_TRANSACTION_START",
	StatusInvalidTransactionDuration:    "INVALID_TRANSACTION_DURATION",
	StatusInvalidSignature:              "INVALID_SIGNATURE",
	StatusMemoTooLong:                   "MEMO_TOO_LONG",
	StatusInsufficientTxFee:             "INSUFFICIENT_TX_FEE",
	StatusInsufficientPayerBalance:      "INSUFFICIENT_PAYER_BALANCE",
	StatusDuplicateTransaction:          "DUPLICATE_TRANSACTION",
	StatusBusy:                          "BUSY",
	StatusNotSupported:                  "NOT_SUPPORTED",
	StatusInvalidFileID:                 "INVALID_FILE_ID",
	StatusInvalidAccountID:              "INVALID_ACCOUNT_ID",
	StatusInvalidContractID:             "INVALID_CONTRACT_ID",
	StatusInvalidTransactionID:          "INVALID_TRANSACTION_ID",
	StatusReceiptNotFound:               "RECEIPT_NOT_FOUND",
	StatusRecordNotFound:                "RECORD_NOT_FOUND",
	StatusUnknown:                       "UNKNOWN",
	StatusSuccess:                       "SUCCESS",
	StatusFailInvalid:                   "FAIL_INVALID",
	StatusFailFee:                       "FAIL_FEE",
	StatusFailBalance:                   "FAIL_BALANCE",
	StatusKeyRequired:                   "KEY_REQUIRED",
	StatusBadEncoding:                   "BAD_ENCODING",
	StatusInsufficientAccountBalance:    "INSUFFICIENT_ACCOUNT_BALANCE",
	StatusContractRevertExecuted:        "CONTRACT_REVERT_EXECUTED",
	StatusInvalidPayerSignature:         "INVALID_PAYER_SIGNATURE",
	StatusPlatformNotActive:             "PLATFORM_NOT_ACTIVE",
	StatusPlatformTransactionNotCreated: "PLATFORM_TRANSACTION_NOT_CREATED",
	StatusInvalidPayerAccountID:         "INVALID_PAYER_ACCOUNT_ID",
	StatusAccountDeleted:                "ACCOUNT_DELETED",
	StatusInvalidTopicID:                "INVALID_TOPIC_ID",
	StatusUnauthorized:                  "UNAUTHORIZED",
	StatusInvalidTokenID:                "INVALID_TOKEN_ID",
	StatusTokenHasNoKycKey:              "TOKEN_HAS_NO_KYC_KEY",
	StatusTokenWasDeleted:               "TOKEN_WAS_DELETED",
	StatusTokenNotAssociatedToAccount:   "TOKEN_NOT_ASSOCIATED_TO_ACCOUNT",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "STATUS_" + strconv.Itoa(int(s))
}

// Class is how the execution engine reacts to a precheck status.
type Class int

const (
	// ClassPermanent rejections are surfaced immediately and never retried.
	ClassPermanent Class = iota
	// ClassAccepted ends the execution successfully.
	ClassAccepted
	// ClassRetryable statuses are retried after a backoff.
	ClassRetryable
	// ClassNodeRetry statuses mark the node suspect and move to the next node without a delay.
	ClassNodeRetry
)

func (c Class) String() string {
	switch c {
	case ClassAccepted:
		return "accepted"
	case ClassRetryable:
		return "retryable"
	case ClassNodeRetry:
		return "node_retry"
	default:
		return "permanent"
	}
}

var precheckClasses = map[Status]Class{
	StatusOK:                            ClassAccepted,
	StatusSuccess:                       ClassAccepted,
	StatusBusy:                          ClassRetryable,
	StatusPlatformTransactionNotCreated: ClassRetryable,
	StatusPlatformNotActive:             ClassRetryable,
	StatusDuplicateTransaction:          ClassRetryable,
	StatusInvalidNodeAccount:            ClassNodeRetry,
}

// Classify partitions precheck statuses. Anything not listed is permanent.
func Classify(s Status) Class {
	if c, ok := precheckClasses[s]; ok {
		return c
	}
	return ClassPermanent
}

// IsReceiptPending reports whether a receipt query precheck status means the
// receipt is not available yet.
func IsReceiptPending(precheck Status) bool {
	switch precheck {
	case StatusUnknown, StatusReceiptNotFound, StatusBusy:
		return true
	}
	return false
}
