package hapi

// Full gRPC method names of the services used by this module.
const (
	MethodCryptoTransfer         = "/proto.CryptoService/cryptoTransfer"
	MethodCryptoGetBalance       = "/proto.CryptoService/cryptoGetBalance"
	MethodGetTransactionReceipts = "/proto.CryptoService/getTransactionReceipts"
	MethodGetFileContent         = "/proto.FileService/getFileContent"
	MethodDeleteTopic            = "/proto.ConsensusService/deleteTopic"
	MethodRevokeKycFromToken     = "/proto.TokenService/revokeKycFromTokenAccount"
	MethodPauseToken             = "/proto.TokenService/pauseToken"
	MethodUnpauseToken           = "/proto.TokenService/unpauseToken"
	MethodUnfreezeTokenAccount   = "/proto.TokenService/unfreezeTokenAccount"
	MethodWipeTokenAccount       = "/proto.TokenService/wipeTokenAccount"
	MethodDeleteContract         = "/proto.SmartContractService/deleteContract"
)
