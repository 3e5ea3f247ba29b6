package errs

// 通用错误码
const (
	ServerInternalError = 500

	ArgsError           = 1001
	NoPermissionError   = 1002
	RecordNotFoundError = 1004

	UserExistsError  = 1101
	CredentialsError = 1102

	TokenMissingError = 1501
	TokenInvalidError = 1502
	TokenExpiredError = 1503

	StoreUnavailableError = 1601
	ProtocolError         = 1701
)

var (
	ErrServerInternal = NewCodeError(ServerInternalError, "ServerInternalError")

	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrNoPermission   = NewCodeError(NoPermissionError, "NoPermissionError")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "RecordNotFoundError")

	ErrUserExists         = NewCodeError(UserExistsError, "UserExistsError")
	ErrInvalidCredentials = NewCodeError(CredentialsError, "InvalidCredentials")

	ErrTokenMissing = NewCodeError(TokenMissingError, "TokenMissing")
	ErrTokenInvalid = NewCodeError(TokenInvalidError, "TokenInvalid")
	ErrTokenExpired = NewCodeError(TokenExpiredError, "TokenExpired")

	ErrStoreUnavailable = NewCodeError(StoreUnavailableError, "StoreUnavailable")
	ErrProtocol         = NewCodeError(ProtocolError, "ProtocolError")
)

func init() {
	// expired 是 invalid 的一种
	_ = DefaultCodeRelation.Add(TokenInvalidError, TokenExpiredError)
}
