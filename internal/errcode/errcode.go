package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方可修正的错误（输入、容量、校验、状态冲突）
// - 5xxx：系统或外部依赖错误
const (
	OK               = 0
	InvalidInput     = 4000
	ResourceMissing  = 4004
	LimitReached     = 4009
	UploadInFlight   = 4010
	ValidationFailed = 4022
	RateLimited      = 4029
	SystemError      = 5000
	UploadFailed     = 5002
)
