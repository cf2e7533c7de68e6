package serverutils

// BaseResponse is the JSON envelope every REST endpoint answers with.
type BaseResponse[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) BaseResponse[T] {
	return BaseResponse[T]{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) BaseResponse[any] {
	return BaseResponse[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// FailureResponse carries the failure kind of a turn next to the message.
type FailureResponse struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func TurnFailureResponse(code int, kind, reason string) BaseResponse[FailureResponse] {
	return BaseResponse[FailureResponse]{
		Success: false,
		Code:    code,
		Message: "Turn failed",
		Data:    FailureResponse{Kind: kind, Reason: reason},
	}
}
