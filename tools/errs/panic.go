package errs

import "fmt"

func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return &CodeError{
		Code:   ServerInternalError,
		Msg:    "panic error",
		Detail: fmt.Sprint(r),
	}
}
