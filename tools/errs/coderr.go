package errs

import (
	"fmt"
	"strconv"
	"strings"

	pkgerr "github.com/pkg/errors"
)

// CodeError is the error shape surfaced at the HTTP boundary.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

// WrapMsg returns a stack-carrying error with extra detail appended.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerr.WithStack(retErr)
}

func (e *CodeError) Is(err error) bool {
	var codeErr *CodeError
	if !pkgerr.As(err, &codeErr) {
		return err == nil && e == nil
	}
	if e == nil {
		return false
	}
	return e.Code == codeErr.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Unpack extracts the CodeError out of a wrapped chain, nil if none.
func Unpack(err error) *CodeError {
	var codeErr *CodeError
	if pkgerr.As(err, &codeErr) {
		return codeErr
	}
	return nil
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerr.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		sb.WriteString(" ")
		sb.WriteString(toStr(kv[i]))
		sb.WriteString("=")
		sb.WriteString(toStr(kv[i+1]))
	}
	return sb.String()
}

func toStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(v)
	}
}
