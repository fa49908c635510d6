package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// クライアント入力系（リトライしない）
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidCartLine    = errors.New("invalid cart line")
	ErrUnauthenticated    = errors.New("unauthorized")
	ErrUnprocessableOrder = errors.New("unable to process order (total 0)")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
)

type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 番兵エラーをステータス付きでくるむ。errors.Isで判定できる
func wrapHTTPError(status int, err error, message string) error {
	if message == "" {
		message = err.Error()
	}
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     err,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func errDB(err error) error {
	return wrapHTTPError(http.StatusInternalServerError, err, "db error")
}
