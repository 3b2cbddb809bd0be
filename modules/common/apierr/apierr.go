// Package apierr tags failures with a Kind at the point where a remote call
// result is first interpreted. Retry policies dispatch on the Kind only.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindGateway    Kind = "gateway"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// Error - 분류된 외부 호출 에러
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New - 직접 Kind를 지정해서 생성
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap - 원인 에러를 보존하면서 Kind 지정
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation - 재시도할 의미가 없는 입력/결과 오류
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// FromResponse - HTTP 응답 상태코드로 분류 (2xx는 nil)
func FromResponse(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	e := &Error{Op: op, Status: status, Message: truncate(strings.TrimSpace(string(body)), 300)}
	switch {
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		e.Kind = KindGateway
	case status >= 400 && status < 500:
		e.Kind = KindValidation
	default:
		e.Kind = KindUnknown
	}
	return e
}

// FromTransport - http.Client.Do 등 전송 계층 에러 분류
func FromTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	kind := KindUnknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		// 호출자가 취소한 경우는 재시도 대상 아님
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &netErr):
		kind = KindNetwork
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf - 에러 체인에서 Kind 추출 (없으면 Unknown)
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable - network / gateway만 재시도 대상
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindGateway:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
