// Package apperr implements the gateway's two-kind error taxonomy: Fail for
// expected, user-visible conditions (bad input, not-found) and Internal for
// unexpected infrastructure failures. Both shapes carry a stable Code, a
// human message, optional structured Data, and an optional HTTP status
// override — see the code table in codes.go for the default message/status
// per code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind distinguishes expected ("fail") errors from unexpected ("error")
// infrastructure errors.
type Kind int

const (
	// KindFail marks an expected, user-visible condition. Default HTTP
	// status 400 unless the code table says otherwise.
	KindFail Kind = iota
	// KindInternal marks an unexpected/infrastructure condition. Default
	// HTTP status 500 unless the code table says otherwise.
	KindInternal
)

// Code is a stable, dotted error code such as "minecraft.invalid_username".
type Code string

// Error is the gateway's error shape: {code, message, data, status?}.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Data    map[string]any
	Status  int // 0 means "use the code table default"
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Fail constructs a user-visible KindFail error for code, applying the
// code table's default message/status unless data carries a "message"
// override.
func Fail(code Code, data map[string]any) *Error {
	return build(KindFail, code, data)
}

// Internal constructs an infrastructure KindInternal error for code.
func Internal(code Code, data map[string]any) *Error {
	return build(KindInternal, code, data)
}

func build(kind Kind, code Code, data map[string]any) *Error {
	info, ok := codeTable[code]
	if !ok {
		info = codeInfo{message: string(code)}
	}

	message := info.message
	if data != nil {
		if override, ok := data["message"].(string); ok && override != "" {
			message = override
		}
	}

	status := info.status
	if status == 0 {
		if kind == KindInternal {
			status = 500
		} else {
			status = 400
		}
	}

	return &Error{Kind: kind, Code: code, Message: message, Data: data, Status: status}
}

// As extracts an *Error from err, following the same contract as errors.As.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPStatus resolves the HTTP status to send for err: an explicit
// Status wins; else 404 for api.404; else 500 for KindInternal; else 400.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return 500
	}
	if appErr.Status != 0 {
		return appErr.Status
	}
	if appErr.Code == CodeNotFoundRoute {
		return 404
	}
	if appErr.Kind == KindInternal {
		return 500
	}
	return 400
}

// userFacingSuffixes holds the code suffixes of expected client-input conditions rather
// than failures worth counting as analytics errors.
var userFacingSuffixes = []string{
	"invalid_username",
	"invalid_id",
	"not_found",
	"invalid_identifier",
}

// IsUserFacing reports whether err represents a user-visible "fail" that
// should not be counted as an error for analytics accounting.
func IsUserFacing(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	if appErr.Kind != KindFail {
		return false
	}
	code := string(appErr.Code)
	for _, suffix := range userFacingSuffixes {
		if hasSuffix(code, suffix) {
			return true
		}
	}
	return false
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
