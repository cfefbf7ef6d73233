package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/pkg/crypto/obfuscate"
)

const (
	okTag    = "OK"
	errorTag = "ERROR"
)

// ErrBadResponse is returned by DecodeResponse for unparseable input.
var ErrBadResponse = errors.New("protocol: bad response")

// Response is the result of one command.
type Response struct {
	OK      bool
	Data    string
	Code    domain.ErrorKind
	Message string
}

// OK builds a success response. Multiple data parts are comma-joined.
func OK(data ...string) *Response {
	return &Response{OK: true, Data: strings.Join(data, ",")}
}

// Error builds a failure response.
func Error(kind domain.ErrorKind, message string) *Response {
	return &Response{Code: kind, Message: message}
}

// FromError builds a failure response from err, using fallback when err
// carries no kind of its own.
func FromError(err error, fallback domain.ErrorKind) *Response {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return Error(de.Kind, de.WireMessage())
	}
	return Error(fallback, err.Error())
}

// Err converts a failure response back into a *domain.DomainError. It
// returns nil for success.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	return &domain.DomainError{Kind: r.Code, Message: r.Message}
}

// String returns the plaintext envelope.
func (r *Response) String() string {
	if r.OK {
		if r.Data == "" {
			return okTag
		}
		return okTag + "," + r.Data
	}
	return fmt.Sprintf("%s,%d,%s", errorTag, int(r.Code), r.Message)
}

// Encode returns the obfuscated envelope.
func (r *Response) Encode() string {
	return obfuscate.Obfuscate(r.String())
}

// ParseResponse parses a plaintext envelope.
func ParseResponse(plain string) (*Response, error) {
	tag, rest, hasRest := strings.Cut(plain, ",")
	switch tag {
	case okTag:
		return &Response{OK: true, Data: rest}, nil
	case errorTag:
		if !hasRest {
			return nil, ErrBadResponse
		}
		codeText, message, _ := strings.Cut(rest, ",")
		code, err := strconv.Atoi(codeText)
		if err != nil {
			return nil, fmt.Errorf("%w: code %q", ErrBadResponse, codeText)
		}
		return &Response{Code: domain.ErrorKind(code), Message: message}, nil
	default:
		return nil, fmt.Errorf("%w: tag %q", ErrBadResponse, tag)
	}
}

// DecodeResponse deobfuscates and parses a wire envelope.
func DecodeResponse(wire string) (*Response, error) {
	plain, err := obfuscate.Deobfuscate(wire)
	if err != nil {
		return nil, err
	}
	return ParseResponse(plain)
}
