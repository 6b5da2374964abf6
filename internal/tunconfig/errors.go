package tunconfig

import (
	"errors"
	"fmt"
)

// ErrBadConfig is the generic error returned for invalid tunnel configurations.
var ErrBadConfig = errors.New("tunconfig: bad config")

// ErrorKind classifies a [ConfigError].
type ErrorKind int

const (
	// MissingField means a required field is absent.
	MissingField = ErrorKind(iota)

	// MalformedEndpoint means an address token is not ip/prefix[@suffix].
	MalformedEndpoint

	// InvalidField means a field is present with the wrong JSON type.
	InvalidField

	// Syntax means the input is not a JSON document.
	Syntax
)

// String maps an [ErrorKind] to a string.
func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case MalformedEndpoint:
		return "malformed endpoint"
	case InvalidField:
		return "invalid field"
	case Syntax:
		return "syntax error"
	default:
		return "unknown"
	}
}

// ConfigError reports which part of the configuration is wrong. It always
// matches [ErrBadConfig] with errors.Is.
type ConfigError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Path is the dotted path of the offending field, when known.
	Path string

	// Token is the offending endpoint token for [MalformedEndpoint].
	Token string

	// Err is the underlying decoding error, if any.
	Err error
}

// Error implements error.
func (e *ConfigError) Error() string {
	var detail string
	switch e.Kind {
	case MalformedEndpoint:
		detail = fmt.Sprintf("%q", e.Token)
		if e.Path != "" {
			detail = e.Path + ": " + detail
		}
	default:
		detail = e.Path
	}
	msg := fmt.Sprintf("%s: %s", ErrBadConfig.Error(), e.Kind)
	if detail != "" {
		msg += ": " + detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns [ErrBadConfig] and the underlying error, if any.
func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBadConfig, e.Err}
	}
	return []error{ErrBadConfig}
}

func missing(path string) error {
	return &ConfigError{Kind: MissingField, Path: path}
}
