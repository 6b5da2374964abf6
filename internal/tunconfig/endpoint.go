package tunconfig

import (
	"strconv"
	"strings"

	"github.com/speedguard/sgvpn/internal/model"
)

// ParseEndpoint parses a token of the form ip/prefix or ip/prefix@suffix.
// Whatever follows the @ is discarded without interpretation.
func ParseEndpoint(token string) (model.Endpoint, error) {
	ip, rest, found := strings.Cut(token, "/")
	if !found || ip == "" {
		return model.Endpoint{}, &ConfigError{Kind: MalformedEndpoint, Token: token}
	}
	prefix, _, _ := strings.Cut(rest, "@")
	bits, err := strconv.Atoi(prefix)
	if err != nil {
		return model.Endpoint{}, &ConfigError{Kind: MalformedEndpoint, Token: token, Err: err}
	}
	return model.Endpoint{IP: ip, PrefixLength: bits}, nil
}
