package passthrough

import (
	"errors"
	"net"
	"strings"

	"github.com/n9te9/subgraph-proxy/internal/apperr"
)

// classifyTransportError maps a transport-level failure (the upstream was
// never reached) to the status/code spec.md §4.5's error matrix names.
func classifyTransportError(err error) *apperr.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.GatewayTimeout, "", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return apperr.Wrap(apperr.ServiceUnavailable, "", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Err != nil && strings.Contains(opErr.Err.Error(), "connection refused") {
			return apperr.Wrap(apperr.ServiceUnavailable, "", err)
		}
		return apperr.Wrap(apperr.BadGateway, "", err)
	}

	return apperr.Wrap(apperr.InternalServerError, "", err)
}
