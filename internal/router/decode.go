// Package router implements spec.md §4.1's Request Router: decode an
// inbound proxy request, decide mock vs. passthrough, and dispatch.
package router

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/n9te9/subgraph-proxy/internal/apperr"
)

// hostPattern is spec.md §4.1's constraint on the decoded target URL's
// host once it isn't localhost or an IPv4 dotted quad: a DNS-style name.
var hostPattern = regexp.MustCompile(`(?i)^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

var ipv4Pattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// GraphQLBody is the inbound JSON payload: a query plus optional
// variables and operation name.
type GraphQLBody struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// DecodedRequest is a Request Router input, fully validated.
type DecodedRequest struct {
	TargetURL    string
	SubgraphName string
	Body         GraphQLBody
	RawBody      []byte
}

// Decode implements spec.md §4.1's decoding contract: the path segment is
// percent-decoded exactly once and must parse as an absolute http(s) URL
// with a host that is localhost, an IPv4 dotted quad, or a DNS-style name.
// x-subgraph-name is required and non-empty.
func Decode(encodedTargetURL, subgraphNameHeader string, rawBody []byte) (*DecodedRequest, error) {
	targetURL, err := decodeTargetURL(encodedTargetURL)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(subgraphNameHeader) == "" {
		return nil, apperr.New(apperr.InvalidGraphQLRequest, "missing required header x-subgraph-name")
	}

	var body GraphQLBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, apperr.Wrap(apperr.InvalidGraphQLRequest, "request body is not valid JSON", err)
	}

	return &DecodedRequest{
		TargetURL:    targetURL,
		SubgraphName: subgraphNameHeader,
		Body:         body,
		RawBody:      rawBody,
	}, nil
}

func decodeTargetURL(encoded string) (string, error) {
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidURL, "target URL segment is not validly percent-encoded", err)
	}

	u, err := url.Parse(decoded)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidURL, "target URL could not be parsed", err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperr.New(apperr.InvalidURL, "target URL must be an absolute http or https URL")
	}

	host := u.Hostname()
	if host == "" {
		return "", apperr.New(apperr.InvalidURL, "target URL must have a non-empty host")
	}

	if !isAllowedHost(host) {
		return "", apperr.New(apperr.InvalidURL, "target URL host is not a recognized form")
	}

	return decoded, nil
}

func isAllowedHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ipv4Pattern.MatchString(host) {
		return octetsInRange(host)
	}
	return hostPattern.MatchString(host)
}

func octetsInRange(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 3 {
			return false
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}
