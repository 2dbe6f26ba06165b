package passthrough

import "net/http"

// hopByHopHeaders is the RFC 7230 hop-by-hop header list spec.md §4.5
// names verbatim. Grounded on
// other_examples/a6952a32_felipecampolina-FCReverseProxy's
// sanitizeResponseHeaders/directRequest, which strip the same list (case-
// insensitively, via http.Header.Del) from both directions of a proxied
// request.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// connectionSpecificHeaders are additionally stripped from the incoming
// request only (spec.md §4.5): they describe the connection to us, not
// to the upstream, and would be wrong or misleading if forwarded as-is.
var connectionSpecificHeaders = []string{
	"Host",
	"Content-Length",
	"Content-Encoding",
}

// sanitizeRequestHeaders returns a copy of src with hop-by-hop and
// connection-specific headers removed, ready to send upstream.
func sanitizeRequestHeaders(src http.Header) http.Header {
	out := cloneHeader(src)
	for _, h := range hopByHopHeaders {
		out.Del(h)
	}
	for _, h := range connectionSpecificHeaders {
		out.Del(h)
	}
	return out
}

// sanitizeResponseHeaders returns a copy of an upstream response's headers
// with hop-by-hop headers removed, ready to relay to the client.
func sanitizeResponseHeaders(src http.Header) http.Header {
	out := cloneHeader(src)
	for _, h := range hopByHopHeaders {
		out.Del(h)
	}
	return out
}

func cloneHeader(src http.Header) http.Header {
	out := make(http.Header, len(src))
	for k, vv := range src {
		for _, v := range vv {
			out.Add(k, v)
		}
	}
	return out
}
