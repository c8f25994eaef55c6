package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// redacted headers carry the session of whoever is crawling.
var redacted = []string{"Authorization", "Cookie", "Set-Cookie"}

func writeHeaders(out *strings.Builder, prefix string, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range headers[k] {
			if slices.Contains(redacted, http.CanonicalHeaderKey(k)) {
				v = "<redacted>"
			}
			fmt.Fprintf(out, "%s %s: %s\n", prefix, k, v)
		}
	}
}

func requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<unreadable body: %v>", err)
	}
	if body == nil || body == http.NoBody {
		return ""
	}
	defer body.Close()
	buff, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<unreadable body: %v>", err)
	}
	return string(buff)
}

// dumpExchange renders a request and its response the way curl -v does, headers marked with
// '>' for the request and '<' for the response.
func dumpExchange(res *resty.Response, elapsed time.Duration) string {
	var out strings.Builder

	fmt.Fprintf(&out, "> %s %s\n", res.Request.Method, res.Request.URL)
	var body string
	if raw := res.Request.RawRequest; raw != nil {
		writeHeaders(&out, ">", raw.Header)
		body = requestBody(raw)
	}
	if body != "" {
		fmt.Fprintf(&out, "\n%s\n", body)
	}

	final := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL.String()
	}
	fmt.Fprintf(&out, "\n< %s %s (%s)\n", res.Status(), final, elapsed.Round(time.Millisecond))
	writeHeaders(&out, "<", res.Header())
	fmt.Fprintf(&out, "\n%s", res.String())

	return out.String()
}
