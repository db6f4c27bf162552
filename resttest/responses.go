package resttest

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"github.com/gaborage/go-restclient/restclient"
)

// JSONResponse builds a response carrying v marshaled as JSON. Marshal
// failures panic: scripts are fixtures, not runtime inputs.
func JSONResponse(status int, v any) *restclient.Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("resttest: marshal JSON response: %v", err))
	}
	return BytesResponse(status, "application/json", body)
}

// TextResponse builds a plain-text response.
func TextResponse(status int, body string) *restclient.Response {
	return BytesResponse(status, "text/plain", []byte(body))
}

// BytesResponse builds a response with the given content type and body. An
// empty contentType leaves the header unset.
func BytesResponse(status int, contentType string, body []byte) *restclient.Response {
	headers := nethttp.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	return &restclient.Response{
		StatusCode: status,
		Headers:    headers,
		Body:       body,
	}
}
