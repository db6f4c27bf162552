package restclient

import (
	"encoding/json"
	nethttp "net/http"
)

// ClassifyStatus is the default classifier. It dispatches on the exact
// status table, evaluated in precedence order:
//
//  1. status in [200,300): decode the body into out; decode failure is
//     MalformedResponse.
//  2. status 400: BadRequest carrying the body.
//  3. status 401: Unauthorized.
//  4. status 500: ServerError.
//  5. anything else: Unknown carrying the status code.
func ClassifyStatus(resp *Response, out any) error {
	if IsSuccessStatus(resp.StatusCode) {
		return decodePayload(resp, out)
	}

	switch resp.StatusCode {
	case nethttp.StatusBadRequest:
		return NewBadRequest(resp.StatusCode, resp.Body)
	case nethttp.StatusUnauthorized:
		return NewUnauthorized(resp.StatusCode)
	case nethttp.StatusInternalServerError:
		return NewServerError(resp.StatusCode, resp.Body)
	default:
		return NewUnknownStatus(resp.StatusCode, resp.Body)
	}
}

// ClassifyStatusRanged widens the default table to whole ranges: every 4xx
// except 401 is BadRequest and every 5xx is ServerError. The success-range
// check still runs first. Select it with Builder.WithClassifier for services
// that use the full status vocabulary.
func ClassifyStatusRanged(resp *Response, out any) error {
	if IsSuccessStatus(resp.StatusCode) {
		return decodePayload(resp, out)
	}

	switch {
	case resp.StatusCode == nethttp.StatusUnauthorized:
		return NewUnauthorized(resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return NewBadRequest(resp.StatusCode, resp.Body)
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return NewServerError(resp.StatusCode, resp.Body)
	default:
		return NewUnknownStatus(resp.StatusCode, resp.Body)
	}
}

// decodePayload unmarshals a success body into out. A nil out skips decoding
// entirely, as do the no-content statuses.
func decodePayload(resp *Response, out any) error {
	if out == nil {
		return nil
	}
	if resp.StatusCode == nethttp.StatusNoContent || resp.StatusCode == nethttp.StatusResetContent {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return NewMalformedResponse(err)
	}
	return nil
}
