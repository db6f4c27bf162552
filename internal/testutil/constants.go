// Package testutil provides constants shared by tests across the module.
package testutil

const (
	// BaseURL roots requests in tests that never reach a network.
	BaseURL = "https://api.example.com"

	// UserPath and UserURL name the canonical test resource.
	UserPath = "/users/1"
	UserURL  = BaseURL + UserPath

	// UserJSON is the canonical success payload.
	UserJSON = `{"id":1,"name":"alice"}`

	// ContentTypeJSON is the default body content type.
	ContentTypeJSON = "application/json"
)
