package client

import (
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// installLogging tags every request with an X-Request-ID and logs the
// outcome. Query strings are never logged since they carry the session ID.
func installLogging(rest *resty.Client) {
	rest.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})
	rest.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Printf("[HTTP] %s %s %d %s",
			resp.Request.Method,
			resp.Request.RawRequest.URL.Path,
			resp.StatusCode(),
			resp.Time().Round(time.Millisecond))
		return nil
	})
}
