// Package checks provides the health checks run by the gateway.
package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/smarthome/extgateway/health"
)

// FileChecker checks the existence of a file and returns an error
// if the file exists. Operators create the file to take the gateway
// out of rotation.
func FileChecker(f string) health.Checker {
	return health.CheckFunc(func(context.Context) error {
		absoluteFilePath := fmt.Sprintf("%q", f)
		if _, err := os.Stat(f); err == nil {
			return errors.New("file exists: " + absoluteFilePath)
		} else if !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

// HTTPChecker does a HEAD request and verifies that the HTTP status code
// returned matches statusCode.
func HTTPChecker(r string, statusCode int, timeout time.Duration, headers http.Header) health.Checker {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	client := http.Client{
		Timeout: timeout,
	}
	return health.CheckFunc(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, r, nil)
		if err != nil {
			return errors.New("error creating request: " + r)
		}
		for headerName, headerValues := range headers {
			for _, headerValue := range headerValues {
				req.Header.Add(headerName, headerValue)
			}
		}
		response, err := client.Do(req)
		if err != nil {
			return errors.New("error while checking: " + r)
		}
		defer response.Body.Close()
		if response.StatusCode != statusCode {
			return fmt.Errorf("downstream service returned unexpected status: %d", response.StatusCode)
		}
		return nil
	})
}

// Satisfier reports whether a component is ready to serve.
type Satisfier interface {
	Satisfied() bool
}

// ExtensionsChecker fails while no extension service is registered.
func ExtensionsChecker(s Satisfier) health.Checker {
	return health.CheckFunc(func(context.Context) error {
		if !s.Satisfied() {
			return errors.New("no extension service registered")
		}
		return nil
	})
}
