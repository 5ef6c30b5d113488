package errcode

import (
	"encoding/json"
	"net/http"
)

// ServeJSON writes err as a JSON Errors envelope. The status comes from the
// code of the first error; errors without a code are served as 500.
func ServeJSON(w http.ResponseWriter, err error) error {
	errs, ok := err.(Errors)
	if !ok {
		errs = Errors{err}
	}

	status := http.StatusInternalServerError
	if len(errs) > 0 {
		if coder, ok := errs[0].(ErrorCoder); ok {
			status = coder.ErrorCode().Descriptor().HTTPStatusCode
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(errs)
}
