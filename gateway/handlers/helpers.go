package handlers

import (
	"encoding/json"
	"net/http"

	"golang.org/x/text/language"
)

// serveLocalized writes v as JSON, tagged with the locale its labels were
// resolved in. Status headers must be written before calling it.
func serveLocalized(w http.ResponseWriter, locale language.Tag, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Language", locale.String())
	return json.NewEncoder(w).Encode(v)
}
