package handlers

import (
	"net/http"
	"strconv"

	"github.com/viewtube/backend/internal/pipeline"
)

// parsePage reads the page and limit query parameters. Absent or
// malformed values fall back to the pipeline defaults.
func parsePage(r *http.Request) pipeline.Page {
	page := pipeline.Page{}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		page.Size = v
	}
	return page.Normalize()
}
