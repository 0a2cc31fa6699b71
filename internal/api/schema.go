package api

import (
	"net/http"

	"github.com/shopassist/shopassist/internal/catalog"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	schema := catalog.ProductSchema()
	if deps.Schema != nil {
		schema = *deps.Schema
	}
	writeJSON(w, http.StatusOK, schema)
}
