package lots

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the lots API. writeLimit wraps every mutating route.
func SetupRoutes(h *Handler, writeLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	if writeLimit == nil {
		writeLimit = func(next http.Handler) http.Handler { return next }
	}

	// Exports
	r.Get("/csv", h.ExportCSV)
	r.Get("/kml", h.ExportKML)
	r.Get("/geojson", h.ExportGeoJSON(ExportPolygon))
	r.Get("/geojson-polygon", h.ExportGeoJSON(ExportPolygon))
	r.Get("/geojson-centroid", h.ExportGeoJSON(ExportCentroid))
	r.Get("/count", h.Count)

	r.Get("/uses", h.ListUses)
	r.Get("/groups/{id}", h.GetGroup)
	r.Get("/create/by-parcels/check-parcel/{id}", h.CheckParcel)

	r.Group(func(r chi.Router) {
		r.Use(writeLimit)

		// Creation
		r.Post("/create/by-parcels", h.CreateByParcels)
		r.Post("/create/by-geom", h.CreateByGeom)

		// Grouping
		r.Post("/groups/{id}/lots", h.AddLotsToGroup)
		r.Post("/{id}/group/add", h.AddToGroup)
		r.Post("/{id}/group/remove", h.RemoveFromGroup)

		r.Post("/{id}/hide", h.Hide)
		r.Delete("/{id}", h.Delete)
	})

	r.Get("/{id}", h.Detail)
	r.Get("/{id}/geojson", h.DetailGeoJSON)

	return r
}
