package lots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/geometry"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

const maxGeomBody = 10 << 20

// ExportCache stores rendered exports keyed by the current generation.
type ExportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Generation(ctx context.Context) int64
	// Bump invalidates every cached export.
	Bump(ctx context.Context)
}

// CacheObserver is told about export cache hits and misses.
type CacheObserver interface {
	Hit(format string)
	Miss(format string)
}

type nopObserver struct{}

func (nopObserver) Hit(string)  {}
func (nopObserver) Miss(string) {}

type HandlerConfig struct {
	SiteName string
	// NearbyMiles is the radius used by the detail GeoJSON.
	NearbyMiles float64
	Now         func() time.Time
}

// Handler serves the lots HTTP API.
type Handler struct {
	svc      *Service
	cache    ExportCache
	observer CacheObserver
	validate *validator.Validate
	cfg      HandlerConfig
	log      *logger.Logger
}

func NewHandler(svc *Service, cache ExportCache, observer CacheObserver, cfg HandlerConfig, baseLog *logger.Logger) *Handler {
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NearbyMiles <= 0 {
		cfg.NearbyMiles = 0.1
	}
	return &Handler{
		svc:      svc,
		cache:    cache,
		observer: observer,
		validate: validator.New(),
		cfg:      cfg,
		log:      baseLog.With("handler", "lots"),
	}
}

type createByParcelsRequest struct {
	ParcelIDs    []uuid.UUID `json:"parcel_pks" validate:"required,min=1"`
	AllowOverlap bool        `json:"allow_overlap"`
}

type addToGroupRequest struct {
	LotToAdd uuid.UUID `json:"lot_to_add" validate:"required"`
}

type addLotsRequest struct {
	LotIDs []uuid.UUID `json:"lot_ids" validate:"required,min=1"`
}

type hideRequest struct {
	KnownUse uuid.UUID `json:"known_use" validate:"required"`
}

type placeResponse struct {
	ID           uuid.UUID `json:"id"`
	Kind         PlaceKind `json:"kind"`
	DisplayName  string    `json:"display_name"`
	NumberOfLots int       `json:"number_of_lots"`
	Lot          *Lot      `json:"lot,omitempty"`
	Group        *LotGroup `json:"group,omitempty"`
	Members      []*Lot    `json:"members,omitempty"`
}

func toPlaceResponse(p Place) placeResponse {
	resp := placeResponse{
		ID:           p.ID(),
		Kind:         p.Kind(),
		DisplayName:  p.DisplayName(),
		NumberOfLots: p.NumberOfLots(),
	}
	switch v := p.(type) {
	case Single:
		resp.Lot = v.Lot
	case Aggregate:
		resp.Group = v.Group
		resp.Members = v.Members
	}
	return resp
}

// Detail returns a lot, or the group it belongs to.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Lots.Place(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaceResponse(p))
}

// DetailGeoJSON returns the lot and its neighbours as GeoJSON.
func (h *Handler) DetailGeoJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	lot, err := h.svc.Lots.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	nearby, err := h.svc.Lots.FindNearby(r.Context(), lot, NearbyOptions{Miles: h.cfg.NearbyMiles, IncludeSelf: true})
	if err != nil {
		h.writeError(w, err)
		return
	}
	places := make([]Place, 0, len(nearby)+1)
	if len(nearby) == 0 {
		places = append(places, Single{Lot: lot})
	}
	for _, l := range nearby {
		places = append(places, Single{Lot: l})
	}
	writeJSON(w, http.StatusOK, FeatureCollection(places, ExportPolygon))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Lots.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req hideRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Lots.Hide(r.Context(), id, req.KnownUse); err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	agg, err := h.svc.Groups.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaceResponse(agg))
}

// AddLotsToGroup moves several lots into an existing group.
func (h *Handler) AddLotsToGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req addLotsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Lots.MoveToGroup(r.Context(), id, req.LotIDs); err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	h.GetGroup(w, r)
}

func (h *Handler) AddToGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req addToGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, err := h.svc.Creator.GroupWith(r.Context(), id, req.LotToAdd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Lots.Ungroup(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CheckParcel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	lot, err := h.svc.Creator.CheckParcel(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]interface{}{"parcel_id": id, "in_lot": false})
	case err != nil:
		h.writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"parcel_id": id, "in_lot": true, "lot_id": lot.ID})
	}
}

func (h *Handler) CreateByParcels(w http.ResponseWriter, r *http.Request) {
	var req createByParcelsRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Creator.CreateForParcels(r.Context(), req.ParcelIDs, req.AllowOverlap, DefaultCreateOptions(ReasonParcels))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	writeJSON(w, http.StatusCreated, toPlaceResponse(res.Place()))
}

func (h *Handler) CreateByGeom(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxGeomBody))
	if err != nil {
		http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.svc.Creator.CreateForGeoms(r.Context(), raw, DefaultCreateOptions(ReasonDrawn))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.cache.Bump(r.Context())
	writeJSON(w, http.StatusCreated, toPlaceResponse(res.Place()))
}

func (h *Handler) ListUses(w http.ResponseWriter, r *http.Request) {
	uses, err := h.svc.Uses.List(readCtx(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uses)
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counts, err := h.svc.Lots.Counts(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) ExportGeoJSON(mode ExportGeometry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := "geojson-" + string(mode)
		if r.URL.Query().Get("download") != "" {
			h.attachment(w, "json")
		}
		h.export(w, r, format, "application/json", func(buf io.Writer, places []Place) error {
			return json.NewEncoder(buf).Encode(FeatureCollection(places, mode))
		})
	}
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.attachment(w, "csv")
	h.export(w, r, "csv", "text/csv", WriteCSV)
}

func (h *Handler) ExportKML(w http.ResponseWriter, r *http.Request) {
	h.attachment(w, "kml")
	h.export(w, r, "kml", "application/vnd.google-earth.kml+xml", func(buf io.Writer, places []Place) error {
		return WriteKML(buf, ExportFilename(h.cfg.SiteName, h.cfg.Now()), places)
	})
}

func (h *Handler) attachment(w http.ResponseWriter, ext string) {
	name := ExportFilename(h.cfg.SiteName, h.cfg.Now())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+ext))
}

// export renders places matching the request filter, serving from cache
// when the same query was rendered since the last write.
func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType string, render func(io.Writer, []Place) error) {
	ctx := r.Context()
	key := fmt.Sprintf("lots:export:%d:%s:%s", h.cache.Generation(ctx), format, r.URL.Query().Encode())
	if body, ok := h.cache.Get(ctx, key); ok {
		h.observer.Hit(format)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(body)
		return
	}
	h.observer.Miss(format)

	f, err := ParseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	places, err := h.svc.Lots.Places(ctx, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := render(&buf, places); err != nil {
		http.Error(w, "Failed to render "+format+": "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.cache.Set(ctx, key, buf.Bytes())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(buf.Bytes())
}

// ParseFilter reads a LotFilter from query parameters. Without
// visible=false the public visibility rules apply.
func ParseFilter(r *http.Request) (LotFilter, error) {
	q := r.URL.Query()
	f := Visible()
	if v := q.Get("visible"); v == "false" || v == "0" {
		f.VisibleOnly = false
	}
	if v := q.Get("parents_only"); v == "false" || v == "0" {
		f.ParentsOnly = false
	}
	if v := q.Get("bbox"); v != "" {
		b, err := parseBBox(v)
		if err != nil {
			return f, err
		}
		f.Bound = &b
	}
	var err error
	if f.CertaintyGT, err = intParam(q.Get("known_use_certainty_gt")); err != nil {
		return f, err
	}
	if f.CertaintyLT, err = intParam(q.Get("known_use_certainty_lt")); err != nil {
		return f, err
	}
	if f.AreaGT, err = floatParam(q.Get("polygon_area_gt")); err != nil {
		return f, err
	}
	if f.AreaLT, err = floatParam(q.Get("polygon_area_lt")); err != nil {
		return f, err
	}
	switch v := KnownUseExistence(q.Get("known_use_existence")); v {
	case KnownUseAny, InUse, NotInUse:
		f.KnownUse = v
	default:
		return f, validationError("known_use_existence must be \"in use\" or \"not in use\"")
	}
	f.KnownUseNames = listParam(q.Get("known_use"))
	f.OwnerTypes = listParam(q.Get("owner_types"))
	f.OwnerNameContains = strings.TrimSpace(q.Get("owner_contains"))
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, validationError("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func parseBBox(v string) (orb.Bound, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return orb.Bound{}, validationError("bbox must be minLon,minLat,maxLon,maxLat")
	}
	var n [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, validationError("bbox must be numeric")
		}
		n[i] = f
	}
	return orb.Bound{Min: orb.Point{n[0], n[1]}, Max: orb.Point{n[2], n[3]}}, nil
}

func intParam(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, validationError(fmt.Sprintf("%q is not an integer", v))
	}
	return &n, nil
}

func floatParam(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, validationError(fmt.Sprintf("%q is not a number", v))
	}
	return &f, nil
}

func listParam(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrParcelAlreadyInLot):
		http.Error(w, "One or more parcels already in lots", http.StatusBadRequest)
	case errors.Is(err, geometry.ErrInvalidGeometryKind):
		http.Error(w, "Only polygons are allowed", http.StatusBadRequest)
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, geometry.ErrGeometry):
		http.Error(w, "Invalid geometry: "+err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNoParcelSource):
		http.Error(w, "Parcel lookup is not configured", http.StatusNotImplemented)
	default:
		h.log.Error("request failed", "error", err)
		http.Error(w, "Request failed: "+err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
