package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/tiles"

	"github.com/go-chi/chi/v5"
)

// Handler exposes orchestrator HTTP endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
// Domain metrics are recorded by the Service.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/layouts", func(r chi.Router) {
		r.Get("/", h.ListLayouts)
		r.Get("/frames/{frame}", h.LayoutForFrame)
	})
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.CreateRun)
		r.Route("/{run_id}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Get("/segments/{first_frame}/command", h.GetCommand)
		})
	})
}

type layoutView struct {
	Interval        tiles.Interval `json:"interval"`
	Rows            int            `json:"rows"`
	Cols            int            `json:"cols"`
	HeightsOfRows   []int          `json:"heights_of_rows"`
	WidthsOfColumns []int          `json:"widths_of_columns"`
}

func newLayoutView(seg tiles.IntervalLayout) layoutView {
	return layoutView{
		Interval:        seg.Interval,
		Rows:            seg.Layout.NumberOfRows(),
		Cols:            seg.Layout.NumberOfColumns(),
		HeightsOfRows:   seg.Layout.HeightsOfRows(),
		WidthsOfColumns: seg.Layout.WidthsOfColumns(),
	}
}

// ListLayouts handles GET /layouts.
func (h *Handler) ListLayouts(w http.ResponseWriter, r *http.Request) {
	segs := h.svc.Segments()
	out := make([]layoutView, 0, len(segs))
	for _, seg := range segs {
		out = append(out, newLayoutView(seg))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// LayoutForFrame handles GET /layouts/frames/{frame}.
func (h *Handler) LayoutForFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
	if err != nil || frame < 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	seg, err := h.svc.LayoutForFrame(frame)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, newLayoutView(seg))
	case errors.Is(err, tiles.ErrNoLayoutForFrame):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, tiles.ErrAmbiguousLayoutForFrame):
		h.log.Warn("ambiguous layout lookup", slog.Int("frame", frame), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusConflict)
	default:
		h.log.Error("layout lookup failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// CreateRun handles POST /runs.
// Body: { "video": {...}, "strategy": "cbr", "uniform": {"rows": 2, "cols": 2} }.
// The run is planned and finished before the response is written.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid run body", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := h.svc.PlanRun(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, encoding.ErrInvalidVideoStats),
			errors.Is(err, encoding.ErrUnsupportedEncodingStrategy),
			errors.Is(err, encoding.ErrInvalidGeometry):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, tiles.ErrNoLayoutForFrame):
			h.writeError(w, http.StatusConflict, err)
		default:
			h.log.Error("plan run failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	if err := h.svc.FinishRun(snap.ID); err != nil {
		h.log.Error("finish run failed", slog.String("run_id", string(snap.ID)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	snap.Finished = true
	h.writeJSON(w, http.StatusCreated, snap)
}

// GetRun handles GET /runs/{run_id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := RunID(chi.URLParam(r, "run_id"))
	snap, ok := h.svc.GetRun(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// GetCommand handles GET /runs/{run_id}/segments/{first_frame}/command.
func (h *Handler) GetCommand(w http.ResponseWriter, r *http.Request) {
	id := RunID(chi.URLParam(r, "run_id"))
	first, err := strconv.Atoi(chi.URLParam(r, "first_frame"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	line, err := h.svc.Command(id, first)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrSegmentNotFound):
			w.WriteHeader(http.StatusNotFound)
		default:
			h.log.Error("render command failed", slog.String("run_id", string(id)), slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(line))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
