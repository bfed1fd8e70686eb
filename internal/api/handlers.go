package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/dealdesk/internal/desk"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/notice"
	"github.com/sells-group/dealdesk/internal/sheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type handlers struct {
	desk    *desk.Desk
	metrics *Metrics
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) createDeal(w http.ResponseWriter, r *http.Request) {
	var deal model.Deal
	if !decodeBody(w, r, &deal) {
		return
	}
	saved, err := h.desk.SaveDeal(r.Context(), deal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/deals/"+saved.ID)
	writeJSON(w, http.StatusCreated, saved)
}

func (h *handlers) getDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.desk.Deal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

// putDeal replaces a deal. The id in the path wins over any id in the body.
func (h *handlers) putDeal(w http.ResponseWriter, r *http.Request) {
	var deal model.Deal
	if !decodeBody(w, r, &deal) {
		return
	}
	deal.ID = chi.URLParam(r, "id")
	saved, err := h.desk.SaveDeal(r.Context(), deal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handlers) estimate(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	b, err := h.desk.Estimate(r.Context(), chi.URLParam(r, "id"), refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.estimates.Inc()
	writeJSON(w, http.StatusOK, b)
}

// statement serves the cached breakdown as an XLSX closing statement.
func (h *handlers) statement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deal, err := h.desk.Deal(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.desk.Estimate(r.Context(), id, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.WriteStatement(&buf, deal.Name, b); err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.estimates.Inc()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-closing-statement.xlsx"`, id))
	_, _ = w.Write(buf.Bytes())
}

func (h *handlers) quote(w http.ResponseWriter, r *http.Request) {
	var deal model.Deal
	if !decodeBody(w, r, &deal) {
		return
	}
	h.metrics.estimates.Inc()
	writeJSON(w, http.StatusOK, h.desk.Quote(deal))
}

func (h *handlers) timeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.desk.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

type noticesResponse struct {
	Today string `json:"today"`
	notice.Result
}

// notices accepts ids as a comma-separated list, repeated params, or both.
func (h *handlers) notices(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, v := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	res, err := h.desk.Notices(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.observeNotices(res)
	writeJSON(w, http.StatusOK, noticesResponse{Today: h.desk.Today().String(), Result: res})
}

func (h *handlers) setCompleted(done bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		t := model.MilestoneType(chi.URLParam(r, "type"))
		if err := h.desk.SetCompleted(r.Context(), id, t, done); err != nil {
			writeError(w, r, err)
			return
		}
		h.metrics.observeCompletion(done, 1)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) completeAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.desk.CompleteAll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.observeCompletion(true, n)
	writeJSON(w, http.StatusOK, map[string]int{"completed": n})
}
