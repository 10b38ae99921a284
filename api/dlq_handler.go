package api

import (
	"errors"
	"net/http"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/dlq"
	"github.com/mtask/mtask/id"
)

func (a *API) listDLQ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	entries, err := a.eng.DLQ().DLQStore().ListDLQ(r.Context(), dlq.ListOpts{
		Limit:    parseLimit(q.Get("limit")),
		Offset:   parseOffset(q.Get("offset")),
		Queue:    q.Get("queue"),
		TenantID: q.Get("tenant_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list dlq failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) getDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(r.PathValue("entryId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dlq entry id")
		return
	}

	entry, err := a.eng.DLQ().DLQStore().GetDLQ(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, mtask.ErrDLQNotFound) {
			writeError(w, http.StatusNotFound, "dlq entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get dlq entry failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) replayDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(r.PathValue("entryId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dlq entry id")
		return
	}

	t, err := a.eng.DLQ().Replay(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, mtask.ErrDLQNotFound) {
			writeError(w, http.StatusNotFound, "dlq entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "replay failed")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
