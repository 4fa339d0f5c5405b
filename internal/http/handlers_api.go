package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"finboard/internal/core"
	"finboard/internal/export"
	"finboard/internal/log"
)

func (s *Server) handleAPIReports(w http.ResponseWriter, r *http.Request) {
	reports := s.records.Reports(r.Context())
	if reports == nil {
		reports = []core.MonthlyReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleAPIRecordByMonth(w http.ResponseWriter, r *http.Request) {
	month, err := monthQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	rec, ok := s.records.GetRecordByMonth(r.Context(), month)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "record not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAPISaveRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeRecordJSON(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}

	errs := FieldErrors{}
	validateRecord(s.validate, in, errs)
	if len(errs) > 0 {
		writeJSONError(w, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}
	writeJSON(w, http.StatusOK, s.records.SaveRecord(r.Context(), in.toRecord()))
}

type deleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// handleAPIDeleteRecord always answers 200; Deleted is false for unknown ids.
func (s *Server) handleAPIDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	writeJSON(w, http.StatusOK, deleteResult{ID: id, Deleted: s.records.DeleteRecord(r.Context(), id)})
}

func (s *Server) handleAPICharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildChartData(s.records.Reports(r.Context()), s.formatter.Code()))
}

// handleXLSX serves the report workbook, rebuilt only when the store version changes.
func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	snap := s.records.Snapshot(r.Context())
	key := "v" + strconv.FormatUint(snap.Version, 10)

	body, ok := s.xlsxCache.Get(key)
	if !ok {
		start := time.Now()
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, snap.Reports); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Workbook export failed",
				log.FieldOperation, log.OpExport,
				log.FieldError, err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		body = buf.Bytes()
		s.xlsxCache.Set(key, body)
		log.FromContext(r.Context()).DebugContext(r.Context(), "Workbook built",
			log.FieldOperation, log.OpExport,
			log.FieldVersion, key,
			log.FieldDuration, time.Since(start).Milliseconds())
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="finboard-reports.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
