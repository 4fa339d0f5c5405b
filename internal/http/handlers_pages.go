package http

import (
	"fmt"
	"html/template"
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
)

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "dashboard_page", s.dashboardData(r))
}

// handleEntry renders the data entry form. With ?month= set to a stored month
// the form is pre-filled for editing.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	data := newEntryData(core.MonthlyRecord{}, false)
	if month, err := monthQuery(r); err == nil {
		if rec, ok := s.records.GetRecordByMonth(r.Context(), month); ok {
			data = newEntryData(rec, true)
		} else {
			data.Record.Month = month
		}
	}
	s.render(w, r, "entry_page", data)
}

// handleSummary returns the latest-month cards partial
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "summary", s.dashboardData(r))
}

// handleReportsTable returns the detail table partial
func (s *Server) handleReportsTable(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "reports_table", s.dashboardData(r))
}

func (s *Server) dashboardData(r *http.Request) dashboardData {
	snap := s.records.Snapshot(r.Context())
	latest, ok := snap.Latest()
	return dashboardData{
		Latest:    latest,
		HasLatest: ok,
		Reports:   snap.Reports,
		Currency:  s.formatter.Code(),
	}
}

// handleSaveRecord upserts a record from the entry form.
func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	in, errs, err := parseRecordForm(r)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Parse form error", log.FieldError, err)
		BadRequestError("Invalid request format").Write(w)
		return
	}
	validateRecord(s.validate, in, errs)
	if len(errs) > 0 {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Record form rejected",
			log.FieldOperation, log.OpValidate,
			log.FieldMonth, in.Month,
			log.FieldCount, len(errs))
		ValidationErrorResponse(errs).Write(w)
		return
	}

	saved := s.records.SaveRecord(r.Context(), in.toRecord())

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	msg := fmt.Sprintf("Saved %s", saved.Month)
	NewHTMXResponse().
		TriggerRecordSaved(saved.ID, saved.Month).
		TriggerFormReset().
		TriggerSuccessNotification(msg).
		BodyHTML(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`).
		Write(w)
}

// handleDeleteRecord removes a record. Unknown ids are a no-op, not an error.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	removed := s.records.DeleteRecord(r.Context(), id)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	resp := NewHTMXResponse().TriggerRecordDeleted(id)
	if removed {
		resp.TriggerSuccessNotification("Record deleted")
	} else {
		resp.TriggerNotification(NotificationInfo, "Record was already removed", 3000)
	}
	resp.Write(w)
}
