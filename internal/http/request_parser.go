// Package http provides HTTP server and handler implementations.
//
// This file turns form posts and JSON bodies into record input and holds
// the small query helpers shared by handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// parseRecordForm reads the entry form. Expense rows arrive as parallel
// expense_category / expense_amount lists; rows with an empty amount are skipped.
// A non-nil error means the body itself could not be parsed.
func parseRecordForm(r *http.Request) (recordInput, FieldErrors, error) {
	errs := FieldErrors{}
	if err := r.ParseForm(); err != nil {
		return recordInput{}, errs, err
	}
	form := r.PostForm

	in := recordInput{Month: sanitizeInput(form.Get("month"))}
	in.Revenue = parseAmountField(form.Get("revenue"), "revenue", errs)
	in.LaborCost = parseAmountField(form.Get("laborCost"), "laborCost", errs)

	switch hc := sanitizeInput(form.Get("headcount")); hc {
	case "":
		errs.add("headcount", "is required")
	default:
		n, err := strconv.Atoi(hc)
		if err != nil {
			errs.add("headcount", "must be a whole number")
			break
		}
		in.Headcount = n
	}

	cats := form["expense_category"]
	amounts := form["expense_amount"]
	for i, raw := range amounts {
		if sanitizeInput(raw) == "" {
			continue
		}
		cat := ""
		if i < len(cats) {
			cat = sanitizeInput(cats[i])
		}
		field := fmt.Sprintf("expenses[%d].amount", len(in.Expenses))
		in.Expenses = append(in.Expenses, expenseInput{
			Category: core.Category(cat),
			Amount:   parseAmountField(raw, field, errs),
		})
	}
	return in, errs, nil
}

func parseAmountField(raw, field string, errs FieldErrors) decimal.Decimal {
	d, err := core.ParseAmount(sanitizeInput(raw))
	if err != nil {
		errs.add(field, err.Error())
	}
	return d
}

// decodeRecordJSON decodes a JSON record body, rejecting unknown fields.
func decodeRecordJSON(w http.ResponseWriter, r *http.Request) (recordInput, error) {
	var in recordInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return in, errEmptyBody
		}
		return in, err
	}
	in.Month = sanitizeInput(in.Month)
	return in, nil
}

// monthQuery returns the "month" query parameter, validated as YYYY-MM.
func monthQuery(r *http.Request) (string, error) {
	month := sanitizeInput(r.URL.Query().Get("month"))
	if month == "" {
		return "", errors.New("month query parameter is required")
	}
	if !core.ValidMonth(month) {
		return "", core.ErrInvalidMonth
	}
	return month, nil
}

// isHTMX reports whether the request came from htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput trims whitespace and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
