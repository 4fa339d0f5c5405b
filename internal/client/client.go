// Package client talks to the finboard JSON API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"finboard/internal/core"
)

// ErrNotFound is returned when the requested month has no record.
var ErrNotFound = errors.New("record not found")

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("finboard api error: status=%d, message=%s", e.StatusCode, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range sortedKeys(e.Fields) {
		parts = append(parts, f+" "+e.Fields[f])
	}
	return fmt.Sprintf("finboard api error: status=%d, message=%s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// DeleteResult mirrors the server's delete answer.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Client is a resty-backed finboard API client.
type Client struct {
	httpClient *resty.Client
}

// New builds a client for baseURL, e.g. http://localhost:8081.
func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "finctl/1.0").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{httpClient: rc}
}

// Reports returns every derived report sorted by month.
func (c *Client) Reports(ctx context.Context) ([]core.MonthlyReport, error) {
	var reports []core.MonthlyReport
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&reports).
		SetError(&errorBody{}).
		Get("/api/reports")
	if err := check(resp, err, "list reports"); err != nil {
		return nil, err
	}
	return reports, nil
}

// RecordByMonth fetches one raw record. A missing month yields ErrNotFound.
func (c *Client) RecordByMonth(ctx context.Context, month string) (core.MonthlyRecord, error) {
	var rec core.MonthlyRecord
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("month", month).
		SetResult(&rec).
		SetError(&errorBody{}).
		Get("/api/records")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return core.MonthlyRecord{}, fmt.Errorf("%s: %w", month, ErrNotFound)
	}
	if err := check(resp, err, "get record"); err != nil {
		return core.MonthlyRecord{}, err
	}
	return rec, nil
}

// SaveRecord upserts rec by month and returns the stored record.
func (c *Client) SaveRecord(ctx context.Context, rec core.MonthlyRecord) (core.MonthlyRecord, error) {
	var saved core.MonthlyRecord
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rec).
		SetResult(&saved).
		SetError(&errorBody{}).
		Post("/api/records")
	if err := check(resp, err, "save record"); err != nil {
		return core.MonthlyRecord{}, err
	}
	return saved, nil
}

// DeleteRecord removes a record by id. Deleting an unknown id is not an error.
func (c *Client) DeleteRecord(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&res).
		SetError(&errorBody{}).
		Delete("/api/records/{id}")
	if err := check(resp, err, "delete record"); err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

// DownloadXLSX returns the report workbook bytes.
func (c *Client) DownloadXLSX(ctx context.Context) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet").
		Get("/reports.xlsx")
	if err := check(resp, err, "download workbook"); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if body, ok := resp.Error().(*errorBody); ok && body != nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Fields = body.Fields
	}
	return fmt.Errorf("%s: %w", op, apiErr)
}

// LoadRecords returns the raw records behind the server's reports, so the
// client can stand in for storage when the server keeps records in memory.
func (c *Client) LoadRecords(ctx context.Context) ([]core.MonthlyRecord, error) {
	reports, err := c.Reports(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]core.MonthlyRecord, 0, len(reports))
	for _, r := range reports {
		records = append(records, r.MonthlyRecord)
	}
	return records, nil
}
