package client

import (
	"context"
	"fmt"
	"net/url"

	"lifelessons/backend/apperr"
	"lifelessons/backend/models"
)

// RecordView counts an engaged read of a lesson and returns the new total.
func (c *Client) RecordView(ctx context.Context, lessonID uint) (int, error) {
	var out struct {
		Views int `json:"views"`
	}
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/lessons/%d/view", lessonID), nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Views, nil
}

// SubmitReport validates the input locally and only then files the report.
func (c *Client) SubmitReport(ctx context.Context, in models.ReportInput) (*models.Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var report models.Report
	if err := c.do(ctx, "POST", "/api/reports", nil, in, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func statusQuery(status string) url.Values {
	if status == "" {
		return nil
	}
	return url.Values{"status": {status}}
}

func (c *Client) ListMyReports(ctx context.Context, status string) (*models.MyReports, error) {
	var out models.MyReports
	if err := c.do(ctx, "GET", "/api/reports/mine", statusQuery(status), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WithdrawReport(ctx context.Context, id uint, confirm Confirm) (*models.Report, error) {
	if !confirmed(confirm, "Withdraw this report?") {
		return nil, ErrCancelled
	}
	release, err := c.acquire(fmt.Sprintf("report:%d", id))
	if err != nil {
		return nil, err
	}
	defer release()

	var report models.Report
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/reports/%d/withdraw", id), nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) ListAllReports(ctx context.Context, status string) (*models.AllReports, error) {
	var out models.AllReports
	if err := c.do(ctx, "GET", "/api/reports/all", statusQuery(status), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReviewReport closes a report as resolved or rejected.
func (c *Client) ReviewReport(ctx context.Context, id uint, status models.ReportStatus, adminMessage string) (*models.Report, error) {
	if !status.ReviewOutcome() {
		return nil, apperr.Validation("invalid_status", "review outcome must be resolved or rejected")
	}
	release, err := c.acquire(fmt.Sprintf("report:%d", id))
	if err != nil {
		return nil, err
	}
	defer release()

	in := map[string]string{"status": string(status), "adminMessage": adminMessage}
	var report models.Report
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/reports/%d/review", id), nil, in, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) MarkReviewing(ctx context.Context, id uint) (*models.Report, error) {
	release, err := c.acquire(fmt.Sprintf("report:%d", id))
	if err != nil {
		return nil, err
	}
	defer release()

	var report models.Report
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/reports/%d/reviewing", id), nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// DismissLessonReports resolves every pending report against a lesson and
// returns how many were updated.
func (c *Client) DismissLessonReports(ctx context.Context, lessonID uint, adminMessage string) (int64, error) {
	release, err := c.acquire(fmt.Sprintf("lesson:%d", lessonID))
	if err != nil {
		return 0, err
	}
	defer release()

	var out struct {
		UpdatedCount int64 `json:"updatedCount"`
	}
	in := map[string]string{"adminMessage": adminMessage}
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/reports/lesson/%d/dismiss", lessonID), nil, in, &out); err != nil {
		return 0, err
	}
	return out.UpdatedCount, nil
}
