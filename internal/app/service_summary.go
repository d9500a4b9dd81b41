package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"trilha/api/internal/rbac"
	"trilha/api/internal/store"
)

type DailySummary struct {
	WorkspaceID    string                       `json:"workspaceId"`
	Date           string                       `json:"date"`
	AuditEntries   []store.SummaryAuditEntry    `json:"auditEntries"`
	TimeEntries    []store.SummaryTimeEntry     `json:"timeEntries"`
	DueDateChanges []store.SummaryDueDateChange `json:"dueDateChanges"`
	TotalMinutes   int                          `json:"totalMinutes"`
	EmailSent      bool                         `json:"emailSent"`
}

// GetDailySummary aggregates one calendar day of workspace activity:
// audit entries, logged time and reschedules. The window is bounded so a
// day with heavy traffic still reads in one pass.
func (s *Service) GetDailySummary(ctx context.Context, session Session, workspaceID, date string, sendEmail bool) (DailySummary, error) {
	if err := s.requireWorkspaceMember(ctx, session, workspaceID); err != nil {
		return DailySummary{}, err
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return DailySummary{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
	}
	from := day
	to := day.Add(24 * time.Hour)

	audits, err := s.store.ListWorkspaceAuditWindow(ctx, workspaceID, from, to)
	if err != nil {
		return DailySummary{}, err
	}
	times, err := s.store.ListWorkspaceTimeWindow(ctx, workspaceID, from, to)
	if err != nil {
		return DailySummary{}, err
	}
	dueDates, err := s.store.ListWorkspaceDueDateWindow(ctx, workspaceID, from, to)
	if err != nil {
		return DailySummary{}, err
	}

	total := 0
	for _, entry := range times {
		total += entry.DurationMinutes
	}

	summary := DailySummary{
		WorkspaceID:    workspaceID,
		Date:           date,
		AuditEntries:   audits,
		TimeEntries:    times,
		DueDateChanges: dueDates,
		TotalMinutes:   total,
	}

	if sendEmail {
		if err := s.requireWorkspaceAction(ctx, session, workspaceID, rbac.ActionManage); err != nil {
			return DailySummary{}, err
		}
		summary.EmailSent = s.sendSummaryEmail(ctx, workspaceID, summary)
	}

	return summary, nil
}

// sendSummaryEmail mails the digest to workspace managers, best effort.
func (s *Service) sendSummaryEmail(ctx context.Context, workspaceID string, summary DailySummary) bool {
	if s.email == nil || !s.email.IsConfigured() {
		return false
	}

	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return false
	}
	members, err := s.store.ListWorkspaceMembers(ctx, workspaceID)
	if err != nil {
		return false
	}

	var recipients []string
	for _, m := range members {
		if m.Role == "manager" {
			recipients = append(recipients, m.UserEmail)
		}
	}
	if len(recipients) == 0 {
		return false
	}

	lines := summaryLines(summary)
	if err := s.email.SendDailySummaryEmail(recipients, ws.Name, summary.Date, lines); err != nil {
		log.Printf("summary: email for workspace %s failed: %v", workspaceID, err)
		return false
	}
	return true
}

func summaryLines(summary DailySummary) []string {
	var lines []string
	for _, e := range summary.AuditEntries {
		oldVal, newVal := "—", "—"
		if e.OldValue != nil {
			oldVal = *e.OldValue
		}
		if e.NewValue != nil {
			newVal = *e.NewValue
		}
		lines = append(lines, fmt.Sprintf("%s alterou %s de %q: %s -> %s", e.ActorName, e.Field, e.TaskName, oldVal, newVal))
	}
	for _, e := range summary.TimeEntries {
		lines = append(lines, fmt.Sprintf("%s registrou %d min em %q", e.ActorName, e.DurationMinutes, e.TaskName))
	}
	for _, c := range summary.DueDateChanges {
		lines = append(lines, fmt.Sprintf("%s reagendou %q para %s", c.ActorName, c.TaskName, c.NewDate.Format("2006-01-02")))
	}
	lines = append(lines, fmt.Sprintf("Total de minutos registrados: %d", summary.TotalMinutes))
	return lines
}
