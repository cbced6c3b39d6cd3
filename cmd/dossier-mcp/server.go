package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/apperr"
)

const version = "0.1.0"

// server exposes the dossier engine as MCP tools.
type server struct {
	engine *dossier.Engine
	log    logrus.FieldLogger
}

func newServer(engine *dossier.Engine, log logrus.FieldLogger) *server {
	return &server{engine: engine, log: log}
}

// mcpServer builds the SDK server with every tool registered.
func (s *server) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "dossier", Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "applications_list",
		Description: "List job applications, newest first, with status, deadline and sent date. Optionally filter by status.",
	}, s.applicationsList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "application_get",
		Description: "Get one application with its job description, current cover letter, contacts and documents.",
	}, s.applicationGet)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "application_set_status",
		Description: "Change the status of an application. Moving to sent records the sent date if none is set.",
	}, s.applicationSetStatus)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "documents_search",
		Description: "Full-text search across uploaded resumes, job postings and other documents. Returns ranked snippets with the owning application.",
	}, s.documentsSearch)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reminders_due",
		Description: "List pending follow-up reminders and application deadlines due within the next few days, overdue ones included.",
	}, s.remindersDue)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reminder_complete",
		Description: "Mark a reminder completed. Recurring reminders schedule their next occurrence, which is returned.",
	}, s.reminderComplete)

	return srv
}

// afterWrite syncs the database file after a successful mutation.
func (s *server) afterWrite(ctx context.Context) {
	if res := s.engine.AfterWrite(ctx); res.Error != "" {
		s.log.WithField("error", res.Error).Warn("database sync failed")
	}
}

func (s *server) applicationsList(ctx context.Context, _ *mcp.CallToolRequest, in applicationsListInput) (*mcp.CallToolResult, any, error) {
	status := ""
	if in.Status != nil {
		status = *in.Status
	}
	apps, err := s.engine.ListApplications(ctx, status)
	if err != nil {
		return s.toolError(err), nil, nil
	}
	s.log.WithField("count", len(apps)).Debug("applications_list")
	return jsonResult(apps)
}

func (s *server) applicationGet(ctx context.Context, _ *mcp.CallToolRequest, in applicationIDInput) (*mcp.CallToolResult, any, error) {
	if in.ApplicationID <= 0 {
		return textError("application_id parameter is required"), nil, nil
	}
	app, err := s.engine.GetApplication(ctx, in.ApplicationID)
	if err != nil {
		return s.toolError(err), nil, nil
	}
	return jsonResult(app)
}

func (s *server) applicationSetStatus(ctx context.Context, _ *mcp.CallToolRequest, in applicationStatusInput) (*mcp.CallToolResult, any, error) {
	if in.ApplicationID <= 0 {
		return textError("application_id parameter is required"), nil, nil
	}
	raw, err := json.Marshal(in.Status)
	if err != nil {
		return nil, nil, err
	}
	app, err := s.engine.UpdateApplication(ctx, in.ApplicationID, dossier.Patch{"status": raw})
	if err != nil {
		return s.toolError(err), nil, nil
	}
	s.afterWrite(ctx)
	s.log.WithFields(logrus.Fields{"id": app.ID, "status": app.Status}).Info("application_set_status")
	return jsonResult(app)
}

func (s *server) documentsSearch(ctx context.Context, _ *mcp.CallToolRequest, in documentsSearchInput) (*mcp.CallToolResult, any, error) {
	limit := 20
	if in.Limit != nil {
		limit = *in.Limit
	}
	hits, err := s.engine.SearchDocuments(ctx, in.Query, limit)
	if err != nil {
		return s.toolError(err), nil, nil
	}
	return jsonResult(hits)
}

func (s *server) remindersDue(ctx context.Context, _ *mcp.CallToolRequest, in remindersDueInput) (*mcp.CallToolResult, any, error) {
	days := 7
	if in.Days != nil {
		days = *in.Days
	}
	reminders, err := s.engine.DueReminders(ctx, days)
	if err != nil {
		return s.toolError(err), nil, nil
	}
	return jsonResult(reminders)
}

func (s *server) reminderComplete(ctx context.Context, _ *mcp.CallToolRequest, in reminderIDInput) (*mcp.CallToolResult, any, error) {
	if in.ReminderID <= 0 {
		return textError("reminder_id parameter is required"), nil, nil
	}
	res, err := s.engine.CompleteReminder(ctx, in.ReminderID)
	if err != nil {
		return s.toolError(err), nil, nil
	}
	s.afterWrite(ctx)
	s.log.WithField("id", in.ReminderID).Info("reminder_complete")
	return jsonResult(res)
}

func jsonResult(data any) (*mcp.CallToolResult, any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

func textError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: "+format, args...)}},
		IsError: true,
	}
}

// toolError reports engine errors to the model. Internal details stay in
// the log.
func (s *server) toolError(err error) *mcp.CallToolResult {
	code := apperr.CodeOf(err)
	if code == apperr.Internal {
		s.log.WithError(err).Error("tool failed")
	}
	return textError("%s: %s", code, apperr.Message(err))
}
