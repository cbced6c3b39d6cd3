package main

// Input types for MCP tools. The SDK infers JSON Schema from these structs.
// Pointer types are optional; value types are required.

type applicationsListInput struct {
	Status *string `json:"status,omitempty" jsonschema:"Only return applications with this status: in_progress, awaiting_response, sent, accepted, rejected"`
}

type applicationIDInput struct {
	ApplicationID int64 `json:"application_id" jsonschema:"The application ID"`
}

type applicationStatusInput struct {
	ApplicationID int64  `json:"application_id" jsonschema:"The application ID"`
	Status        string `json:"status"         jsonschema:"New status: in_progress, awaiting_response, sent, accepted, rejected. Moving to sent stamps sent_at."`
}

type documentsSearchInput struct {
	Query string `json:"query"           jsonschema:"Full-text query over uploaded document text and filenames"`
	Limit *int   `json:"limit,omitempty" jsonschema:"Maximum number of hits (default 20)"`
}

type remindersDueInput struct {
	Days *int `json:"days,omitempty" jsonschema:"Days ahead to include; overdue reminders are always included (default 7)"`
}

type reminderIDInput struct {
	ReminderID int64 `json:"reminder_id" jsonschema:"The reminder ID to complete"`
}
