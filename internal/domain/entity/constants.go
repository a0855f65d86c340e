package entity

// Template status constants
const (
	TemplateStatusDraft   = "draft"
	TemplateStatusCurrent = "current"
	TemplateStatusRetired = "retired"
)

// Application status constants
const (
	ApplicationStatusSubmitted         = "submitted"
	ApplicationStatusUnderReview       = "under_review"
	ApplicationStatusRevisionRequested = "revision_requested"
	ApplicationStatusRejected          = "rejected"
	ApplicationStatusApproved          = "approved"
)

// Notification event types persisted with each record
const (
	NotificationSubmitted         = "submitted"
	NotificationAwaitingReview    = "awaiting_review"
	NotificationAdvanced          = "advanced"
	NotificationRejected          = "rejected"
	NotificationRevisionRequested = "revision_requested"
	NotificationResubmitted       = "resubmitted"
	NotificationStalled           = "stalled"
)
