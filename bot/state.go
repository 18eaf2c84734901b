package bot

// DialogState is the per-session conversation state. States are mutually
// exclusive; every incoming message is interpreted against exactly one.
type DialogState int

const (
	StateIdle DialogState = iota
	StateAwaitingSectionQuery
	StateAwaitingPostQuery
	StateAwaitingCombinedQuery
	StateAwaitingSiteQuestion
	StateAwaitingPostQuestion
	StateAwaitingCombinedQuestion
	StateAwaitingAccessCode
	StateAuthenticatedOwner
	StateAuthenticatedWorker
	StateAwaitingWorkerMessage
)

// String returns the state name for logs.
func (s DialogState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSectionQuery:
		return "awaiting_section_query"
	case StateAwaitingPostQuery:
		return "awaiting_post_query"
	case StateAwaitingCombinedQuery:
		return "awaiting_combined_query"
	case StateAwaitingSiteQuestion:
		return "awaiting_site_question"
	case StateAwaitingPostQuestion:
		return "awaiting_post_question"
	case StateAwaitingCombinedQuestion:
		return "awaiting_combined_question"
	case StateAwaitingAccessCode:
		return "awaiting_access_code"
	case StateAuthenticatedOwner:
		return "authenticated_owner"
	case StateAuthenticatedWorker:
		return "authenticated_worker"
	case StateAwaitingWorkerMessage:
		return "awaiting_worker_message"
	default:
		return "unknown"
	}
}
