package prompt

// Placeholder names shared by the default templates.
const (
	FieldUserMessage         = "user_message"
	FieldUserName            = "user_name"
	FieldConversationHistory = "conversation_history"
	FieldMentionedUsers      = "mentioned_users_text"

	FieldBasePersona   = "base_persona_settings"
	FieldEmotion       = "emotion"
	FieldIntent        = "intent"
	FieldStrategy      = "strategy"
	FieldMoodText      = "mood_text"
	FieldMoodScore     = "mood_score"
	FieldMemoryHeading = "db_memory_heading"
	FieldMemoryContent = "db_memory_content"
	FieldCrossChannel  = "cross_channel_memory_content"
	FieldUserFacts     = "user_facts"
	FieldServerFacts   = "server_facts"

	FieldConcept = "concept"
	FieldQuery   = "query"
	FieldSources = "sources"
	FieldError   = "error"
	FieldName    = "name"
)
