package config

import "time"

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"

	ClassifierKeyword = "keyword"
	ClassifierModel   = "model"
	ClassifierChain   = "chain"

	// Request timeouts per collaborator
	ChatRequestTimeout = 90 * time.Second
	DataRequestTimeout = 15 * time.Second

	// Conversation view cache
	ViewCacheTTL = 10 * time.Minute

	// Title length for new conversations (runes)
	ConversationTitleLen = 40

	// News results shown per answer
	MaxNewsArticles = 5

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Message edits while streaming (per chat)
	StreamEditInterval = 1200 * time.Millisecond

	// Rate limits (per chat)
	RateLimitPerMinute = 12
	RateLimitBurst     = 3

	// Conversations per page in /chats
	ConversationsPerPage = 5

	// Turns shown by /history
	HistoryPreviewTurns = 10
)
