package domain

import "time"

// Sender identifies who produced a conversation message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Persona is a configured chatbot profile: branding, credentials and the
// welcome message shown at the start of every conversation.
type Persona struct {
	// ID is a local, time-based identity used for list operations.
	ID string `json:"id"`
	// UniqueID is the public, immutable token used in shareable URLs and as
	// the join key against the persona service.
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`

	ChatLogoColor       string `json:"chatLogoColor"`
	ChatHeaderColor     string `json:"chatHeaderColor"`
	ChatBgGradientStart string `json:"chatBgGradientStart"`
	ChatBgGradientEnd   string `json:"chatBgGradientEnd"`
	ChatLogoImage       string `json:"chatLogoImage"`
	IconAvatarImage     string `json:"iconAvatarImage"`
	StaticImage         string `json:"staticImage"`
	BodyBackgroundImage string `json:"bodyBackgroundImage"`

	WelcomeText  string `json:"welcomeText"`
	APIKey       string `json:"apiKey"`
	AnalyticsURL string `json:"analyticsUrl,omitempty"`
}

// ChatMessage is one entry in a conversation. Messages are immutable once
// created and discarded when the session resets or ends.
type ChatMessage struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Sender  Sender `json:"sender"`
	Error   bool   `json:"error,omitempty"`
}

// NewChatMessage stamps a message with a creation-time ID.
func NewChatMessage(sender Sender, content string) ChatMessage {
	return ChatMessage{
		ID:      time.Now().UnixMilli(),
		Content: content,
		Sender:  sender,
	}
}

// HealthInfo describes the persona service backend as reported by /health.
type HealthInfo struct {
	Connected        bool   `json:"connected"`
	Database         string `json:"database"`
	ConnectionString string `json:"connection_string,omitempty"`
	ChatbotCount     int    `json:"chatbot_count,omitempty"`
}

// Storage kinds reported in HealthInfo.Database.
const (
	DatabasePostgres     = "PostgreSQL"
	DatabaseLocalStorage = "localStorage"
)
