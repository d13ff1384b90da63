package core

// AgentType selects the wire protocol used to talk to an agent
type AgentType string

const (
	// AgentTypeOpenAI is a request/response chat-completions API
	AgentTypeOpenAI AgentType = "openai"

	// AgentTypeWebhook is a generic JSON webhook
	AgentTypeWebhook AgentType = "webhook"
)

// ParseAgentType maps a metadata attribute value to an AgentType.
// An empty value defaults to AgentTypeOpenAI; any other unknown value is
// treated as a webhook, which is how the relay dispatches non-openai agents.
func ParseAgentType(v string) AgentType {
	switch AgentType(v) {
	case "", AgentTypeOpenAI:
		return AgentTypeOpenAI
	default:
		return AgentTypeWebhook
	}
}

// Asset is a point-in-time read of a token from the asset registry
type Asset struct {
	ID            string
	Owner         string
	Name          string
	Description   string
	Image         string
	AgentEndpoint string // Empty when the token carries no agent
	AgentType     AgentType
}

// OwnedBy reports whether address is the current owner of the asset
func (a *Asset) OwnedBy(address string) bool {
	return address != "" && a.Owner == address
}

// Role of a chat message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry of a conversation history
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Valid reports whether the message has a known role
func (m ChatMessage) Valid() bool {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// RelayRequest is a conversation forwarded to an agent
type RelayRequest struct {
	Endpoint  string
	AgentType AgentType
	Messages  []ChatMessage
	Trusted   bool // Endpoint comes from configuration, not token metadata
}

// ChatMode tells the caller whether a reply was produced for a verified holder
type ChatMode string

const (
	ChatModeAuthenticated ChatMode = "authenticated"
	ChatModeDemo          ChatMode = "demo"
)
