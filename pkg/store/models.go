package store

import "time"

// Tier is a retention lifecycle stage controlling storage fidelity.
// Transitions move strictly forward (hot → warm → cold → deleted) except via
// explicit restore.
type Tier string

const (
	TierHot     Tier = "hot"
	TierWarm    Tier = "warm"
	TierCold    Tier = "cold"
	TierDeleted Tier = "deleted"
)

// Next returns the tier an item ages into, or "" for terminal tiers
func (t Tier) Next() Tier {
	switch t {
	case TierHot:
		return TierWarm
	case TierWarm:
		return TierCold
	case TierCold:
		return TierDeleted
	default:
		return ""
	}
}

// MemoryItem is one stored unit of conversational or document context
type MemoryItem struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	OrgID          string    `json:"org_id,omitempty"`
	AgentID        string    `json:"agent_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ParentID       string    `json:"parent_id,omitempty"`
	Content        string    `json:"content"`
	ContentType    string    `json:"content_type"`
	Tier           Tier      `json:"tier"`
	ChunksComputed bool      `json:"chunks_computed"`
	PIIDetected    bool      `json:"pii_detected"`
	PIIRedacted    bool      `json:"pii_redacted"`
	Important      bool      `json:"important"`
	Embedding      []float32 `json:"embedding,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Chunk is a fixed-size token-bounded slice of a memory item. The chunk set
// of an item is only ever replaced wholesale, never patched.
type Chunk struct {
	ID         string    `json:"id"`
	MemoryID   string    `json:"memory_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Filter scopes queries to an owner, agent, or conversation. Empty fields
// match everything.
type Filter struct {
	UserID         string
	OrgID          string
	AgentID        string
	ConversationID string
}

// Neighbor is a memory item returned from a nearest-neighbor query
type Neighbor struct {
	Item       MemoryItem
	Similarity float64
}

// ChunkNeighbor is a chunk returned from a nearest-neighbor query, carrying
// enough parent metadata for scoring and grouping.
type ChunkNeighbor struct {
	Chunk      Chunk
	Tier       Tier
	CreatedAt  time.Time
	Similarity float64
}

// Conversation groups memory items exchanged with one agent
type Conversation struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision is an agent conclusion recorded against a conversation
type Decision struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"org_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageEntry is one usage ledger row
type UsageEntry struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id,omitempty"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// PurchaseEntry is one purchase ledger row
type PurchaseEntry struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccessLog is one audit trail row
type AccessLog struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	TargetID  string    `json:"target_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
