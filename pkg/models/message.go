package models

import "time"

// Message is the platform-neutral representation of a single chat message.
// Instances are immutable once constructed; the conversation store shares
// them across snapshots by pointer.
type Message struct {
	// ID is the platform message ID, unique within the platform's ID space.
	ID string `json:"id"`

	AuthorName string `json:"author_name"`
	AuthorID   string `json:"author_id"`

	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// ChannelID identifies the containing channel. A message belongs to
	// exactly one channel.
	ChannelID string `json:"channel_id"`

	// IsBot marks messages produced by this process. PersonaName is set when
	// the response was delivered under a specific persona identity.
	IsBot       bool   `json:"is_bot"`
	PersonaName string `json:"persona_name,omitempty"`

	// ReplyToID references another message's ID in the same channel, if this
	// message was posted as a reply. Lookup only, not ownership.
	ReplyToID string `json:"reply_to_id,omitempty"`

	MentionsUserIDs []string `json:"mentions_user_ids,omitempty"`

	HasAttachments  bool     `json:"has_attachments,omitempty"`
	AttachmentTypes []string `json:"attachment_types,omitempty"` // content-type strings
	HasEmbeds       bool     `json:"has_embeds,omitempty"`
}
