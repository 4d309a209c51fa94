package notes

import "time"

// Attachment content types and size caps, matching what the client uploads.
const (
	AudioContentType = "audio/mpeg"
	MaxAudioBytes    = 10 << 20
	MaxImageBytes    = 5 << 20
)

// Note is one vocabulary card: source text, its translation, an optional
// romanization, and optional audio/image attachments referenced by blob name.
type Note struct {
	ID               uint      `gorm:"column:id;primaryKey"`
	DeckID           uint      `gorm:"column:deck_id;not null;index"`
	SourceText       string    `gorm:"column:source_text;size:1024"`
	TargetText       string    `gorm:"column:target_text;size:1024"`
	Romanization     string    `gorm:"column:romanization;size:1024"`
	AudioBlob        string    `gorm:"column:audio_blob;size:190"`
	AudioContentKind string    `gorm:"column:audio_content_type;size:64"`
	ImageBlob        string    `gorm:"column:image_blob;size:190"`
	ImageContentKind string    `gorm:"column:image_content_type;size:64"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing notes.
func (Note) TableName() string {
	return "notes"
}

// HasAudio reports whether an audio attachment is present.
func (n Note) HasAudio() bool {
	return n.AudioBlob != ""
}

// HasImage reports whether an image attachment is present.
func (n Note) HasImage() bool {
	return n.ImageBlob != ""
}

// Direction selects which side of a note a translation writes to.
type Direction string

const (
	// DirectionToTarget translates source text into the deck's target language.
	DirectionToTarget Direction = "to_target"
	// DirectionToSource translates target text into the deck's source language.
	DirectionToSource Direction = "to_source"
)
