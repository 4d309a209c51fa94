package decks

import "time"

// Deck is a user-owned collection of vocabulary notes translated between a
// source and a target language.
type Deck struct {
	ID             uint      `gorm:"column:id;primaryKey"`
	UserID         uint      `gorm:"column:user_id;not null;index"`
	Name           string    `gorm:"column:name;size:190"`
	SourceLanguage string    `gorm:"column:source_language;size:32;not null"`
	TargetLanguage string    `gorm:"column:target_language;size:32;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing decks.
func (Deck) TableName() string {
	return "decks"
}
