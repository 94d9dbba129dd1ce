package models

import "time"

// PlatformCredential аккаунт маркетплейса с зашифрованным секретом
type PlatformCredential struct {
	ID              string                 `json:"id"`
	Platform        Platform               `json:"platform"`
	AccountName     string                 `json:"accountName"`
	EncryptedSecret string                 `json:"-"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	IsActive        bool                   `json:"isActive"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// DecryptedCredential учетные данные, готовые для вызова API маркетплейса
type DecryptedCredential struct {
	ID          string                 `json:"id"`
	Platform    Platform               `json:"platform"`
	AccountName string                 `json:"accountName"`
	Secret      string                 `json:"-"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IsActive    bool                   `json:"isActive"`
}

// MetadataString возвращает строковое значение из метаданных аккаунта
func (c *DecryptedCredential) MetadataString(key string) string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[key].(string)
	return s
}
