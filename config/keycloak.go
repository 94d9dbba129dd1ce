package config

import (
	"github.com/athebyme/listing-publisher/pkg/auth"
)

// KeycloakConfig настройки проверки токенов Keycloak для административного API
type KeycloakConfig struct {
	Enabled      bool
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
}

// GetKeycloakConfig возвращает конфигурацию для auth.KeycloakClient
func (k *KeycloakConfig) GetKeycloakConfig() auth.KeycloakConfig {
	return auth.KeycloakConfig{
		ServerURL:    k.ServerURL,
		Realm:        k.Realm,
		ClientID:     k.ClientID,
		ClientSecret: k.ClientSecret,
	}
}
