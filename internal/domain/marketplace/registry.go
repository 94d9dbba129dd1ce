package marketplace

import (
	"fmt"
	"sort"

	"github.com/athebyme/listing-publisher/internal/domain/models"
)

// Registry набор адаптеров, собранный при старте и индексированный по платформе
type Registry struct {
	adapters map[models.Platform]Adapter
}

// NewRegistry регистрирует адаптеры; две реализации для одной платформы считаются ошибкой конфигурации
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[models.Platform]Adapter, len(adapters))}
	for _, adapter := range adapters {
		platform := adapter.Platform()
		if !platform.IsValid() {
			return nil, fmt.Errorf("adapter for unknown platform %q", platform)
		}
		if !adapter.Supports(platform) {
			return nil, fmt.Errorf("adapter for %s does not support its own platform", platform)
		}
		if _, exists := r.adapters[platform]; exists {
			return nil, fmt.Errorf("adapter for %s registered twice", platform)
		}
		r.adapters[platform] = adapter
	}
	return r, nil
}

// Resolve возвращает адаптер для платформы
func (r *Registry) Resolve(platform models.Platform) (Adapter, bool) {
	adapter, ok := r.adapters[platform]
	return adapter, ok
}

// Platforms список платформ с зарегистрированными адаптерами
func (r *Registry) Platforms() []models.Platform {
	platforms := make([]models.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
