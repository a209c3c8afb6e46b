package badges

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strumly/practice-engine/internal/models"
)

// catalogFile is the yaml seed file shape.
type catalogFile struct {
	Badges []catalogEntry `yaml:"badges"`
}

type catalogEntry struct {
	Key           string `yaml:"key"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	CriteriaType  string `yaml:"criteria_type"`
	CriteriaValue int    `yaml:"criteria_value"`
	XPReward      int    `yaml:"xp_reward"`
	GemReward     int    `yaml:"gem_reward"`
	NotifyEnabled bool   `yaml:"notify_enabled"`
	NotifyKey     string `yaml:"notify_key"`
	NotifyTitle   string `yaml:"notify_title"`
	Active        *bool  `yaml:"active"` // default true
}

// SeedCatalog reads the badge catalog seed file and upserts every definition
// keyed by badge key, preserving the file order as display order. Safe to run
// on every startup.
func (s *Service) SeedCatalog(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read badge catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse badge catalog %s: %w", path, err)
	}

	for i, entry := range file.Badges {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		badge := models.BadgeDefinition{
			BadgeKey:      entry.Key,
			Name:          entry.Name,
			Description:   entry.Description,
			CriteriaType:  models.CriteriaType(entry.CriteriaType),
			CriteriaValue: entry.CriteriaValue,
			XPReward:      entry.XPReward,
			GemReward:     entry.GemReward,
			NotifyEnabled: entry.NotifyEnabled,
			NotifyKey:     entry.NotifyKey,
			NotifyTitle:   entry.NotifyTitle,
			IsActive:      active,
			DisplayOrder:  i,
		}
		if err := badge.Validate(); err != nil {
			return fmt.Errorf("invalid badge catalog entry %d: %w", i, err)
		}
		if err := s.badgeStore.Upsert(&badge); err != nil {
			return fmt.Errorf("failed to upsert badge %q: %w", entry.Key, err)
		}
	}

	s.log.Info().Int("badges", len(file.Badges)).Str("file", path).Msg("Badge catalog seeded")
	return nil
}
