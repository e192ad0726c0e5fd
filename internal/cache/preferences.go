package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/benvon/taskboard/internal/models"
)

// PreferenceStore keeps each user's view mode and last active profile.
// Entries never expire.
type PreferenceStore struct {
	rdb *redis.Client
}

// NewPreferenceStore creates a preference store on c
func NewPreferenceStore(c *Client) *PreferenceStore {
	return &PreferenceStore{rdb: c.rdb}
}

func preferencesKey(userID uuid.UUID) string {
	return key("prefs", userID.String())
}

// Load returns the stored preferences, or the zero value when none exist
func (s *PreferenceStore) Load(ctx context.Context, userID uuid.UUID) (models.Preferences, error) {
	var prefs models.Preferences
	raw, err := s.rdb.Get(ctx, preferencesKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return models.Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// Save replaces the stored preferences
func (s *PreferenceStore) Save(ctx context.Context, userID uuid.UUID, prefs models.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.rdb.Set(ctx, preferencesKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Delete forgets a user's preferences
func (s *PreferenceStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.rdb.Del(ctx, preferencesKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}
