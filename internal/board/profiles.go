package board

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/validation"
)

// ProfileInput names and colors a profile
type ProfileInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Color *string `json:"color,omitempty" validate:"omitempty,hex_color"`
}

func (in *ProfileInput) normalize() error {
	in.Name = validation.SanitizeText(in.Name)
	if err := validation.Validate.Struct(in); err != nil {
		return invalid("invalid profile: %v", err)
	}
	return nil
}

// CreateProfile adds a profile at the end of the list
func (s *Session) CreateProfile(ctx context.Context, in ProfileInput) (models.Profile, error) {
	if err := in.normalize(); err != nil {
		return models.Profile{}, err
	}
	p := models.Profile{
		UserID: s.userID,
		Name:   in.Name,
		Color:  in.Color,
		Order:  len(s.store.Profiles()),
	}
	if err := s.gw.Profiles.Create(ctx, &p); err != nil {
		s.logger.Error("profile_create_failed", zap.Error(err))
		s.notifyError("Could not create the profile")
		return models.Profile{}, err
	}
	s.store.PutProfile(p)
	s.notifySuccess("Profile created")
	return p, nil
}

// UpdateProfile renames or recolors a profile
func (s *Session) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (models.Profile, error) {
	if err := in.normalize(); err != nil {
		return models.Profile{}, err
	}
	profiles := s.store.Profiles()
	i := slices.IndexFunc(profiles, func(p models.Profile) bool { return p.ID == id })
	if i < 0 {
		return models.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	p := profiles[i]
	p.Name, p.Color = in.Name, in.Color
	if err := s.gw.Profiles.Update(ctx, &p); err != nil {
		s.logger.Error("profile_update_failed", zap.String("profile_id", id.String()), zap.Error(err))
		s.notifyError("Could not update the profile")
		return models.Profile{}, err
	}
	s.store.PutProfile(p)
	return p, nil
}

// DeleteProfile removes a profile with its tasks and categories. The last
// remaining profile cannot be deleted. Deleting the current profile
// switches to the first remaining one.
func (s *Session) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	profiles := s.store.Profiles()
	if !slices.ContainsFunc(profiles, func(p models.Profile) bool { return p.ID == id }) {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if len(profiles) <= 1 {
		s.notifyError("You cannot delete your only profile")
		return ErrLastProfile
	}
	if err := s.gw.Profiles.Delete(ctx, id); err != nil {
		s.logger.Error("profile_delete_failed", zap.String("profile_id", id.String()), zap.Error(err))
		s.notifyError("Could not delete the profile")
		return err
	}
	s.store.RemoveProfile(id)
	s.notifySuccess("Profile deleted")

	if current, ok := s.store.CurrentProfile(); ok && current != id {
		return nil
	}
	next := s.store.Profiles()[0].ID
	return s.SwitchProfile(ctx, next)
}

// CategoryInput names and colors a category
type CategoryInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"required,hex_color"`
}

func (in *CategoryInput) normalize() error {
	in.Name = validation.SanitizeText(in.Name)
	if err := validation.Validate.Struct(in); err != nil {
		return invalid("invalid category: %v", err)
	}
	return nil
}

// CreateCategory adds a category to the current profile
func (s *Session) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	if err := in.normalize(); err != nil {
		return models.Category{}, err
	}
	profileID, err := s.currentProfile()
	if err != nil {
		return models.Category{}, err
	}
	c := models.Category{
		ProfileID: profileID,
		Name:      in.Name,
		Color:     in.Color,
		Order:     len(s.store.Categories()),
	}
	if err := s.gw.Categories.Create(ctx, &c); err != nil {
		s.logger.Error("category_create_failed", zap.Error(err))
		s.notifyError("Could not create the category")
		return models.Category{}, err
	}
	s.store.PutCategory(c)
	return c, nil
}

// UpdateCategory renames or recolors a category; tasks showing it follow
func (s *Session) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*Pending, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	return Run(ctx, s.exec, Mutation[models.Category]{
		Name: "update_category",
		Snapshot: func() (models.Category, error) {
			c, ok := s.store.Category(id)
			if !ok {
				return models.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
			}
			return c, nil
		},
		Apply: func(c models.Category) {
			c.Name, c.Color = in.Name, in.Color
			s.store.PutCategory(c)
		},
		Remote: func(ctx context.Context) error {
			c, ok := s.store.Category(id)
			if !ok {
				return fmt.Errorf("category %s: %w", id, ErrNotFound)
			}
			return s.gw.Categories.Update(ctx, &c)
		},
		Restore:        s.store.PutCategory,
		FailureMessage: "Could not update the category",
	})
}

// DeleteCategory removes a category. Its tasks lose the category and a
// filter on it is cleared.
func (s *Session) DeleteCategory(ctx context.Context, id uuid.UUID) (*Pending, error) {
	type state struct {
		categories []models.Category
		tagged     []uuid.UUID
		filters    Criteria
	}
	return Run(ctx, s.exec, Mutation[state]{
		Name: "delete_category",
		Snapshot: func() (state, error) {
			if _, ok := s.store.Category(id); !ok {
				return state{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
			}
			st := state{categories: s.store.Categories(), filters: s.store.Filters()}
			for _, t := range s.store.Tasks() {
				if t.CategoryID != nil && *t.CategoryID == id {
					st.tagged = append(st.tagged, t.ID)
				}
			}
			return st, nil
		},
		Apply: func(state) {
			s.store.RemoveCategory(id)
		},
		Remote: func(ctx context.Context) error {
			return s.gw.Categories.Delete(ctx, id)
		},
		Restore: func(st state) {
			s.store.SetCategories(st.categories)
			for _, taskID := range st.tagged {
				s.store.UpdateTask(taskID, func(t *models.Task) {
					t.CategoryID = &id
				})
			}
			s.store.SetFilters(st.filters)
		},
		FailureMessage: "Could not delete the category",
	})
}
