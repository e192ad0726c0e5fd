package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/taskboard/internal/database"
	logpkg "github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
)

// Options tunes a session. Zero values select the defaults
type Options struct {
	Clock          Clock
	Logger         *zap.Logger
	Publisher      Publisher
	GatewayTimeout time.Duration
	EditDebounce   time.Duration
}

const maxUndoActions = 20

// undoAction reverses a committed change
type undoAction func(ctx context.Context) (*Pending, error)

// Session is one user's board: the store plus the machinery that changes it.
// All handlers for that user share the session.
type Session struct {
	userID uuid.UUID
	gw     Gateway
	clock  Clock
	logger *zap.Logger

	store *Store
	exec  *Executor
	edits *Debouncer
	drag  *DragEngine

	publisher Publisher
	notes     notificationQueue

	undoMu    sync.Mutex
	undo      map[uuid.UUID]undoAction
	undoOrder []uuid.UUID
}

// NewSession creates an empty session; call Load before use
func NewSession(userID uuid.UUID, gw Gateway, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = NewClock(time.UTC)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Session{
		userID:    userID,
		gw:        gw,
		clock:     opts.Clock,
		logger:    logpkg.ForUser(opts.Logger, userID.String()),
		store:     NewStore(),
		edits:     NewDebouncer(opts.EditDebounce),
		publisher: opts.Publisher,
		undo:      make(map[uuid.UUID]undoAction),
	}
	s.exec = NewExecutor(s, s.logger, opts.GatewayTimeout)
	s.drag = NewDragEngine(s.store.Task, s.clock)
	return s
}

// UserID returns the session owner
func (s *Session) UserID() uuid.UUID { return s.userID }

// Store exposes the session state for reads
func (s *Session) Store() *Store { return s.store }

// Drag returns the session's drag engine
func (s *Session) Drag() *DragEngine { return s.drag }

// Clock returns the clock the board is evaluated against
func (s *Session) Clock() Clock { return s.clock }

// Notify queues a notification and pushes it to live connections
func (s *Session) Notify(n Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock.Now()
	}
	s.notes.push(n)
	if s.publisher != nil {
		s.publisher.Publish(s.userID, n)
	}
}

// Notifications drains the queued notifications
func (s *Session) Notifications() []Notification {
	return s.notes.drain()
}

func (s *Session) notifyError(msg string) {
	s.Notify(Notification{Level: LevelError, Message: msg})
}

func (s *Session) notifySuccess(msg string) {
	s.Notify(Notification{Level: LevelSuccess, Message: msg})
}

// Load fetches profiles and settings, creating the defaults for a new user,
// picks the current profile and loads its tasks and categories.
func (s *Session) Load(ctx context.Context) error {
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	var (
		profiles []models.Profile
		settings *models.UserSettings
		prefs    models.Preferences
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.gw.Profiles.List(gctx, s.userID)
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		got, err := s.gw.Settings.Get(gctx, s.userID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings = got
		return nil
	})
	g.Go(func() error {
		if s.gw.Preferences == nil {
			return nil
		}
		got, err := s.gw.Preferences.Load(gctx, s.userID)
		if err != nil {
			s.logger.Warn("failed_to_load_preferences", zap.Error(err))
			return nil
		}
		prefs = got
		return nil
	})
	if err := g.Wait(); err != nil {
		s.notifyError("Could not load your board")
		return err
	}

	if len(profiles) == 0 {
		p := models.Profile{UserID: s.userID, Name: models.DefaultProfileName, Order: 0}
		if err := s.gw.Profiles.Create(ctx, &p); err != nil {
			s.notifyError("Could not create your first profile")
			return fmt.Errorf("failed to create default profile: %w", err)
		}
		profiles = []models.Profile{p}
		s.logger.Info("default_profile_created", zap.String("profile_id", p.ID.String()))
	}

	if settings == nil {
		settings = models.DefaultUserSettings(s.userID)
		settings.DefaultProfileID = &profiles[0].ID
		if err := s.gw.Settings.Create(ctx, settings); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	s.store.SetProfiles(profiles)
	s.store.SetSettings(settings)
	if prefs.ViewMode == models.ViewModeCalendar || prefs.ViewMode == models.ViewModeColumns {
		s.store.SetView(prefs.ViewMode)
	}

	current := pickProfile(profiles, settings.DefaultProfileID, prefs.LastProfileID)
	s.store.SetCurrentProfile(current)
	return s.loadProfileData(ctx, current)
}

// pickProfile prefers the settings default, then the last active profile,
// then the first profile by order.
func pickProfile(profiles []models.Profile, preferred ...*uuid.UUID) uuid.UUID {
	for _, id := range preferred {
		if id == nil {
			continue
		}
		if slices.ContainsFunc(profiles, func(p models.Profile) bool { return p.ID == *id }) {
			return *id
		}
	}
	return profiles[0].ID
}

func (s *Session) loadProfileData(ctx context.Context, profileID uuid.UUID) error {
	var (
		tasks      []models.Task
		categories []models.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.gw.Tasks.ListByProfile(gctx, profileID)
		if err != nil {
			return fmt.Errorf("failed to load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.gw.Categories.ListByProfile(gctx, profileID)
		if err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.notifyError("Could not load tasks")
		return err
	}

	s.store.SetTasks(tasks)
	s.store.SetCategories(categories)
	return nil
}

// Reload flushes pending edits and refetches the current profile's data
func (s *Session) Reload(ctx context.Context) error {
	s.edits.Flush()
	current, ok := s.store.CurrentProfile()
	if !ok {
		return s.Load(ctx)
	}
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)
	return s.loadProfileData(ctx, current)
}

// SwitchProfile makes id the current profile and remembers the choice both
// in the settings and in the preference cache.
func (s *Session) SwitchProfile(ctx context.Context, id uuid.UUID) error {
	if !slices.ContainsFunc(s.store.Profiles(), func(p models.Profile) bool { return p.ID == id }) {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	s.edits.Flush()
	s.drag.CancelDate()

	if settings := s.store.Settings(); settings != nil {
		settings.DefaultProfileID = &id
		if err := s.gw.Settings.Update(ctx, settings); err != nil {
			s.logger.Warn("failed_to_save_default_profile", zap.Error(err))
		} else {
			s.store.SetSettings(settings)
		}
	}
	s.savePreferences(ctx, func(p *models.Preferences) { p.LastProfileID = &id })

	s.store.SetCurrentProfile(id)
	s.store.ClearSelection()
	s.store.SetFilters(Criteria{})
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)
	return s.loadProfileData(ctx, id)
}

// SetView switches between columns and calendar and remembers the choice
func (s *Session) SetView(ctx context.Context, v models.ViewMode) error {
	if v != models.ViewModeColumns && v != models.ViewModeCalendar {
		return invalid("unknown view mode %q", v)
	}
	s.store.SetView(v)
	s.savePreferences(ctx, func(p *models.Preferences) { p.ViewMode = v })
	return nil
}

func (s *Session) savePreferences(ctx context.Context, change func(*models.Preferences)) {
	if s.gw.Preferences == nil {
		return
	}
	prefs := models.Preferences{ViewMode: s.store.View()}
	if id, ok := s.store.CurrentProfile(); ok {
		prefs.LastProfileID = &id
	}
	change(&prefs)
	if err := s.gw.Preferences.Save(ctx, s.userID, prefs); err != nil {
		s.logger.Warn("failed_to_save_preferences", zap.Error(err))
	}
}

// Flush persists pending debounced edits now
func (s *Session) Flush() {
	s.edits.Flush()
}

// Wait blocks until every scheduled edit and in-flight remote call is done
func (s *Session) Wait() {
	s.edits.Wait()
	s.exec.Wait()
}

// Close flushes pending edits and waits for in-flight calls
func (s *Session) Close() {
	s.edits.Flush()
	s.Wait()
}

func (s *Session) registerUndo(fn undoAction) uuid.UUID {
	id := uuid.New()
	s.undoMu.Lock()
	defer s.undoMu.Unlock()
	s.undo[id] = fn
	s.undoOrder = append(s.undoOrder, id)
	if over := len(s.undoOrder) - maxUndoActions; over > 0 {
		for _, old := range s.undoOrder[:over] {
			delete(s.undo, old)
		}
		s.undoOrder = slices.Clone(s.undoOrder[over:])
	}
	return id
}

// Undo runs the undo action attached to a notification. Each action runs once
func (s *Session) Undo(ctx context.Context, undoID uuid.UUID) (*Pending, error) {
	s.undoMu.Lock()
	fn, ok := s.undo[undoID]
	if ok {
		delete(s.undo, undoID)
		s.undoOrder = slices.DeleteFunc(s.undoOrder, func(id uuid.UUID) bool { return id == undoID })
	}
	s.undoMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("undo action %s: %w", undoID, ErrNotFound)
	}
	return fn(ctx)
}

func (s *Session) currentProfile() (uuid.UUID, error) {
	id, ok := s.store.CurrentProfile()
	if !ok {
		return uuid.Nil, ErrNoProfile
	}
	return id, nil
}
