package board

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/cache"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/storage"
)

// Implementations report missing rows with errors wrapping database.ErrNotFound.

// TaskGateway persists tasks and subtasks
type TaskGateway interface {
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task, fields ...models.TaskField) error
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, task *models.Task) error
}

// ProfileGateway persists profiles
type ProfileGateway interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CategoryGateway persists categories
type CategoryGateway interface {
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CommentGateway persists task comments
type CommentGateway interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]models.Comment, error)
	Create(ctx context.Context, c *models.Comment) error
	Update(ctx context.Context, c *models.Comment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AttachmentGateway persists attachment records
type AttachmentGateway interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]models.Attachment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
	Create(ctx context.Context, a *models.Attachment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SettingsGateway persists per-user settings
type SettingsGateway interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
	Create(ctx context.Context, s *models.UserSettings) error
	Update(ctx context.Context, s *models.UserSettings) error
}

// BlobStore holds attachment contents
type BlobStore interface {
	Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// noBlobs stands in for the object store when none is configured
type noBlobs struct{}

func (noBlobs) Upload(context.Context, string, io.Reader, int64, string) error {
	return ErrBlobsDisabled
}

func (noBlobs) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrBlobsDisabled
}

func (noBlobs) Remove(context.Context, string) error { return nil }

func (noBlobs) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrBlobsDisabled
}

// PreferenceCache keeps the small client-side preferences between sessions
type PreferenceCache interface {
	Load(ctx context.Context, userID uuid.UUID) (models.Preferences, error)
	Save(ctx context.Context, userID uuid.UUID, prefs models.Preferences) error
}

// Gateway bundles everything a session talks to
type Gateway struct {
	Tasks       TaskGateway
	Profiles    ProfileGateway
	Categories  CategoryGateway
	Comments    CommentGateway
	Attachments AttachmentGateway
	Settings    SettingsGateway
	Blobs       BlobStore
	Preferences PreferenceCache
}

var (
	_ TaskGateway       = (*database.TaskRepository)(nil)
	_ ProfileGateway    = (*database.ProfileRepository)(nil)
	_ CategoryGateway   = (*database.CategoryRepository)(nil)
	_ CommentGateway    = (*database.CommentRepository)(nil)
	_ AttachmentGateway = (*database.AttachmentRepository)(nil)
	_ SettingsGateway   = (*database.SettingsRepository)(nil)
	_ BlobStore         = (*storage.MinioStore)(nil)
	_ PreferenceCache   = (*cache.PreferenceStore)(nil)
)
