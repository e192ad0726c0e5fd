package database

import "context"

// Repositories bundles every repository over one connection pool
type Repositories struct {
	Users       *UserRepository
	Profiles    *ProfileRepository
	Categories  *CategoryRepository
	Tasks       *TaskRepository
	Comments    *CommentRepository
	Attachments *AttachmentRepository
	Settings    *SettingsRepository

	OIDCConfig      *OIDCConfigRepository
	CorsConfig      *CorsConfigRepository
	RatelimitConfig *RatelimitConfigRepository
}

// NewRepositories creates all repositories for db
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Profiles:    NewProfileRepository(db),
		Categories:  NewCategoryRepository(db),
		Tasks:       NewTaskRepository(db),
		Comments:    NewCommentRepository(db),
		Attachments: NewAttachmentRepository(db),
		Settings:    NewSettingsRepository(db),

		OIDCConfig:      NewOIDCConfigRepository(db),
		CorsConfig:      NewCorsConfigRepository(db),
		RatelimitConfig: NewRatelimitConfigRepository(db),
	}
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
