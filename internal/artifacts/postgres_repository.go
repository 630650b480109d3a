package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores artifacts in the artifacts table.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("artifacts: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateArtifactRequest) (*Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO artifacts (id, source, user_prompt, user_image_url, generated_image_url, ai_prompt, ai_provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		string(req.Source),
		req.UserPrompt,
		nullable(req.UserImageURL),
		req.GeneratedImageURL,
		nullable(req.AIPrompt),
		req.AIProvider,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("artifacts: insert failed: %w", err)
	}

	return &Artifact{
		ID:                id.String(),
		Source:            req.Source,
		UserPrompt:        req.UserPrompt,
		UserImageURL:      req.UserImageURL,
		GeneratedImageURL: req.GeneratedImageURL,
		AIPrompt:          req.AIPrompt,
		AIProvider:        req.AIProvider,
		CreatedAt:         createdAt,
	}, nil
}

// GetByID fetches one artifact. Ids that are not uuids fail with ErrInvalidID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Artifact, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	query := `
		SELECT id, source, user_prompt, COALESCE(user_image_url, ''), generated_image_url,
		       COALESCE(ai_prompt, ''), ai_provider, created_at
		FROM artifacts
		WHERE id = $1
	`
	var (
		artifact Artifact
		rowID    uuid.UUID
		source   string
	)
	if err := r.db.QueryRow(ctx, query, parsed).Scan(
		&rowID,
		&source,
		&artifact.UserPrompt,
		&artifact.UserImageURL,
		&artifact.GeneratedImageURL,
		&artifact.AIPrompt,
		&artifact.AIProvider,
		&artifact.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("artifacts: select failed: %w", err)
	}
	artifact.ID = rowID.String()
	artifact.Source = Source(source)
	return &artifact, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
