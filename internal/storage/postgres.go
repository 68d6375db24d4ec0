package storage

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobharvest/harvester/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore persists job postings. Uniqueness of (url, scraped_at) is
// enforced by the table constraint, so concurrent writers stay correct.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// Migrate creates the job_postings table and its indexes if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertIfNew stores p unless a posting with the same (url, scraped_at)
// exists. Storage faults come back as *domain.PersistError. The write is
// committed before returning, so readers see it immediately.
func (s *PostgresStore) InsertIfNew(ctx context.Context, p *domain.JobPosting) (domain.InsertOutcome, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO job_postings (platform, company, title, url, date_posted, description, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (url, scraped_at) DO NOTHING`,
		p.Platform, p.Company, p.Title, p.URL, p.DatePosted, p.Description, p.ScrapedAt,
	)
	if err != nil {
		return 0, &domain.PersistError{URL: p.URL, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.SkippedDuplicate, nil
	}
	return domain.Inserted, nil
}

// ListJobs returns postings newest first, filtered by case-insensitive title
// substring and exact platform.
func (s *PostgresStore) ListJobs(ctx context.Context, q domain.JobQuery) ([]domain.JobPosting, error) {
	sql, args := buildListQuery(q)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query job postings: %w", err)
	}
	defer rows.Close()

	jobs := []domain.JobPosting{}
	for rows.Next() {
		var j domain.JobPosting
		if err := rows.Scan(
			&j.ID,
			&j.Platform,
			&j.Company,
			&j.Title,
			&j.URL,
			&j.DatePosted,
			&j.Description,
			&j.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job posting: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func buildListQuery(q domain.JobQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.Title != "" {
		args = append(args, "%"+escapeLike(q.Title)+"%")
		where = append(where, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if q.Platform != "" {
		args = append(args, q.Platform)
		where = append(where, fmt.Sprintf("platform = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT id, platform, company, title, url, date_posted, description, scraped_at FROM job_postings")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, q.Limit, q.Offset())
	fmt.Fprintf(&b, " ORDER BY scraped_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
