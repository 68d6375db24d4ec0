package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobharvest/harvester/internal/domain"
)

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		q        domain.JobQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no filters",
			q:        domain.JobQuery{Page: 1, Limit: 50},
			wantSQL:  "SELECT id, platform, company, title, url, date_posted, description, scraped_at FROM job_postings ORDER BY scraped_at DESC, id DESC LIMIT $1 OFFSET $2",
			wantArgs: []any{50, 0},
		},
		{
			name:     "title and platform",
			q:        domain.JobQuery{Title: "engineer", Platform: "LinkedIn", Page: 3, Limit: 10},
			wantSQL:  `SELECT id, platform, company, title, url, date_posted, description, scraped_at FROM job_postings WHERE title ILIKE $1 ESCAPE '\' AND platform = $2 ORDER BY scraped_at DESC, id DESC LIMIT $3 OFFSET $4`,
			wantArgs: []any{"%engineer%", "LinkedIn", 10, 20},
		},
		{
			name:     "platform only",
			q:        domain.JobQuery{Platform: "Indeed", Page: 2, Limit: 5},
			wantSQL:  "SELECT id, platform, company, title, url, date_posted, description, scraped_at FROM job_postings WHERE platform = $1 ORDER BY scraped_at DESC, id DESC LIMIT $2 OFFSET $3",
			wantArgs: []any{"Indeed", 5, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildListQuery(tt.q)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% remote\_ok \\ c`, escapeLike(`100% remote_ok \ c`))
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.4028235e38}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
