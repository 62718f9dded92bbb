package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
)

type capturingRepo struct {
	gotFilter Filter
	gotCursor *Cursor
	gotLimit  int
}

func (r *capturingRepo) Append(ctx context.Context, entries []Entry) error { return nil }

func (r *capturingRepo) History(ctx context.Context, f Filter, cursor *Cursor, limit int) (*Page, error) {
	r.gotFilter, r.gotCursor, r.gotLimit = f, cursor, limit
	return &Page{}, nil
}

func (r *capturingRepo) SumChangeByBatch(ctx context.Context, medicineID id.ID) ([]BatchSum, error) {
	return nil, nil
}

func TestHistory_LimitClamping(t *testing.T) {
	repo := &capturingRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.History(ctx, Filter{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, repo.gotLimit)

	_, err = svc.History(ctx, Filter{}, nil, 10_000)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, repo.gotLimit)

	_, err = svc.History(ctx, Filter{}, nil, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, repo.gotLimit)
}

func TestHistory_InvalidRange(t *testing.T) {
	svc := NewService(&capturingRepo{})

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := svc.History(context.Background(), Filter{From: &from, To: &to}, nil, 10)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
