package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFromSchema_EmptyRows(t *testing.T) {
	n, err := CopyFromSchema(context.TODO(), nil, "crossing", "segment_scores", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFromSchema_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"crossing", "segment_scores"}, []string{"segment_id", "difficulty"}).WillReturnResult(2)

	rows := [][]any{{"1:0", 0.45}, {"1:1", 0.5}}
	n, err := CopyFromSchema(context.Background(), mock, "crossing", "segment_scores", []string{"segment_id", "difficulty"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"crossing", "segment_scores"}, []string{"a"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFromSchema(context.Background(), mock, "crossing", "segment_scores", []string{"a"}, [][]any{{1}})
	assert.Error(t, err)
}
