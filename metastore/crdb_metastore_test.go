package metastore

import (
	"errors"
	"testing"

	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestInsertError(t *testing.T) {
	id := model.NewFileGroupID("2023/01/01", "f1")

	dup := insertError(id, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	assert.ErrorIs(t, dup, ErrFileGroupPending)
	assert.True(t, utils.IsPermanent(dup))
	assert.Contains(t, dup.Error(), "2023/01/01/f1")

	retry := &pgconn.PgError{Code: "40001"}
	err := insertError(id, retry)
	assert.NotErrorIs(t, err, ErrFileGroupPending)
	assert.False(t, utils.IsPermanent(err))
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40001", pgErr.Code)
}
