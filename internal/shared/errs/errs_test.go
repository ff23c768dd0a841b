package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindOfAndStatus(t *testing.T) {
	cases := []struct {
		err    error
		kind   Kind
		status int
	}{
		{Validation("quantity is required"), KindValidation, http.StatusBadRequest},
		{NotFound("sale %s not found", "s1"), KindNotFound, http.StatusNotFound},
		{Conflict("invoice already exists"), KindConflict, http.StatusConflict},
		{Internal("boom", errors.New("db down")), KindInternal, http.StatusInternalServerError},
		{errors.New("plain"), KindInternal, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("x")), KindNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err), tc.err.Error())
		assert.Equal(t, tc.status, HTTPStatus(KindOf(tc.err)))
	}
}

func TestFromDB(t *testing.T) {
	assert.Nil(t, FromDB(nil, "stone"))

	nf := FromDB(gorm.ErrRecordNotFound, "stone")
	assert.True(t, Is(nf, KindNotFound))
	assert.Equal(t, "stone not found", nf.Error())

	dup := FromDB(gorm.ErrDuplicatedKey, "stone")
	assert.True(t, Is(dup, KindConflict))
	assert.True(t, errors.Is(dup, gorm.ErrDuplicatedKey))

	raw := FromDB(errors.New("UNIQUE constraint failed: erp_stones.name"), "stone")
	assert.True(t, Is(raw, KindConflict))

	other := FromDB(errors.New("connection reset"), "stone")
	assert.True(t, Is(other, KindInternal))

	typed := Validation("bad")
	assert.Same(t, typed, FromDB(typed, "stone"))
}
