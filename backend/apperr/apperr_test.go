package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindValidation, KindConflict, KindPermission, KindNotFound} {
		got := FromStatus(k.HTTPStatus(), "c", "m")
		assert.Equal(t, k, got.Kind, k.String())
	}
	assert.Equal(t, KindNetwork, FromStatus(http.StatusInternalServerError, "", "").Kind)
	assert.Equal(t, KindPermission, FromStatus(http.StatusUnauthorized, "", "").Kind)
	assert.Equal(t, KindValidation, FromStatus(http.StatusBadRequest, "", "").Kind)
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("submit: %w", Conflict("duplicate_report", "already reported"))
	assert.True(t, IsConflict(err))
	assert.Equal(t, "duplicate_report", CodeOf(err))

	plain := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(plain))
	assert.False(t, IsNotFound(plain))
	assert.False(t, IsNotFound(nil))
}

func TestFromStatusDefaultMessage(t *testing.T) {
	err := FromStatus(http.StatusBadGateway, "", "")
	assert.Equal(t, "request failed with status 502", err.Error())
}
