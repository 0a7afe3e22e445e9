package ferrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound.Status())
	assert.Equal(t, http.StatusConflict, Conflict.Status())
	assert.Equal(t, http.StatusBadGateway, TransportError.Status())
	assert.Equal(t, http.StatusInternalServerError, Kind("unknown").Status())
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	fe := Wrap(Internal, cause, "write store")

	assert.Equal(t, cause, errors.Unwrap(fe))
	assert.Equal(t, "internal: write store", fe.Error())
}

func TestAsAndKindOfExtractWrappedError(t *testing.T) {
	fe := New(Conflict, "already claimed")

	extracted, ok := As(fe)
	assert.True(t, ok)
	assert.Equal(t, fe, extracted)
	assert.Equal(t, Conflict, KindOf(fe))
	assert.True(t, IsConflict(fe))
	assert.False(t, IsNotFound(fe))
}

func TestKindOfNonFleetErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}
