package ortutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name  string
	err   error
	order *[]string
}

func (r *recorder) Destroy() error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestDestroyAllOrderAndErrors(t *testing.T) {
	var order []string
	errFirst := errors.New("first failed")
	errThird := errors.New("third failed")

	err := DestroyAll(
		&recorder{name: "first", err: errFirst, order: &order},
		&recorder{name: "second", order: &order},
		&recorder{name: "third", err: errThird, order: &order},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errThird)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDestroyAllSkipsNil(t *testing.T) {
	var order []string
	var typedNil *recorder

	err := DestroyAll(nil, typedNil, &recorder{name: "only", order: &order})

	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, order)
}

func TestDestroyAllEmpty(t *testing.T) {
	assert.NoError(t, DestroyAll())
}
