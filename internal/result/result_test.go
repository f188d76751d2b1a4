package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	boom := errors.New("boom")

	t.Run("Ok", func(t *testing.T) {
		r := Ok(5)
		assert.True(t, r.IsOk())
		assert.NoError(t, r.Err())
		assert.Equal(t, 5, r.OrElse(7))
		v, err := r.Unwrap()
		assert.Equal(t, 5, v)
		assert.NoError(t, err)
	})

	t.Run("Err", func(t *testing.T) {
		r := Err[int](boom)
		assert.False(t, r.IsOk())
		assert.ErrorIs(t, r.Err(), boom)
		assert.Equal(t, 7, r.OrElse(7))
	})

	t.Run("From", func(t *testing.T) {
		assert.True(t, From("x", nil).IsOk())
		assert.False(t, From("x", boom).IsOk())
	})

	t.Run("OrElseFunc", func(t *testing.T) {
		called := false
		got := Err[string](boom).OrElseFunc(func(err error) Result[string] {
			called = true
			assert.ErrorIs(t, err, boom)
			return Ok("local")
		})
		assert.True(t, called)
		assert.Equal(t, "local", got.OrElse(""))

		called = false
		Ok("remote").OrElseFunc(func(error) Result[string] {
			called = true
			return Ok("local")
		})
		assert.False(t, called)
	})
}
