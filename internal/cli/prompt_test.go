package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lupa/roster/internal/database"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTarget(t *testing.T) {
	tt := []struct {
		name       string
		arg        string
		input      string
		expTarget  string
		expInvalid int
	}{
		{name: "argument up", arg: "up", expTarget: "up"},
		{name: "argument version", arg: "100", expTarget: "100"},
		{name: "prompted down", input: "down\n", expTarget: "down"},
		{name: "invalid argument then prompt", arg: "sideways!", input: "20\n", expTarget: "20", expInvalid: 1},
		{name: "re-prompt until valid", input: "\nnot valid\n0\n", expTarget: "0", expInvalid: 2},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer

			target, err := ReadTarget(tc.arg, strings.NewReader(tc.input), &out)
			require.NoError(t, err)

			assert.Equal(t, tc.expTarget, target.String())
			assert.Equal(t, tc.expInvalid, strings.Count(out.String(), "Invalid direction/version."))
		})
	}

	t.Run("input ends without a target", func(t *testing.T) {
		var out bytes.Buffer

		_, err := ReadTarget("", strings.NewReader("nope nope\n"), &out)
		assert.True(t, errors.Is(err, ErrNoTarget))
	})

	t.Run("zero target reverts everything", func(t *testing.T) {
		target, err := ReadTarget("0", strings.NewReader(""), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, database.TargetVersion, target.Kind)
		assert.True(t, target.Version.IsZero())
	})
}
