package abuse

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard() (*Guard, *clock.Mock) {
	clk := clock.NewMock()
	return NewGuard(configuration.Default().Limits, clk), clk
}

func violationCode(t *testing.T, err error) *Violation {
	t.Helper()
	var v *Violation
	require.True(t, errors.As(err, &v), "expected violation, got %v", err)
	return v
}

func TestCheckMessage(t *testing.T) {
	guard, _ := newGuard()

	assert.NoError(t, guard.CheckMessage(256*1024))

	v := violationCode(t, guard.CheckMessage(256*1024+1))
	assert.Equal(t, CodeMessageTooLarge, v.Code)
	assert.True(t, v.Fatal)
}

func TestAdmitUpdate(t *testing.T) {
	t.Run("61st update in window is rejected", func(t *testing.T) {
		guard, clk := newGuard()

		for i := 0; i < 60; i++ {
			require.NoError(t, guard.AdmitUpdate(), "update %d", i+1)
			clk.Add(100 * time.Millisecond)
		}

		v := violationCode(t, guard.AdmitUpdate())
		assert.Equal(t, CodeTooManyUpdates, v.Code)
		assert.True(t, v.Fatal)
	})

	t.Run("window resets after it elapses", func(t *testing.T) {
		guard, clk := newGuard()

		for i := 0; i < 60; i++ {
			require.NoError(t, guard.AdmitUpdate())
		}

		clk.Add(10*time.Second + time.Millisecond)

		assert.NoError(t, guard.AdmitUpdate())
		assert.Equal(t, 1, guard.WindowCount())
	})

	t.Run("window is not reset at exactly its duration", func(t *testing.T) {
		guard, clk := newGuard()

		for i := 0; i < 60; i++ {
			require.NoError(t, guard.AdmitUpdate())
		}

		clk.Add(10 * time.Second)

		assert.Error(t, guard.AdmitUpdate())
	})
}

func TestCheckContent(t *testing.T) {
	guard, _ := newGuard()

	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "empty", content: ""},
		{name: "at limit", content: strings.Repeat("a", 1024*1024)},
		{name: "multibyte at limit", content: strings.Repeat("é", 1024*1024)},
		{name: "above limit", content: strings.Repeat("a", 1024*1024+1), wantErr: true},
		{name: "astral characters count twice", content: strings.Repeat("😀", 512*1024)},
		{name: "astral characters above limit", content: strings.Repeat("😀", 512*1024) + "a", wantErr: true},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			err := guard.CheckContent(testCase.content)
			if !testCase.wantErr {
				assert.NoError(t, err)
				return
			}

			v := violationCode(t, err)
			assert.Equal(t, CodeContentTooLarge, v.Code)
			assert.False(t, v.Fatal)
		})
	}
}
