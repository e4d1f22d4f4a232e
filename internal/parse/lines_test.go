package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func collectLines(t *testing.T, input string) []line {
	t.Helper()
	var out []line
	err := eachLine(strings.NewReader(input), func(l line) bool {
		l.Data = append([]byte(nil), l.Data...)
		out = append(out, l)
		return true
	})
	require.NoError(t, err)
	return out
}

func TestEachLineNumbersAndPartialTail(t *testing.T) {
	t.Parallel()

	got := collectLines(t, "a\r\n\n  \nb\n{\"partial\":")
	require.Len(t, got, 3)
	require.Equal(t, "a", string(got[0].Data))
	require.Equal(t, 1, got[0].Num)
	require.Equal(t, "b", string(got[1].Data))
	require.Equal(t, 4, got[1].Num)
	require.True(t, got[1].Complete)
	require.Equal(t, 5, got[2].Num)
	require.False(t, got[2].Complete)
}

func TestEachLineLongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxLineSize+1)
	got := collectLines(t, long+"\nok\n")
	require.Len(t, got, 2)
	require.True(t, got[0].TooLong)
	require.Empty(t, got[0].Data)
	require.Equal(t, "ok", string(got[1].Data))
	require.Equal(t, 2, got[1].Num)
}

func TestEachLineStopsEarly(t *testing.T) {
	t.Parallel()

	n := 0
	err := eachLine(strings.NewReader("1\n2\n3\n"), func(line) bool {
		n++
		return n < 2
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
