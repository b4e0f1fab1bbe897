package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.Save(t.Context(), "testcases/abc/report.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	f, err := store.Open(t.Context(), "testcases/abc/report.txt")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(t.Context(), "testcases/abc/report.txt"))
	_, err = store.Open(t.Context(), "testcases/abc/report.txt")
	require.Error(t, err)

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete(t.Context(), "testcases/abc/report.txt"))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "a/../../outside", "/etc/passwd"} {
		_, err := store.Save(t.Context(), key, strings.NewReader("x"))
		require.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}
