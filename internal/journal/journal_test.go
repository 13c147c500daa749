package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteAndRead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.cbor")
	base := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	w, err := Open(path)
	require.NoError(t, err)

	events := []Event{
		{Timestamp: base, Kind: KindCheckIn, Phase: "Warning", Generation: 1, Source: "terminal"},
		{Timestamp: base.Add(time.Second), Kind: KindExpiry, Phase: "DeadMan", Generation: 2, JobID: "a", JobKind: "warning"},
		{Timestamp: base.Add(2 * time.Second), Kind: KindDelivery, Generation: 1, JobID: "a", JobKind: "warning", Attempts: 3},
	}

	for _, event := range events {
		require.NoError(t, w.Record(event))
	}

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Record(events[0]), ErrClosed)

	got, err := ReadAll(path, Filter{})
	require.NoError(t, err)
	require.Len(t, got, len(events))

	for i := range events {
		require.True(t, events[i].Timestamp.Equal(got[i].Timestamp))

		got[i].Timestamp = events[i].Timestamp
	}

	require.Equal(t, events, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())
}

func TestReadAll_Filter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.cbor")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w, err := Open(path)
	require.NoError(t, err)

	for i := range 4 {
		kind := KindCheckIn
		if i%2 == 1 {
			kind = KindExpiry
		}

		require.NoError(t, w.Record(Event{Timestamp: base.Add(time.Duration(i) * time.Minute), Kind: kind, Generation: uint64(i)}))
	}

	require.NoError(t, w.Close())

	checkIns, err := ReadAll(path, Filter{Kind: KindCheckIn})
	require.NoError(t, err)
	require.Len(t, checkIns, 2)

	recent, err := ReadAll(path, Filter{Since: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(2), recent[0].Generation)
}

func TestConcurrentRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.cbor")

	w, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = w.Record(Event{Timestamp: time.Now(), Kind: KindCheckIn, Generation: uint64(i)})
		}()
	}

	wg.Wait()
	require.NoError(t, w.Close())

	events, err := ReadAll(path, Filter{})
	require.NoError(t, err)
	require.Len(t, events, 32)
}

func TestDecode_Corrupt(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte{0xff, 0x00, 0x13}), Filter{})
	require.Error(t, err)

	_, err = ReadAll(filepath.Join(t.TempDir(), "missing"), Filter{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "check_in", KindCheckIn.String())
	require.Equal(t, "expiry", KindExpiry.String())
	require.Equal(t, "delivery", KindDelivery.String())
	require.Equal(t, "kind(9)", Kind(9).String())
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindCheckIn, KindExpiry, KindDelivery} {
		parsed, err := ParseKind(kind.String())
		require.NoError(t, err)
		require.Equal(t, kind, parsed)
	}

	parsed, err := ParseKind("DELIVERY")
	require.NoError(t, err)
	require.Equal(t, KindDelivery, parsed)

	_, err = ParseKind("reboot")
	require.ErrorIs(t, err, ErrUnknownKind)
}
