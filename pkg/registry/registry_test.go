package registry

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easydarwin/easycms-go/pkg/protocol"
)

type fakeDevice struct {
	id      string
	entry   protocol.DeviceEntry
	holders atomic.Int32
	killed  atomic.Bool
}

func (d *fakeDevice) ID() string                  { return d.id }
func (d *fakeDevice) Entry() protocol.DeviceEntry { return d.entry }
func (d *fakeDevice) Retain()                     { d.holders.Add(1) }
func (d *fakeDevice) Release()                    { d.holders.Add(-1) }
func (d *fakeDevice) Kill(string)                 { d.killed.Store(true) }

func dev(id, serial string) *fakeDevice {
	return &fakeDevice{id: id, entry: protocol.DeviceEntry{Serial: serial}}
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	d := dev("s1", "CAM001")

	incumbent, err := r.Register("CAM001", d)
	require.NoError(t, err)
	assert.Nil(t, incumbent)
	assert.True(t, r.Has("CAM001"))
	assert.Equal(t, 1, r.Len())

	got, err := r.Resolve("CAM001")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID())
	assert.Equal(t, int32(1), d.holders.Load(), "Resolve must retain the session")
	got.Release()
	assert.Equal(t, int32(0), d.holders.Load())

	_, err = r.Resolve("CAM999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterConflictReportsIncumbent(t *testing.T) {
	r := New()
	first := dev("s1", "CAM001")
	second := dev("s2", "CAM001")

	_, err := r.Register("CAM001", first)
	require.NoError(t, err)

	incumbent, err := r.Register("CAM001", second)
	assert.ErrorIs(t, err, ErrSerialConflict)
	require.NotNil(t, incumbent)
	assert.Equal(t, "s1", incumbent.ID())

	// The incumbent keeps the serial until it is torn down.
	got, err := r.Resolve("CAM001")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID())
	got.Release()
}

func TestRegisterSameSessionIsIdempotent(t *testing.T) {
	r := New()
	d := dev("s1", "CAM001")

	_, err := r.Register("CAM001", d)
	require.NoError(t, err)

	// Heartbeat re-registration by the same session succeeds.
	incumbent, err := r.Register("CAM001", d)
	require.NoError(t, err)
	assert.Nil(t, incumbent)
	assert.Equal(t, 1, r.Len())
}

func TestUnregisterOnlyRemovesOwnEntry(t *testing.T) {
	r := New()
	old := dev("s1", "CAM001")
	_, err := r.Register("CAM001", old)
	require.NoError(t, err)

	// A newer session takes over the serial.
	replacement := dev("s2", "CAM001")
	delete(r.devices, "CAM001")
	_, err = r.Register("CAM001", replacement)
	require.NoError(t, err)

	// The old session's teardown must not evict the replacement.
	r.Unregister("CAM001", old)
	assert.True(t, r.Has("CAM001"))

	r.Unregister("CAM001", replacement)
	assert.False(t, r.Has("CAM001"))
}

func TestCallbacks(t *testing.T) {
	r := New()

	var registered, removed []string
	r.OnRegistered(func(serial string, _ Device) {
		registered = append(registered, serial)
	})
	r.OnRemoved(func(serial string) {
		removed = append(removed, serial)
	})

	d := dev("s1", "CAM001")
	_, err := r.Register("CAM001", d)
	require.NoError(t, err)
	r.Unregister("CAM001", d)

	assert.Equal(t, []string{"CAM001"}, registered)
	assert.Equal(t, []string{"CAM001"}, removed)
}

func TestSnapshot(t *testing.T) {
	r := New()
	_, err := r.Register("CAM001", dev("s1", "CAM001"))
	require.NoError(t, err)
	_, err = r.Register("NVR001", dev("s2", "NVR001"))
	require.NoError(t, err)

	entries := r.Snapshot()
	assert.Len(t, entries, 2)
	serials := map[string]bool{}
	for _, e := range entries {
		serials[e.Serial] = true
	}
	assert.True(t, serials["CAM001"])
	assert.True(t, serials["NVR001"])
}
