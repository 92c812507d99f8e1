package fdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vswitch/internal/core"
)

var (
	mac1 = core.MAC{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	mac2 = core.MAC{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
	mac3 = core.MAC{0x02, 0x42, 0xac, 0x11, 0x00, 0x03}
)

func TestLookupEmpty(t *testing.T) {
	tbl := New(0)

	port, ok := tbl.Lookup(mac1)
	assert.False(t, ok)
	assert.Equal(t, core.NoPort, port)
	assert.Equal(t, 0, tbl.Len())
}

func TestLearnIdempotent(t *testing.T) {
	tbl := New(0)

	assert.False(t, tbl.Learn(mac1, 3))
	assert.False(t, tbl.Learn(mac1, 3))

	port, ok := tbl.Lookup(mac1)
	require.True(t, ok)
	assert.Equal(t, core.PortID(3), port)
	assert.Equal(t, 1, tbl.Len())
}

func TestLearnLastWriterWins(t *testing.T) {
	tbl := New(0)

	tbl.Learn(mac1, 1)
	moved := tbl.Learn(mac1, 2)
	assert.True(t, moved)

	port, ok := tbl.Lookup(mac1)
	require.True(t, ok)
	assert.Equal(t, core.PortID(2), port)
	assert.Equal(t, 1, tbl.Len())
}

func TestEntriesSorted(t *testing.T) {
	tbl := New(0)
	tbl.Learn(mac3, 0)
	tbl.Learn(mac2, 1)
	tbl.Learn(mac1, 2)

	entries := tbl.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []Entry{
		{MAC: mac1, Port: 2},
		{MAC: mac2, Port: 1},
		{MAC: mac3, Port: 0},
	}, entries)
}

func TestFlush(t *testing.T) {
	tbl := New(0)
	tbl.Learn(mac1, 0)
	tbl.Learn(mac2, 1)

	assert.Equal(t, 2, tbl.Flush())
	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Lookup(mac1)
	assert.False(t, ok)
}

func TestNoAgingByDefault(t *testing.T) {
	tbl := New(0)
	tbl.Learn(mac1, 0)

	assert.Equal(t, time.Duration(0), tbl.AgingTime())
	assert.Equal(t, 1, tbl.Sweep())
	assert.True(t, tbl.Entries()[0].Expires.IsZero())
}

func TestAging(t *testing.T) {
	tbl := New(20 * time.Millisecond)
	tbl.Learn(mac1, 0)

	entries := tbl.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Expires.IsZero())

	time.Sleep(40 * time.Millisecond)

	_, ok := tbl.Lookup(mac1)
	assert.False(t, ok, "expired entry must not match")
	assert.Equal(t, 1, tbl.Len(), "expired entry stays until swept")
	assert.Equal(t, 0, tbl.Sweep())
	assert.Equal(t, 0, tbl.Len())
}

func TestAgingRefreshOnLearn(t *testing.T) {
	tbl := New(50 * time.Millisecond)
	tbl.Learn(mac1, 0)

	time.Sleep(30 * time.Millisecond)
	tbl.Learn(mac1, 0)
	time.Sleep(30 * time.Millisecond)

	port, ok := tbl.Lookup(mac1)
	require.True(t, ok)
	assert.Equal(t, core.PortID(0), port)
}

func TestNegativeAgingDisables(t *testing.T) {
	tbl := New(-time.Second)
	assert.Equal(t, time.Duration(0), tbl.AgingTime())
}
