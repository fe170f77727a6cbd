package bufferpool

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gorellydb/gorelly/disk"
	"github.com/gorellydb/gorelly/engineerr"
)

func newTestManager(t *testing.T, poolSize int) (*Manager, string) {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_bufferpool_*.db")
	if err != nil {
		t.Fatal(err)
	}
	path := tmpfile.Name()
	tmpfile.Close()
	t.Cleanup(func() { os.Remove(path) })

	dm, err := disk.OpenDiskManager(path)
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(dm, poolSize), path
}

func TestEvictionWritesBackDirtyVictim(t *testing.T) {
	mgr, path := newTestManager(t, 2)

	pageA, err := mgr.NewPage()
	require.NoError(t, err)
	copy(pageA.Page, bytes.Repeat([]byte("A"), disk.PageSize))
	idA := pageA.PageID

	pageB, err := mgr.NewPage()
	require.NoError(t, err)
	copy(pageB.Page, bytes.Repeat([]byte("B"), disk.PageSize))
	idB := pageB.PageID

	require.True(t, mgr.UnpinPage(idA, true), "unpin page A should succeed")
	require.True(t, mgr.UnpinPage(idB, false), "unpin page B should succeed")

	// A third page forces eviction; the pool only has 2 frames and both
	// are now unpinned candidates, so the clock replacer picks A (frame 0,
	// the first candidate its hand reaches).
	pageC, err := mgr.NewPage()
	require.NoError(t, err)
	idC := pageC.PageID
	require.True(t, mgr.UnpinPage(idC, false), "unpin page C should succeed")

	require.NoError(t, mgr.disk.Close())

	dm2, err := disk.OpenDiskManager(path)
	require.NoError(t, err)
	defer dm2.Close()

	buf := make([]byte, disk.PageSize)
	require.NoError(t, dm2.ReadPageData(idA, buf))
	require.Equal(t, bytes.Repeat([]byte("A"), disk.PageSize), buf,
		"dirty victim A was not flushed to disk on eviction")

	require.NoError(t, dm2.ReadPageData(idB, buf))
	require.NotEqual(t, bytes.Repeat([]byte("B"), disk.PageSize), buf,
		"page B was unpinned clean (dirty=false) and should not have been written back")
}

func TestFetchAfterUnpinReturnsSameBytesWithoutDiskRead(t *testing.T) {
	mgr, _ := newTestManager(t, 4)

	p, err := mgr.NewPage()
	if err != nil {
		t.Fatal(err)
	}
	copy(p.Page, []byte("hello"))
	id := p.PageID
	if !mgr.UnpinPage(id, true) {
		t.Fatal("unpin should succeed")
	}

	p2, err := mgr.FetchPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(p2.Page[:5]) != "hello" {
		t.Fatalf("fetch after unpin: expected 'hello' prefix, got %q", p2.Page[:5])
	}
	if !mgr.UnpinPage(id, false) {
		t.Fatal("second unpin should succeed")
	}
}

func TestFetchWithEveryFramePinnedReturnsNoFreeFrame(t *testing.T) {
	mgr, _ := newTestManager(t, 1)

	p, err := mgr.NewPage()
	if err != nil {
		t.Fatal(err)
	}
	_ = p // stays pinned; never unpinned

	if _, err := mgr.NewPage(); err == nil {
		t.Fatal("expected NewPage to fail when the single frame is pinned")
	}
	if _, err := mgr.FetchPage(p.PageID + 1); !errors.Is(err, engineerr.ErrNoFreeFrame) {
		t.Fatalf("expected FetchPage of a non-resident page to return ErrNoFreeFrame, got %v", err)
	}
}

func TestDoubleUnpinFails(t *testing.T) {
	mgr, _ := newTestManager(t, 1)

	p, err := mgr.NewPage()
	if err != nil {
		t.Fatal(err)
	}
	if !mgr.UnpinPage(p.PageID, false) {
		t.Fatal("first unpin should succeed")
	}
	if mgr.UnpinPage(p.PageID, false) {
		t.Fatal("second unpin of an already-zero pin count should fail")
	}
}

func TestUnpinOfNonResidentPageFails(t *testing.T) {
	mgr, _ := newTestManager(t, 1)
	if mgr.UnpinPage(disk.PageID(999), false) {
		t.Fatal("unpin of a page never fetched should fail")
	}
}
