package heapfile

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gorellydb/gorelly/bufferpool"
	"github.com/gorellydb/gorelly/disk"
)

func newTestHeapFile(t *testing.T, poolSize int) *HeapFile {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_heapfile_*.db")
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
	t.Cleanup(func() { dm.Close() })

	pool := bufferpool.NewManager(dm, poolSize)
	return New(pool)
}

// A few small inserts all land on the first allocated page; enough inserts
// to exceed one page's capacity grows the page list to length 2.
func TestHeapFileGrowsOnlyWhenAPageFills(t *testing.T) {
	hf := newTestHeapFile(t, 8)

	var firstPage disk.PageID
	for i := 0; i < 3; i++ {
		tid, ok, err := hf.InsertTuple([]byte("small"))
		require.NoError(t, err)
		require.Truef(t, ok, "insert %d: expected success", i)
		if i == 0 {
			firstPage = tid.PageID
		} else {
			require.Equalf(t, firstPage, tid.PageID, "insert %d: expected to land on first page", i)
		}
	}
	require.Lenf(t, hf.PageIDs(), 1, "expected page list length 1 after small inserts")

	// A payload close to a full page's capacity forces a new page.
	big := bytes.Repeat([]byte("x"), 3000)
	for i := 0; i < 2; i++ {
		_, ok, err := hf.InsertTuple(big)
		require.NoError(t, err)
		require.Truef(t, ok, "big insert %d: expected success", i)
	}

	require.Lenf(t, hf.PageIDs(), 2, "expected page list to grow to length 2")
}

func TestInsertAndReadTupleRoundTrip(t *testing.T) {
	hf := newTestHeapFile(t, 4)

	tid, ok, err := hf.InsertTuple([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected insert to succeed")
	}

	got, ok, err := hf.ReadTuple(tid)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected read to succeed")
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}
}

func TestDeleteTupleThenReadFails(t *testing.T) {
	hf := newTestHeapFile(t, 4)

	tid, ok, err := hf.InsertTuple([]byte("gone soon"))
	if err != nil || !ok {
		t.Fatalf("insert: ok=%v err=%v", ok, err)
	}

	if ok, err := hf.DeleteTuple(tid); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	if _, ok, err := hf.ReadTuple(tid); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected read of deleted tuple to fail")
	}
}

func TestUpdateTupleChangesPayload(t *testing.T) {
	hf := newTestHeapFile(t, 4)

	tid, ok, err := hf.InsertTuple([]byte("v1"))
	if err != nil || !ok {
		t.Fatalf("insert: ok=%v err=%v", ok, err)
	}

	if ok, err := hf.UpdateTuple(tid, []byte("version two, longer")); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	got, ok, err := hf.ReadTuple(tid)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if string(got) != "version two, longer" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertFillsFirstPageBeforeAllocatingASecond(t *testing.T) {
	hf := newTestHeapFile(t, 8)

	// Insert tuples sized so exactly a handful fit on one page, forcing the
	// rest onto a newly-allocated page, and confirm early tuples remain
	// readable from the first page after the heap file has grown.
	var ids []TupleID
	payload := bytes.Repeat([]byte("y"), 1500)
	for i := 0; i < 4; i++ {
		tid, ok, err := hf.InsertTuple(payload)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("insert %d: expected success", i)
		}
		ids = append(ids, tid)
	}

	if got := len(hf.PageIDs()); got < 2 {
		t.Fatalf("expected heap file to span at least 2 pages, got %d", got)
	}

	for i, tid := range ids {
		got, ok, err := hf.ReadTuple(tid)
		if err != nil || !ok {
			t.Fatalf("read tuple %d: ok=%v err=%v", i, ok, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("read tuple %d: payload mismatch", i)
		}
	}
}
