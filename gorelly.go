// Package gorelly wires the disk manager, buffer pool and heap file
// together into one embeddable handle, constructed from engineconfig
// options instead of each layer being assembled by hand.
package gorelly

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/gorellydb/gorelly/bufferpool"
	"github.com/gorellydb/gorelly/disk"
	"github.com/gorellydb/gorelly/engineconfig"
	"github.com/gorellydb/gorelly/enginelog"
	"github.com/gorellydb/gorelly/heapfile"
)

var log = enginelog.Component("gorelly")

// Engine is a ready-to-use storage engine instance: a disk manager, a
// buffer pool sized per Options.PoolSize, and one heap file over them.
type Engine struct {
	disk       *disk.DiskManager
	bufferPool *bufferpool.Manager
	heapFile   *heapfile.HeapFile
}

// Open constructs an Engine from opts, creating opts.DataDir if it does
// not already exist.
func Open(opts engineconfig.Options) (*Engine, error) {
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %q", opts.DataDir)
	}

	path := filepath.Join(opts.DataDir, opts.HeapFileName)
	dm, err := disk.OpenDiskManager(path)
	if err != nil {
		return nil, err
	}

	pool := bufferpool.NewManager(dm, opts.PoolSize)
	log.WithField("pool_size", opts.PoolSize).Info("engine opened")

	return &Engine{
		disk:       dm,
		bufferPool: pool,
		heapFile:   heapfile.New(pool),
	}, nil
}

// HeapFile returns the engine's single heap file.
func (e *Engine) HeapFile() *heapfile.HeapFile { return e.heapFile }

// Close flushes every dirty resident frame and closes the backing file.
func (e *Engine) Close() error {
	if err := e.bufferPool.Flush(); err != nil {
		return err
	}
	return e.disk.Close()
}
