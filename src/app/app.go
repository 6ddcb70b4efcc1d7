package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/panjf2000/ants"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/btredo/src"
	"github.com/Blackdeer1524/btredo/src/bufferpool"
	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/recovery"
	"github.com/Blackdeer1524/btredo/src/storage/disk"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

// relExt is the extension of relation files inside a data directory; the
// base name is the numeric relation id.
const relExt = ".rel"

// App wires the store and the replayer together for the CLI.
type App struct {
	cfg Config
	fs  afero.Fs
	log src.Logger

	disk *disk.Manager
	pool *bufferpool.Manager
	rec  *recovery.Manager
}

func New(cfg Config, fs afero.Fs, log src.Logger) *App {
	dm := disk.New(fs, nil)
	pool := bufferpool.New(cfg.PoolCapacity, bufferpool.NewLRUReplacer(), dm, log)

	return &App{
		cfg:  cfg,
		fs:   fs,
		log:  log,
		disk: dm,
		pool: pool,
		rec:  recovery.New(pool, common.NoStandby{}, log),
	}
}

// OpenStore maps every relation file in the directory. Files that do not
// look like <id>.rel are ignored.
func (a *App) OpenStore(dir string) error {
	infos, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return errors.Wrapf(err, "read data dir %s", dir)
	}

	n := 0
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), relExt) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(info.Name(), relExt), 10, 32)
		if err != nil {
			a.log.Warnw("skipping relation file with non-numeric name", "file", info.Name())
			continue
		}
		a.disk.InsertToFileMap(common.RelFileID(id), filepath.Join(dir, info.Name()))
		n++
	}

	a.log.Infow("store opened", "dir", dir, "relations", n)
	return nil
}

// Replay runs one full recovery pass over a log segment and flushes the
// result. Reading frames and applying them are pipelined; application
// itself stays strictly single-threaded.
func (a *App) Replay(ctx context.Context, walPath string) error {
	f, err := a.fs.Open(walPath)
	if err != nil {
		return errors.Wrapf(err, "open segment %s", walPath)
	}
	defer f.Close()

	run := a.rec.Begin()

	g, ctx := errgroup.WithContext(ctx)
	entries := make(chan recovery.Entry, 64)

	g.Go(func() error {
		defer close(entries)

		it := recovery.NewSegmentIterator(f)
		for it.MoveForward() {
			select {
			case entries <- it.Entry():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return it.Err()
	})

	g.Go(func() error {
		for e := range entries {
			applied, err := run.RestoreBackupBlocks(e.LSN, e.Kind, e.Backups)
			if err != nil {
				return errors.Wrapf(err, "restore images at lsn %d", e.LSN)
			}
			if err := run.Redo(e.LSN, e.Kind, e.Payload, applied); err != nil {
				return errors.Wrapf(err, "redo at lsn %d", e.LSN)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return run.Cleanup()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := a.pool.FlushAllPages(); err != nil {
		return errors.Wrap(err, "flush")
	}

	a.log.Infow("replay complete", "segment", walPath)
	return nil
}

// Describe prints a per-record summary of a log segment.
func (a *App) Describe(walPath string, out io.Writer) error {
	f, err := a.fs.Open(walPath)
	if err != nil {
		return errors.Wrapf(err, "open segment %s", walPath)
	}
	defer f.Close()

	it := recovery.NewSegmentIterator(f)
	for it.MoveForward() {
		e := it.Entry()
		suffix := ""
		if n := len(e.Backups); n > 0 {
			suffix = fmt.Sprintf(" [%d full-page images]", n)
		}
		if _, err := fmt.Fprintf(out, "%10d  %s%s\n", e.LSN, recovery.Describe(e.Kind, e.Payload), suffix); err != nil {
			return err
		}
	}
	return it.Err()
}

// Verify compares two relation files block by block after masking, in
// parallel. It reports every differing block, not just the first.
func (a *App) Verify(pathA, pathB string) error {
	sizeA, err := a.relSize(pathA)
	if err != nil {
		return err
	}
	sizeB, err := a.relSize(pathB)
	if err != nil {
		return err
	}
	if sizeA != sizeB {
		return errors.Errorf("size mismatch: %s has %d blocks, %s has %d", pathA, sizeA, pathB, sizeB)
	}

	workers := a.cfg.VerifyWorkers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return errors.Wrap(err, "worker pool")
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		bad      []common.BlockNumber
		firstErr error
	)
	var wg sync.WaitGroup

	for blk := common.BlockNumber(0); blk < sizeA; blk++ {
		blk := blk
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			equal, err := a.compareBlock(pathA, pathB, blk)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if err == nil && !equal {
				bad = append(bad, blk)
			}
		})
		if err != nil {
			wg.Done()
			return errors.Wrap(err, "submit compare task")
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if len(bad) > 0 {
		sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
		return errors.Errorf("%d blocks differ after masking: %v", len(bad), bad)
	}

	a.log.Infow("relations match", "a", pathA, "b", pathB, "blocks", sizeA)
	return nil
}

func (a *App) relSize(path string) (common.BlockNumber, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", path)
	}
	if info.Size()%page.PageSize != 0 {
		return 0, errors.Errorf("%s is not block-aligned: %d bytes", path, info.Size())
	}
	return common.BlockNumber(info.Size() / page.PageSize), nil
}

func (a *App) compareBlock(pathA, pathB string, blk common.BlockNumber) (bool, error) {
	imgA, err := a.readBlock(pathA, blk)
	if err != nil {
		return false, err
	}
	imgB, err := a.readBlock(pathB, blk)
	if err != nil {
		return false, err
	}

	recovery.Mask(imgA, blk)
	recovery.Mask(imgB, blk)
	return bytes.Equal(imgA, imgB), nil
}

func (a *App) readBlock(path string, blk common.BlockNumber) ([]byte, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	buf := make([]byte, page.PageSize)
	if _, err := f.ReadAt(buf, int64(blk)*page.PageSize); err != nil {
		return nil, errors.Wrapf(err, "read block %d of %s", blk, path)
	}
	return buf, nil
}
