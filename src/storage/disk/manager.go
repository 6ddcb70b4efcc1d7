package disk

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/btredo/src/pkg/common"
	"github.com/Blackdeer1524/btredo/src/storage/page"
)

var ErrPageNotFound = errors.New("page does not exist on disk")

// Manager reads and writes fixed-size pages of relation files. The
// filesystem is abstracted behind afero so tests run against an in-memory
// fs and the CLI against the real one.
type Manager struct {
	fs afero.Fs

	mu           sync.RWMutex
	fileIDToPath map[common.RelFileID]string
}

func New(fs afero.Fs, fileIDToPath map[common.RelFileID]string) *Manager {
	if fileIDToPath == nil {
		fileIDToPath = map[common.RelFileID]string{}
	}
	return &Manager{
		fs:           fs,
		fileIDToPath: fileIDToPath,
	}
}

func (m *Manager) path(fileID common.RelFileID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path, ok := m.fileIDToPath[fileID]
	if !ok {
		return "", errors.Errorf("fileID %d not found in path map", fileID)
	}
	return path, nil
}

func (m *Manager) ReadPage(pageIdent common.PageIdentity) (*page.Page, error) {
	path, err := m.path(pageIdent.FileID)
	if err != nil {
		return nil, err
	}

	file, err := m.fs.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrPageNotFound, "file %s", path)
		}
		return nil, errors.Wrap(err, "open relation file")
	}
	defer file.Close()

	offset := int64(pageIdent.PageID) * page.PageSize
	data := make([]byte, page.PageSize)

	// A read at or past the end of the file shows up as io.EOF or, for a
	// partially present block, io.ErrUnexpectedEOF. Either way the block does
	// not exist.
	n, err := file.ReadAt(data, offset)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errors.Wrapf(ErrPageNotFound, "block %d past end of %s", pageIdent.PageID, path)
	case err != nil:
		return nil, errors.Wrapf(err, "read block %d of %s", pageIdent.PageID, path)
	case n < page.PageSize:
		return nil, errors.Wrapf(ErrPageNotFound, "short read of block %d of %s", pageIdent.PageID, path)
	}

	return page.Load(data), nil
}

func (m *Manager) WritePage(p *page.Page, pageIdent common.PageIdentity) error {
	path, err := m.path(pageIdent.FileID)
	if err != nil {
		return err
	}

	file, err := m.fs.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return errors.Wrapf(err, "open %s for writing", path)
	}
	defer file.Close()

	offset := int64(pageIdent.PageID) * page.PageSize

	if _, err := file.WriteAt(p.GetData(), offset); err != nil {
		return errors.Wrapf(err, "write block %d of %s", pageIdent.PageID, path)
	}

	return nil
}

// NumPages returns how many blocks the relation file currently holds. A
// missing file counts as empty: the file appears when its first page is
// flushed.
func (m *Manager) NumPages(fileID common.RelFileID) (common.BlockNumber, error) {
	path, err := m.path(fileID)
	if err != nil {
		return 0, err
	}

	info, err := m.fs.Stat(filepath.Clean(path))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", path)
	}

	return common.BlockNumber(info.Size() / page.PageSize), nil
}

func (m *Manager) InsertToFileMap(id common.RelFileID, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fileIDToPath[id] = path
}

func (m *Manager) FileIDs() []common.RelFileID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]common.RelFileID, 0, len(m.fileIDToPath))
	for id := range m.fileIDToPath {
		ids = append(ids, id)
	}
	return ids
}
