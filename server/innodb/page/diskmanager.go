package page

import (
	"sync"
)

// DiskManager owns the space_name -> space_id and space_id -> TableSpace
// registries, assigning ids from a monotonic counter. Spec.md §4.1.
type DiskManager struct {
	mu       sync.RWMutex
	dir      string
	nextID   uint32
	byName   map[string]uint32
	byID     map[uint32]*TableSpace
}

// NewDiskManager creates a disk manager rooted at dir; table-space files
// are created as dir/<name>.ibd.
func NewDiskManager(dir string) *DiskManager {
	return &DiskManager{
		dir:    dir,
		nextID: 1, // space 0 is conventionally reserved, mirroring InnoDB's system tablespace id.
		byName: make(map[string]uint32),
		byID:   make(map[uint32]*TableSpace),
	}
}

// CreateSpace allocates a new space id for name and opens its backing
// table-space file.
func (dm *DiskManager) CreateSpace(name string) (uint32, *TableSpace, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if _, exists := dm.byName[name]; exists {
		return 0, nil, ErrTableSpaceExists
	}

	id := dm.nextID
	dm.nextID++

	ts, err := Open(name, dm.dir+"/"+name+".ibd")
	if err != nil {
		return 0, nil, err
	}

	dm.byName[name] = id
	dm.byID[id] = ts
	return id, ts, nil
}

// Space returns the table space registered under id.
func (dm *DiskManager) Space(id uint32) (*TableSpace, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	ts, ok := dm.byID[id]
	if !ok {
		return nil, ErrTableSpaceNotFound
	}
	return ts, nil
}

// SpaceByName resolves a previously created space by name.
func (dm *DiskManager) SpaceByName(name string) (uint32, *TableSpace, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	id, ok := dm.byName[name]
	if !ok {
		return 0, nil, ErrTableSpaceNotFound
	}
	return id, dm.byID[id], nil
}

// Stat reports page count and byte size for a registered space
// (ambient operational introspection, SPEC_FULL.md expansion).
func (dm *DiskManager) Stat(name string) (pageCount uint32, sizeBytes int64, err error) {
	_, ts, err := dm.SpaceByName(name)
	if err != nil {
		return 0, 0, err
	}
	pc := ts.PageCount()
	return pc, int64(pc) * Size, nil
}

// CloseAll closes every registered table space.
func (dm *DiskManager) CloseAll() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var firstErr error
	for _, ts := range dm.byID {
		if err := ts.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
