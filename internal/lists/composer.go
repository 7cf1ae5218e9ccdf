package lists

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/task"
)

const defaultMirrorWindow = 500 * time.Millisecond

var (
	errMissingIndexStore = errors.New("lists: index store is required")
	errMissingChildStore = errors.New("lists: list store is required")
	errMissingListID     = errors.New("lists: list id is required")
)

// ComposerState tracks where a child list sits in its mount lifecycle.
type ComposerState int

const (
	// StateUninitialized means the child store is empty and no snapshot has
	// arrived in the index yet.
	StateUninitialized ComposerState = iota
	// StateLive means the child store is the source of truth and its state
	// flows back into the index cell.
	StateLive
)

// ComposerConfig describes one child-list mount.
type ComposerConfig struct {
	// Index is the per-user list-of-lists store.
	Index *store.Store
	// List is the live per-list child store.
	List *store.Store
	// ListID keys the child's row in the index's lists table.
	ListID string
	// QuietWindow debounces write-backs of the child snapshot. Defaults to
	// 500ms.
	QuietWindow time.Duration
	Logger      *zap.Logger
}

// Composer ties one live child list store to its cell in the index store.
// On mount it seeds an empty child from the index's valuesCopy snapshot;
// once live, every child commit re-serializes the whole child state into
// that cell, debounced. The cell is never the source of truth while the
// child is open, only a cold-start seed and a queryable mirror.
type Composer struct {
	cfg    ComposerConfig
	logger *zap.Logger

	mu          sync.Mutex
	state       ComposerState
	initialized bool

	mirror          *task.Coalescer
	childListenerID int
	indexListenerID int
}

// StartComposer validates the configuration, performs the initial
// hydration decision and begins mirroring.
func StartComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.Index == nil {
		return nil, errMissingIndexStore
	}
	if cfg.List == nil {
		return nil, errMissingChildStore
	}
	if cfg.ListID == "" {
		return nil, errMissingListID
	}
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = defaultMirrorWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	c := &Composer{cfg: cfg, logger: logger}
	c.mirror = task.NewCoalescer(task.CoalescerConfig{
		QuietWindow: cfg.QuietWindow,
		Flush:       c.writeBack,
	})

	// A child that already carries state was seeded by its creator or its
	// own persistence; it never re-hydrates from the index.
	if !cfg.List.Empty() {
		c.goLive()
	} else if snapshot := c.indexSnapshot(); snapshot != "" {
		c.hydrate(snapshot)
	} else {
		c.indexListenerID = cfg.Index.AddTableListener(TableLists, func(string) {
			c.onIndexChange()
		})
	}

	c.childListenerID = cfg.List.AddChangeListener(func() {
		c.mu.Lock()
		live := c.state == StateLive
		c.mu.Unlock()
		if live {
			c.mirror.Mark()
		}
	})
	return c, nil
}

// State reports the current lifecycle state.
func (c *Composer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Flush forces any pending snapshot write-back.
func (c *Composer) Flush() {
	c.mirror.Flush()
}

// Stop detaches all listeners and drains the mirror.
func (c *Composer) Stop() {
	c.cfg.List.DelListener(c.childListenerID)
	if c.indexListenerID != 0 {
		c.cfg.Index.DelListener(c.indexListenerID)
	}
	c.mirror.Stop()
}

func (c *Composer) indexSnapshot() string {
	row, ok := c.cfg.Index.GetRow(TableLists, c.cfg.ListID)
	if !ok {
		return ""
	}
	snapshot, _ := row[ColumnValuesCopy].(string)
	return snapshot
}

func (c *Composer) onIndexChange() {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if snapshot := c.indexSnapshot(); snapshot != "" {
		c.hydrate(snapshot)
	}
}

// hydrate seeds the empty child exactly once. The initialized flag keeps a
// later valuesCopy change, including the echo of this child's own
// write-back, from re-seeding over newer local edits.
func (c *Composer) hydrate(snapshot string) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.mu.Unlock()

	if err := c.cfg.List.ApplySnapshot(snapshot); err != nil {
		c.logger.Warn("child hydration failed, starting empty",
			zap.String("list_id", c.cfg.ListID), zap.Error(err))
	}
	c.mu.Lock()
	c.state = StateLive
	c.mu.Unlock()
}

func (c *Composer) goLive() {
	c.mu.Lock()
	c.initialized = true
	c.state = StateLive
	c.mu.Unlock()
	c.mirror.Mark()
}

func (c *Composer) writeBack() {
	c.mu.Lock()
	live := c.state == StateLive
	c.mu.Unlock()
	// never mirror a store that has not finished mounting: writing back an
	// empty child would erase good data in the index
	if !live {
		return
	}
	snapshot, err := c.cfg.List.EncodeSnapshot()
	if err != nil {
		c.logger.Error("child snapshot encoding failed",
			zap.String("list_id", c.cfg.ListID), zap.Error(err))
		return
	}
	if err := c.cfg.Index.SetCell(TableLists, c.cfg.ListID, ColumnValuesCopy, snapshot); err != nil {
		c.logger.Error("valuesCopy write failed",
			zap.String("list_id", c.cfg.ListID), zap.Error(err))
	}
}
