package store

// Listener callbacks fire synchronously after a commit, outside the store
// lock, so a callback may freely read the store or issue further writes.
// Inside a Transaction the whole batch produces a single commit.

type tableListener struct {
	table string
	fn    func(table string)
}

type valueListener struct {
	name string
	fn   func(name string)
}

type listenerSet struct {
	nextID int
	tables map[int]tableListener
	values map[int]valueListener
	any    map[int]func()
	change map[int]func()
	local  map[int]func(ChangeSet)
}

func newListenerSet() listenerSet {
	return listenerSet{
		tables: make(map[int]tableListener),
		values: make(map[int]valueListener),
		any:    make(map[int]func()),
		change: make(map[int]func()),
		local:  make(map[int]func(ChangeSet)),
	}
}

// AddTableListener registers fn to fire after any commit touching table.
// The returned id works with DelListener.
func (s *Store) AddTableListener(table string, fn func(table string)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners.nextID++
	s.listeners.tables[s.listeners.nextID] = tableListener{table: table, fn: fn}
	return s.listeners.nextID
}

// AddValueListener registers fn to fire after any commit touching the
// named value.
func (s *Store) AddValueListener(name string, fn func(name string)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners.nextID++
	s.listeners.values[s.listeners.nextID] = valueListener{name: name, fn: fn}
	return s.listeners.nextID
}

// AddTablesListener registers fn to fire after any commit touching any
// table.
func (s *Store) AddTablesListener(fn func()) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners.nextID++
	s.listeners.any[s.listeners.nextID] = fn
	return s.listeners.nextID
}

// AddChangeListener registers fn to fire after every commit, local or
// merged. Persisters and mirrors hang off this hook.
func (s *Store) AddChangeListener(fn func()) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners.nextID++
	s.listeners.change[s.listeners.nextID] = fn
	return s.listeners.nextID
}

// AddLocalChangeListener registers fn to receive the delta of every commit
// caused by local writes. Merged remote changes are excluded, which is what
// keeps synchronizers from echoing received changes back to their origin.
func (s *Store) AddLocalChangeListener(fn func(delta ChangeSet)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners.nextID++
	s.listeners.local[s.listeners.nextID] = fn
	return s.listeners.nextID
}

// DelListener removes a previously registered listener by id.
func (s *Store) DelListener(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners.tables, id)
	delete(s.listeners.values, id)
	delete(s.listeners.any, id)
	delete(s.listeners.change, id)
	delete(s.listeners.local, id)
}

// pendingCommit accumulates what the current commit touched, plus the
// local-write delta, until listeners are notified.
type pendingCommit struct {
	tables map[string]struct{}
	values map[string]struct{}
	local  ChangeSet
}

func (p *pendingCommit) markTable(table string) {
	if p.tables == nil {
		p.tables = make(map[string]struct{})
	}
	p.tables[table] = struct{}{}
}

func (p *pendingCommit) markValue(name string) {
	if p.values == nil {
		p.values = make(map[string]struct{})
	}
	p.values[name] = struct{}{}
}

func (p *pendingCommit) recordValue(name string, register CellChange) {
	if p.local.Values == nil {
		p.local.Values = make(map[string]CellChange)
	}
	p.local.Values[name] = register
}

func (p *pendingCommit) recordRowPresence(table, rowID string, stamp Stamp, present bool) {
	row := p.localRow(table, rowID)
	row.Stamp = stamp
	row.Present = present
	p.local.Tables[table][rowID] = row
}

func (p *pendingCommit) recordCell(table, rowID string, rowStamp Stamp, rowPresent bool, column string, register CellChange) {
	row := p.localRow(table, rowID)
	row.Stamp = rowStamp
	row.Present = rowPresent
	if row.Cells == nil {
		row.Cells = make(map[string]CellChange)
	}
	row.Cells[column] = register
	p.local.Tables[table][rowID] = row
}

func (p *pendingCommit) localRow(table, rowID string) RowChange {
	if p.local.Tables == nil {
		p.local.Tables = make(map[string]map[string]RowChange)
	}
	if p.local.Tables[table] == nil {
		p.local.Tables[table] = make(map[string]RowChange)
	}
	return p.local.Tables[table][rowID]
}

func (p *pendingCommit) empty() bool {
	return len(p.tables) == 0 && len(p.values) == 0
}

// commitNotice carries the callbacks selected for one commit so they can
// run after the store lock is released.
type commitNotice struct {
	tableFns  []func()
	valueFns  []func()
	anyFns    []func()
	changeFns []func()
	localFns  []func()
}

func (n commitNotice) dispatch() {
	for _, fn := range n.tableFns {
		fn()
	}
	for _, fn := range n.valueFns {
		fn()
	}
	for _, fn := range n.anyFns {
		fn()
	}
	for _, fn := range n.changeFns {
		fn()
	}
	for _, fn := range n.localFns {
		fn()
	}
}

// commitLocked drains the pending commit into a notice. Inside a
// transaction it returns an empty notice and leaves the pending state
// accumulating.
func (s *Store) commitLocked() commitNotice {
	if s.txDepth > 0 || s.pending.empty() && s.pending.local.Empty() {
		return commitNotice{}
	}
	pending := s.pending
	s.pending = pendingCommit{}

	var notice commitNotice
	for _, entry := range s.listeners.tables {
		if _, touched := pending.tables[entry.table]; touched {
			fn, table := entry.fn, entry.table
			notice.tableFns = append(notice.tableFns, func() { fn(table) })
		}
	}
	for _, entry := range s.listeners.values {
		if _, touched := pending.values[entry.name]; touched {
			fn, name := entry.fn, entry.name
			notice.valueFns = append(notice.valueFns, func() { fn(name) })
		}
	}
	if len(pending.tables) > 0 {
		for _, fn := range s.listeners.any {
			notice.anyFns = append(notice.anyFns, fn)
		}
	}
	for _, fn := range s.listeners.change {
		notice.changeFns = append(notice.changeFns, fn)
	}
	if !pending.local.Empty() {
		delta := pending.local.clone()
		for _, fn := range s.listeners.local {
			localFn := fn
			notice.localFns = append(notice.localFns, func() { localFn(delta) })
		}
	}
	return notice
}
