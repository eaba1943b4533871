package networktables

import (
	"sort"
	"sync"
)

// Instance owns a set of named tables, created on first use.
type Instance struct {
	mu     sync.Mutex
	tables map[string]*MemTable
}

// NewInstance returns an empty instance.
func NewInstance() *Instance {
	return &Instance{tables: map[string]*MemTable{}}
}

// Table returns the table with the given name, creating it if needed.
func (inst *Instance) Table(name string) Table {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	t, ok := inst.tables[name]
	if !ok {
		t = NewMemTable(name)
		inst.tables[name] = t
	}
	return t
}

// TableNames lists the tables created so far.
func (inst *Instance) TableNames() []string {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	names := make([]string, 0, len(inst.tables))
	for name := range inst.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
