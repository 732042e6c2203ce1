package model

import "sync"

// VisitedSet records every page title whose fetch has been initiated during
// one traversal. It is passed explicitly to every traversal call.
//
// Titles are compared by exact string equality: no case folding, no trimming.
type VisitedSet struct {
	mu     sync.Mutex
	titles map[string]struct{}
	order  []string
}

// NewVisitedSet creates an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		titles: make(map[string]struct{}),
		order:  make([]string, 0),
	}
}

// MarkIfNew marks title as visited and reports whether it was not visited
// before. The check and the mark happen under one lock, so at most one
// caller ever gets true for a given title.
func (v *VisitedSet) MarkIfNew(title string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.titles[title]; ok {
		return false
	}
	v.titles[title] = struct{}{}
	v.order = append(v.order, title)
	return true
}

// Has reports whether title has been marked.
func (v *VisitedSet) Has(title string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.titles[title]
	return ok
}

// Len returns the number of marked titles.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.titles)
}

// Titles returns the marked titles in marking order.
func (v *VisitedSet) Titles() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}
