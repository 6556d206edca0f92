// Package deadlock implements the L2 deadlock detector: a wait-for
// graph with DFS cycle detection and victim scoring (spec.md §4.5).
//
// Grounded on the teacher's manager.LockManager.checkDeadlock /
// updateWaitGraph / removeFromWaitGraph, generalized to return the
// actual cycle (not just a boolean) and to score victims instead of
// always picking the waiter.
package deadlock

import "sort"

// Info is the per-transaction metadata the scorer needs.
type Info struct {
	HeldLocks      int
	SecondsRunning int64
	Priority       int
}

// Graph is a directed wait-for graph: edge waiter -> holder, labelled
// by the resource that caused the wait.
type Graph struct {
	edges map[uint64]map[uint64]string // waiter -> holder -> resource
	info  map[uint64]Info
}

func New() *Graph {
	return &Graph{
		edges: make(map[uint64]map[uint64]string),
		info:  make(map[uint64]Info),
	}
}

// AddWait records that waiter is blocked on holder over resource.
func (g *Graph) AddWait(waiter, holder uint64, resource string) {
	if waiter == holder {
		// A self-loop is a deadlock by definition (spec.md §4.5); still
		// record it so Detect finds it uniformly.
	}
	if g.edges[waiter] == nil {
		g.edges[waiter] = make(map[uint64]string)
	}
	g.edges[waiter][holder] = resource
}

// SetInfo updates the scoring metadata for txn.
func (g *Graph) SetInfo(txn uint64, info Info) {
	g.info[txn] = info
}

// RemoveTxn deletes txn and every edge incident to it, whether txn is
// the waiter or a holder in someone else's wait edge.
func (g *Graph) RemoveTxn(txn uint64) {
	delete(g.edges, txn)
	delete(g.info, txn)
	for waiter, holders := range g.edges {
		delete(holders, txn)
		if len(holders) == 0 {
			delete(g.edges, waiter)
		}
	}
}

// Detect runs DFS with a recursion stack over every node; the first
// back edge found to an ancestor still on the stack yields a cycle,
// returned as the stack slice starting at that ancestor. Spec.md §4.5.
func (g *Graph) Detect() ([]uint64, bool) {
	visited := make(map[uint64]bool)
	onStack := make(map[uint64]bool)
	var stack []uint64

	var nodes []uint64
	for n := range g.edges {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	var dfs func(uint64) ([]uint64, bool)
	dfs = func(n uint64) ([]uint64, bool) {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		var holders []uint64
		for h := range g.edges[n] {
			holders = append(holders, h)
		}
		sort.Slice(holders, func(i, j int) bool { return holders[i] < holders[j] })

		for _, h := range holders {
			if onStack[h] {
				for i, s := range stack {
					if s == h {
						cycle := append([]uint64{}, stack[i:]...)
						return cycle, true
					}
				}
			}
			if !visited[h] {
				if cycle, found := dfs(h); found {
					return cycle, true
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
		return nil, false
	}

	for _, n := range nodes {
		if !visited[n] {
			if cycle, found := dfs(n); found {
				return cycle, true
			}
		}
	}
	return nil, false
}

// SelectVictim scores every transaction in cycle as
// 10*held + seconds_running + priority and returns the minimum,
// ties broken by the smaller transaction id. Spec.md §4.5.
func (g *Graph) SelectVictim(cycle []uint64) uint64 {
	best := cycle[0]
	bestScore := g.score(best)
	for _, txn := range cycle[1:] {
		s := g.score(txn)
		if s < bestScore || (s == bestScore && txn < best) {
			best = txn
			bestScore = s
		}
	}
	return best
}

func (g *Graph) score(txn uint64) int {
	info := g.info[txn]
	return 10*info.HeldLocks + int(info.SecondsRunning) + info.Priority
}
