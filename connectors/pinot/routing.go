package pinot

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/google/btree"
)

// RoutingTable maps each server host to the segments it serves for a table.
// Hosts iterate in ascending order and segments keep their insertion order.
type RoutingTable struct {
	tree *btree.BTreeG[*routingEntry]
}

type routingEntry struct {
	host     string
	segments []string
}

func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		tree: btree.NewG(2, func(a, b *routingEntry) bool {
			return strings.Compare(a.host, b.host) == -1 // before
		}),
	}
}

// Add appends segments to the list served by host.
func (rt *RoutingTable) Add(host string, segments ...string) {
	entry, ok := rt.tree.Get(&routingEntry{host: host})
	if !ok {
		entry = &routingEntry{host: host}
		rt.tree.ReplaceOrInsert(entry)
	}
	entry.segments = append(entry.segments, segments...)
}

// Hosts yields each host with a copy of its segments.
func (rt *RoutingTable) Hosts() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		rt.tree.Ascend(func(entry *routingEntry) bool {
			return yield(entry.host, slices.Clone(entry.segments))
		})
	}
}

// SegmentCount is the total number of segments across all hosts.
func (rt *RoutingTable) SegmentCount() int {
	count := 0
	rt.tree.Ascend(func(entry *routingEntry) bool {
		count += len(entry.segments)
		return true
	})
	return count
}

// RoutingTableProvider looks up which servers own the segments of a table.
type RoutingTableProvider interface {
	RoutingTable(ctx context.Context, table string) (*RoutingTable, error)
}

// StaticRoutingTables serves routing tables from memory, keyed by table name
// and then host.
type StaticRoutingTables map[string]map[string][]string

func (s StaticRoutingTables) RoutingTable(ctx context.Context, table string) (*RoutingTable, error) {
	hosts, ok := s[table]
	if !ok {
		return nil, fmt.Errorf("no routing table for pinot table %q", table)
	}
	rt := NewRoutingTable()
	for host, segments := range hosts {
		rt.Add(host, segments...)
	}
	return rt, nil
}

var _ RoutingTableProvider = StaticRoutingTables{}
