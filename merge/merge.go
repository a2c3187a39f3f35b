// Package merge implements the scope merger (§4.7): it collapses one or
// more parsed scope streams, typically every stream recorded for one
// thread across one or more frames, into a forest of MergeNode trees,
// grouping sibling scopes that share the same ScopeId at the same tree
// position. Visualizers use this to draw one aggregated bar per call site
// instead of one per call.
/*
 * Copyright (c) 2024, scomesh contributors. All rights reserved.
 */
package merge

import (
	"sort"

	"github.com/scomesh/puffin/stream"
)

// MergeNode aggregates every occurrence ("piece") of one ScopeId at one
// position in the tree.
type MergeNode struct {
	Id              stream.ScopeId
	Location        string
	Data            string
	TotalDurationNS int64
	MaxDurationNS   int64
	RelativeStartNS int64
	NumPieces       int
	Children        []*MergeNode
}

// item is one occurrence of a scope queued for merging at some tree level:
// its parsed Scope, the byte buffer it was parsed from (needed to descend
// into its own children), and the absolute start time of its enclosing
// parent (0 at the top level), from which RelativeStartNS is derived.
type item struct {
	scope         stream.Scope
	data          []byte
	parentStartNS stream.NanoSecond
}

// Merge parses every byte stream in streamsData as a top-level sibling set
// and merges them into a forest, per the §4.7 build algorithm.
func Merge(streamsData [][]byte) ([]*MergeNode, error) {
	var items []item
	for _, data := range streamsData {
		scopes, err := stream.NewReader(data).All()
		if err != nil {
			return nil, err
		}
		for _, s := range scopes {
			items = append(items, item{scope: s, data: data})
		}
	}
	return mergeLevel(items)
}

// mergeLevel groups items sharing an Id into one MergeNode apiece, in the
// order each Id was first seen, then recursively merges their children.
func mergeLevel(items []item) ([]*MergeNode, error) {
	if len(items) == 0 {
		return nil, nil
	}

	order := make([]stream.ScopeId, 0, len(items))
	groups := make(map[stream.ScopeId][]item, len(items))
	for _, it := range items {
		id := it.scope.Id
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], it)
	}

	nodes := make([]*MergeNode, 0, len(order))
	for _, id := range order {
		node, err := finalize(id, groups[id])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	sortAndDeoverlap(nodes)
	return nodes, nil
}

// finalize computes one MergeNode's aggregate fields from its pieces and
// recursively merges their pooled children (§4.7 step 2).
func finalize(id stream.ScopeId, pieces []item) (*MergeNode, error) {
	node := &MergeNode{Id: id, NumPieces: len(pieces)}

	commonLocation := pieces[0].scope.Record.Location
	commonData := pieces[0].scope.Record.Data
	haveMinRel := false

	var childItems []item
	for _, p := range pieces {
		dur := p.scope.Record.DurationNS
		node.TotalDurationNS += dur
		if dur > node.MaxDurationNS {
			node.MaxDurationNS = dur
		}

		rel := p.scope.Record.StartNS - p.parentStartNS
		if !haveMinRel || rel < node.RelativeStartNS {
			node.RelativeStartNS = rel
			haveMinRel = true
		}

		if p.scope.Record.Location != commonLocation {
			commonLocation = ""
		}
		if p.scope.Record.Data != commonData {
			commonData = ""
		}

		if p.scope.ChildEndPosition > p.scope.ChildBeginPosition {
			children, err := stream.Children(p.data, p.scope).All()
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				childItems = append(childItems, item{scope: c, data: p.data, parentStartNS: p.scope.Record.StartNS})
			}
		}
	}

	node.Location = commonLocation
	node.Data = commonData

	children, err := mergeLevel(childItems)
	if err != nil {
		return nil, err
	}
	node.Children = children
	return node, nil
}

// sortAndDeoverlap orders siblings by RelativeStartNS (stable, so equal
// starts keep first-seen order) and then sweeps left to right pushing any
// overlap forward, so the merged view never shows two siblings occupying
// the same relative time span (§4.7 step 3).
func sortAndDeoverlap(nodes []*MergeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].RelativeStartNS < nodes[j].RelativeStartNS
	})

	var prevEnd int64
	var havePrev bool
	for _, n := range nodes {
		if havePrev && n.RelativeStartNS < prevEnd {
			n.RelativeStartNS = prevEnd
		}
		prevEnd = n.RelativeStartNS + n.TotalDurationNS
		havePrev = true
	}
}
