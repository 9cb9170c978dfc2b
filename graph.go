package main

import "sort"

// regionGraph counts mate-pair links between region pairs. A link (a,b)
// carries the number of read names with one mate in each region; self-loops
// mark same-region pairs.
type regionGraph map[int]map[int]int

func (g regionGraph) increment(a, b int) {
	adj, ok := g[a]
	if !ok {
		adj = make(map[int]int)
		g[a] = adj
	}
	adj[b]++
}

func (g regionGraph) eraseNode(id int) {
	for neighbor := range g[id] {
		if adj, ok := g[neighbor]; ok {
			delete(adj, id)
			if len(adj) == 0 {
				delete(g, neighbor)
			}
		}
	}
	delete(g, id)
}

func (g regionGraph) clone() regionGraph {
	out := make(regionGraph, len(g))
	for id, adj := range g {
		cp := make(map[int]int, len(adj))
		for k, v := range adj {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

func (g regionGraph) sortedNodes() []int {
	nodes := make([]int, 0, len(g))
	for id := range g {
		nodes = append(nodes, id)
	}
	sort.Ints(nodes)
	return nodes
}

// buildConnection traverses a snapshot of the region graph, BFS over each
// connected component, dispatching every qualifying edge as an SV candidate.
// Regions left with too few reads after the sweep are destroyed.
func (d *Detector) buildConnection() {
	graph := d.rdata.graph.clone()
	freeNodes := make(map[int]bool)

	for _, n := range graph.sortedNodes() {
		if _, ok := graph[n]; !ok {
			continue
		}
		tails := []int{n}
		for len(tails) > 0 {
			var newtails []int
			for _, tail := range tails {
				if !d.rdata.regionExists(tail) {
					continue
				}
				adj, ok := graph[tail]
				if !ok {
					continue
				}
				// Edges are consumed one at a time, in id order; the
				// target is re-checked for existence before use.
				for _, s1 := range sortedIntKeys(adj) {
					nlinks, ok := adj[s1]
					if !ok {
						continue
					}
					delete(adj, s1)

					if nlinks < d.opts.MinReadPair || !d.rdata.regionExists(s1) {
						continue
					}

					var snodes []int
					if tail != s1 {
						if radj, ok := graph[s1]; ok {
							delete(radj, tail)
						}
						snodes = []int{imin(s1, tail), imax(s1, tail)}
					} else {
						snodes = []int{s1}
					}

					newtails = append(newtails, s1)
					d.processSV(snodes, freeNodes)
				}
				delete(graph, tail)
			}
			tails = newtails
		}
	}

	// free regions
	free := make([]int, 0, len(freeNodes))
	for id := range freeNodes {
		free = append(free, id)
	}
	sort.Ints(free)
	for _, id := range free {
		n := d.rdata.numReadsInRegion(id)
		if d.opts.CountPairsOnFree {
			// Optional correction: residual reads double-count pairs with
			// both mates in the region, so compare in pair units.
			n /= 2
		}
		if n < d.opts.MinReadPair {
			d.rdata.clearRegion(id)
		}
	}
}

// processSV aggregates the reads of one connected subgraph (one or two
// regions) into a candidate, consumes its supporting pairs, and emits the
// call if it clears the support and score gates.
func (d *Detector) processSV(snodes []int, freeNodes map[int]bool) {
	regions := make([]*Region, len(snodes))
	for i, id := range snodes {
		regions[i] = d.rdata.region(id)
	}

	svb := newSvBuilder(regions, d.maxReadlen)

	// Supportive pairs are consumed from their regions; reads still waiting
	// on a mate stay behind for future traversals.
	for _, id := range snodes {
		d.rdata.removeReadsInRegionIf(id, func(r *Read) bool {
			_, unpaired := svb.observedReads[r.Name]
			return !unpaired
		})
	}

	if svb.numPairs >= d.opts.MinReadPair && svb.flagCounts[svb.flag] >= d.opts.MinReadPair {
		acc := make(map[string]int)
		if len(snodes) == 2 {
			d.rdata.accumulateReadsBetweenRegions(acc, snodes[0], snodes[1])
		} else {
			d.rdata.accumulateReadsBetweenRegions(acc, snodes[0], snodes[0])
		}
		svb.computeCopyNumber(acc, d.libs, d.opts)

		if svb.flag != ARP_RF && svb.flag != ARP_RR && svb.pos[0]+d.maxReadlen-5 < svb.pos[1] {
			svb.pos[0] += d.maxReadlen - 5 // re-center the left breakpoint
		}

		totalRegionSize := d.rdata.sumOfRegionSizes(snodes)
		logPvalue := computeProbScore(totalRegionSize, svb.typeLibReadCount[svb.flag], svb.flag, d.opts.Fisher, d.libs)
		phredQ := phredScale(logPvalue)

		// Convert the coordinates to base 1
		svb.pos[0]++
		svb.pos[1]++

		if phredQ > d.opts.ScoreThreshold && !d.excluded(svb) {
			if err := d.emitter.emit(d, svb, phredQ); err != nil {
				logger.Printf("side output: %v", err)
			}
		}
	}

	for _, r := range svb.readsToFree {
		d.rdata.eraseRead(r)
	}
	for _, id := range snodes {
		freeNodes[id] = true
	}
}

func (d *Detector) excluded(svb *svBuilder) bool {
	if d.exclude == nil {
		return false
	}
	return d.exclude.overlaps(d.refNames[svb.chr[0]], svb.pos[0]) ||
		d.exclude.overlaps(d.refNames[svb.chr[1]], svb.pos[1])
}
