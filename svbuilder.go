package main

// svBuilder aggregates the reads of a candidate: per-flag tallies, pair
// matching by query name, anchor coordinates and strand counts, copy number
// and allele frequency.
type svBuilder struct {
	numRegions int
	regions    [2]*Region

	flag             PairFlag
	flagCounts       map[PairFlag]int
	typeLibReadCount map[PairFlag]map[int]int
	typeLibMeanspan  map[PairFlag]map[int]int

	// observedReads holds names still waiting on a mate within the
	// candidate; a second sighting pairs up, leaves the map, and moves both
	// reads into the support set.
	observedReads map[string]*Read
	supportReads  []*Read
	readsToFree   []*Read
	numPairs      int

	chr          [2]int
	pos          [2]int
	fwdReadCount [2]int
	revReadCount [2]int

	copyNumber      map[string]float64
	alleleFrequency float64

	maxReadlen int
}

func newSvBuilder(regions []*Region, maxReadlen int) *svBuilder {
	svb := &svBuilder{
		numRegions:       len(regions),
		flagCounts:       make(map[PairFlag]int),
		typeLibReadCount: make(map[PairFlag]map[int]int),
		typeLibMeanspan:  make(map[PairFlag]map[int]int),
		observedReads:    make(map[string]*Read),
		copyNumber:       make(map[string]float64),
		maxReadlen:       maxReadlen,
	}

	for i, region := range regions {
		svb.regions[i] = region
		svb.chr[i] = region.Tid
		for _, r := range region.Reads {
			svb.observe(r)
			if r.Ori == FWD {
				svb.fwdReadCount[i]++
			} else {
				svb.revReadCount[i]++
			}
		}
	}

	// Anchor coordinates: with two regions the breakpoints sit between the
	// inner edges; a lone region spans both.
	if svb.numRegions == 2 {
		svb.pos[0] = regions[0].End
		svb.pos[1] = regions[1].Start
	} else {
		svb.chr[1] = regions[0].Tid
		svb.pos[0] = regions[0].Start
		svb.pos[1] = regions[0].End
		svb.fwdReadCount[1] = svb.fwdReadCount[0]
		svb.revReadCount[1] = svb.revReadCount[0]
	}

	svb.pickDominantFlag()
	return svb
}

func (svb *svBuilder) observe(r *Read) {
	svb.flagCounts[r.Flag]++

	libCounts, ok := svb.typeLibReadCount[r.Flag]
	if !ok {
		libCounts = make(map[int]int)
		svb.typeLibReadCount[r.Flag] = libCounts
	}
	libCounts[r.LibIndex]++

	spans, ok := svb.typeLibMeanspan[r.Flag]
	if !ok {
		spans = make(map[int]int)
		svb.typeLibMeanspan[r.Flag] = spans
	}
	spans[r.LibIndex] += r.AbsIsize()

	if mate, seen := svb.observedReads[r.Name]; seen {
		delete(svb.observedReads, r.Name)
		svb.numPairs++
		svb.supportReads = append(svb.supportReads, mate, r)
		svb.readsToFree = append(svb.readsToFree, mate, r)
	} else {
		svb.observedReads[r.Name] = r
	}
}

// pickDominantFlag chooses the flag with the highest read count; ties break
// toward the lower flag value so output order is stable.
func (svb *svBuilder) pickDominantFlag() {
	best := NA
	bestCount := -1
	for f := NA; f <= UNMAPPED; f++ {
		if n, ok := svb.flagCounts[f]; ok && n > bestCount {
			best = f
			bestCount = n
		}
	}
	svb.flag = best
}

// computeCopyNumber estimates per-bucket copy number from observed normal
// depth against the library read density over the candidate span, and the
// allele frequency from pair support against that depth.
func (svb *svBuilder) computeCopyNumber(observed map[string]int, libs *LibraryInfo, opts *Options) {
	span := svb.pos[1] - svb.pos[0]
	if span > 0 && svb.flag != ARP_CTX {
		for key, n := range observed {
			density := libs.Density(key)
			if density <= 0 {
				continue
			}
			svb.copyNumber[key] = float64(n) / (density * float64(span)) * 2.0
		}
	}

	totalNormal := 0
	for i := 0; i < svb.numRegions; i++ {
		totalNormal += svb.regions[i].NormalReads
	}
	normalPairs := float64(totalNormal) / 2.0
	if svb.numPairs > 0 {
		svb.alleleFrequency = float64(svb.numPairs) / (float64(svb.numPairs) + normalPairs)
	}
}
