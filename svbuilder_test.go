package main

import (
	"math"
	"testing"
)

func buildRegions() []*Region {
	left := &Region{
		ID: 0, Tid: 0, Start: 1000, End: 1200, NormalReads: 20,
		Reads: []*Read{
			{Name: "p1", LibIndex: 0, Isize: 900, Ori: FWD, Flag: ARP_FR_BIG},
			{Name: "p2", LibIndex: 0, Isize: 880, Ori: FWD, Flag: ARP_FR_BIG},
			{Name: "odd", LibIndex: 0, Isize: 400, Ori: REV, Flag: ARP_FF},
		},
	}
	right := &Region{
		ID: 1, Tid: 0, Start: 1800, End: 2000, NormalReads: 10,
		Reads: []*Read{
			{Name: "p1", LibIndex: 0, Isize: -900, Ori: REV, Flag: ARP_FR_BIG},
			{Name: "p2", LibIndex: 0, Isize: -880, Ori: REV, Flag: ARP_FR_BIG},
		},
	}
	return []*Region{left, right}
}

func TestSvBuilderPairing(t *testing.T) {
	svb := newSvBuilder(buildRegions(), 100)

	if svb.numPairs != 2 {
		t.Errorf("numPairs = %d, want 2", svb.numPairs)
	}
	if len(svb.supportReads) != 4 {
		t.Errorf("supportReads = %d, want 4", len(svb.supportReads))
	}
	if _, ok := svb.observedReads["odd"]; !ok {
		t.Error("unpaired read left the observed set")
	}
	if _, ok := svb.observedReads["p1"]; ok {
		t.Error("paired read still in the observed set")
	}
}

func TestSvBuilderDominantFlag(t *testing.T) {
	svb := newSvBuilder(buildRegions(), 100)
	if svb.flag != ARP_FR_BIG {
		t.Errorf("dominant flag = %v, want ARP_FR_BIG", svb.flag)
	}
	if svb.flagCounts[ARP_FR_BIG] != 4 || svb.flagCounts[ARP_FF] != 1 {
		t.Errorf("flag counts = %v", svb.flagCounts)
	}
	if svb.typeLibReadCount[ARP_FR_BIG][0] != 4 {
		t.Errorf("lib read count = %d, want 4", svb.typeLibReadCount[ARP_FR_BIG][0])
	}
	if svb.typeLibMeanspan[ARP_FR_BIG][0] != 900+880+900+880 {
		t.Errorf("meanspan = %d", svb.typeLibMeanspan[ARP_FR_BIG][0])
	}
}

func TestSvBuilderAnchors(t *testing.T) {
	regions := buildRegions()
	svb := newSvBuilder(regions, 100)

	if svb.pos[0] != 1200 || svb.pos[1] != 1800 {
		t.Errorf("anchors = %d,%d, want 1200,1800", svb.pos[0], svb.pos[1])
	}
	if svb.fwdReadCount[0] != 2 || svb.revReadCount[0] != 1 {
		t.Errorf("left strand counts = %d+,%d-", svb.fwdReadCount[0], svb.revReadCount[0])
	}
	if svb.fwdReadCount[1] != 0 || svb.revReadCount[1] != 2 {
		t.Errorf("right strand counts = %d+,%d-", svb.fwdReadCount[1], svb.revReadCount[1])
	}

	single := newSvBuilder(regions[:1], 100)
	if single.pos[0] != 1000 || single.pos[1] != 1200 {
		t.Errorf("single-region anchors = %d,%d, want 1000,1200", single.pos[0], single.pos[1])
	}
	if single.chr[1] != 0 {
		t.Errorf("single-region chr[1] = %d, want 0", single.chr[1])
	}
}

func TestCopyNumber(t *testing.T) {
	libs := testLibInfo(t, 1)
	opts := testOptions()
	opts.CNLib = 1

	svb := newSvBuilder(buildRegions(), 100)
	observed := map[string]int{"lib1": 600}
	svb.computeCopyNumber(observed, libs, opts)

	// density = 500000 normals / 1e6 bases = 0.5; span = 600
	want := 600.0 / (0.5 * 600.0) * 2.0
	if got := svb.copyNumber["lib1"]; math.Abs(got-want) > 1e-9 {
		t.Errorf("copy number = %g, want %g", got, want)
	}
}

func TestCopyNumberSkipsCTX(t *testing.T) {
	libs := testLibInfo(t, 1)
	opts := testOptions()
	opts.CNLib = 1

	regions := buildRegions()
	for _, region := range regions {
		for _, r := range region.Reads {
			r.Flag = ARP_CTX
		}
	}
	svb := newSvBuilder(regions, 100)
	svb.computeCopyNumber(map[string]int{"lib1": 600}, libs, opts)
	if len(svb.copyNumber) != 0 {
		t.Errorf("copy number computed for CTX: %v", svb.copyNumber)
	}
}

func TestAlleleFrequency(t *testing.T) {
	libs := testLibInfo(t, 1)
	opts := testOptions()

	svb := newSvBuilder(buildRegions(), 100)
	svb.computeCopyNumber(map[string]int{}, libs, opts)

	// 2 pairs against (20+10)/2 = 15 normal pairs
	want := 2.0 / (2.0 + 15.0)
	if math.Abs(svb.alleleFrequency-want) > 1e-9 {
		t.Errorf("allele frequency = %g, want %g", svb.alleleFrequency, want)
	}
}
