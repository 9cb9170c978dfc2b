package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testSvb() *svBuilder {
	return &svBuilder{
		numRegions: 1,
		flag:       ARP_FR_BIG,
		flagCounts: map[PairFlag]int{ARP_FR_BIG: 5},
		typeLibReadCount: map[PairFlag]map[int]int{
			ARP_FR_BIG: {0: 5},
		},
		typeLibMeanspan: map[PairFlag]map[int]int{
			ARP_FR_BIG: {0: 4500},
		},
		copyNumber: map[string]float64{},
	}
}

func TestSupportColumnsPerLibrary(t *testing.T) {
	opts := testOptions()
	opts.CNLib = 1
	libs := testLibInfo(t, 1)
	em := newEmitter(&bytes.Buffer{}, opts, libs)

	svb := testSvb()
	svb.copyNumber["lib1"] = 1.875

	sptype, diffspan := em.supportColumns(svb)
	if sptype != "lib1|5,1.88" {
		t.Errorf("sptype = %q, want lib1|5,1.88", sptype)
	}
	// (4500 - 5*400) / 5
	if diffspan != 500 {
		t.Errorf("diffspan = %d, want 500", diffspan)
	}
}

func TestSupportColumnsPerLibraryMissingCopyNumber(t *testing.T) {
	opts := testOptions()
	opts.CNLib = 1
	libs := testLibInfo(t, 1)
	em := newEmitter(&bytes.Buffer{}, opts, libs)

	sptype, _ := em.supportColumns(testSvb())
	if sptype != "lib1|5,NA" {
		t.Errorf("sptype = %q, want lib1|5,NA", sptype)
	}
}

func TestSupportColumnsPerLibraryCTX(t *testing.T) {
	opts := testOptions()
	opts.CNLib = 1
	libs := testLibInfo(t, 1)
	em := newEmitter(&bytes.Buffer{}, opts, libs)

	svb := testSvb()
	svb.flag = ARP_CTX
	svb.flagCounts = map[PairFlag]int{ARP_CTX: 5}
	svb.typeLibReadCount = map[PairFlag]map[int]int{ARP_CTX: {0: 5}}
	svb.typeLibMeanspan = map[PairFlag]map[int]int{ARP_CTX: {0: 0}}
	svb.copyNumber["lib1"] = 1.5 // must still print NA for CTX

	sptype, _ := em.supportColumns(svb)
	if sptype != "lib1|5,NA" {
		t.Errorf("sptype = %q, want lib1|5,NA", sptype)
	}
}

func TestSupportColumnsPerBam(t *testing.T) {
	opts := testOptions()
	libs := testLibInfo(t, 0)
	em := newEmitter(&bytes.Buffer{}, opts, libs)

	sptype, diffspan := em.supportColumns(testSvb())
	if sptype != "sample1.bam|5" {
		t.Errorf("sptype = %q, want sample1.bam|5", sptype)
	}
	if diffspan != 500 {
		t.Errorf("diffspan = %d, want 500", diffspan)
	}
}

// The first-seen read of a pair goes to the "2" file, the second to "1".
func TestFastqPairingOrder(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.PrefixFastq = filepath.Join(dir, "sv")
	libs := testLibInfo(t, 0)
	em := newEmitter(&bytes.Buffer{}, opts, libs)

	svb := testSvb()
	svb.supportReads = []*Read{
		{Name: "pair", LibIndex: 0, Flag: ARP_FR_BIG, Seq: "AAAA", Qual: "IIII"},
		{Name: "pair", LibIndex: 0, Flag: ARP_FR_BIG, Seq: "CCCC", Qual: "JJJJ"},
	}
	if err := em.dumpFastq(svb); err != nil {
		t.Fatalf("dumpFastq: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	two, err := os.ReadFile(filepath.Join(dir, "sv.lib1.2.fastq"))
	if err != nil {
		t.Fatalf("read mate-2 file: %v", err)
	}
	if !strings.Contains(string(two), "AAAA") {
		t.Errorf("first-seen read missing from the 2 file: %q", two)
	}
	one, err := os.ReadFile(filepath.Join(dir, "sv.lib1.1.fastq"))
	if err != nil {
		t.Fatalf("read mate-1 file: %v", err)
	}
	if !strings.Contains(string(one), "CCCC") {
		t.Errorf("second-seen read missing from the 1 file: %q", one)
	}
}

// Reads without sequence data or with a non-dominant flag are not dumped.
func TestFastqSkipsNonSupport(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.PrefixFastq = filepath.Join(dir, "sv")
	libs := testLibInfo(t, 0)
	em := newEmitter(&bytes.Buffer{}, opts, libs)

	svb := testSvb()
	svb.supportReads = []*Read{
		{Name: "noseq", LibIndex: 0, Flag: ARP_FR_BIG},
		{Name: "wrongflag", LibIndex: 0, Flag: ARP_FF, Seq: "AAAA", Qual: "IIII"},
	}
	if err := em.dumpFastq(svb); err != nil {
		t.Fatalf("dumpFastq: %v", err)
	}
	em.Close()

	if _, err := os.Stat(filepath.Join(dir, "sv.lib1.2.fastq")); !os.IsNotExist(err) {
		t.Error("fastq file created for non-support reads")
	}
}

func TestExcludeStore(t *testing.T) {
	store := &excludeStore{byChrom: make(map[string][]int)}
	store.add("chr1", 1000, 2000)
	store.add("chr2", 500, 600)

	cases := []struct {
		chrom string
		pos   int
		want  bool
	}{
		{"chr1", 1500, true},
		{"chr1", 1000, true},
		{"chr1", 2000, true},
		{"chr1", 999, false},
		{"chr1", 2001, false},
		{"chr2", 550, true},
		{"chr3", 550, false},
	}
	for _, c := range cases {
		if got := store.overlaps(c.chrom, c.pos); got != c.want {
			t.Errorf("overlaps(%s, %d) = %v, want %v", c.chrom, c.pos, got, c.want)
		}
	}
}
