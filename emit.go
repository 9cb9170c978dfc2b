package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/brentp/xopen"
	"github.com/pkg/errors"
)

// emitter writes the tab-separated record stream plus the optional BED trace
// and supporting-read FASTQ dumps. Side-output failures never disturb the
// main stream.
type emitter struct {
	w    *bufio.Writer
	opts *Options
	libs *LibraryInfo

	bed   *os.File
	fastq map[string]*xopen.Writer
}

func newEmitter(w io.Writer, opts *Options, libs *LibraryInfo) *emitter {
	return &emitter{
		w:     bufio.NewWriter(w),
		opts:  opts,
		libs:  libs,
		fastq: make(map[string]*xopen.Writer),
	}
}

func (e *emitter) Close() error {
	var first error
	for _, w := range e.fastq {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	if e.bed != nil {
		if err := e.bed.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := e.w.Flush(); err != nil && first == nil {
		first = err
	}
	return first
}

// emit writes one accepted candidate. The returned error only ever concerns
// the optional side outputs.
func (e *emitter) emit(d *Detector, svb *svBuilder, phredQ int) error {
	sptype, diffspan := e.supportColumns(svb)

	svt, ok := e.opts.SVType[svb.flag]
	if !ok {
		svt = "UN"
	}

	fmt.Fprintf(e.w, "%s\t%d\t%d+%d-\t%s\t%d\t%d+%d-\t%s\t%d\t%d\t%d\t%s",
		d.refNames[svb.chr[0]], svb.pos[0], svb.fwdReadCount[0], svb.revReadCount[0],
		d.refNames[svb.chr[1]], svb.pos[1], svb.fwdReadCount[1], svb.revReadCount[1],
		svt, diffspan, phredQ, svb.flagCounts[svb.flag], sptype)

	if e.opts.PrintAF {
		fmt.Fprintf(e.w, "\t%.2f", svb.alleleFrequency)
	}

	if e.opts.CNLib == 0 && svb.flag != ARP_CTX {
		for _, bam := range e.libs.BamFiles() {
			if cn, ok := svb.copyNumber[bam]; ok {
				fmt.Fprintf(e.w, "\t%.2f", cn)
			} else {
				fmt.Fprint(e.w, "\tNA")
			}
		}
	}
	fmt.Fprintln(e.w)

	var sideErr error
	if e.opts.PrefixFastq != "" {
		if err := e.dumpFastq(svb); err != nil {
			sideErr = err
		}
	}
	if e.opts.DumpBED != "" {
		if err := e.dumpBED(d, svb, svt, diffspan); err != nil && sideErr == nil {
			sideErr = err
		}
	}
	return sideErr
}

// supportColumns builds the sptype encoding and the insert-size difference
// for the dominant flag.
func (e *emitter) supportColumns(svb *svBuilder) (string, int) {
	var segments []string
	diff := 0.0

	libCounts := svb.typeLibReadCount[svb.flag]
	if e.opts.CNLib == 1 {
		for _, index := range sortedIntKeys(libCounts) {
			readCount := libCounts[index]
			lib := e.libs.LibraryByIndex(index)

			copyNumberStr := "NA"
			if svb.flag != ARP_CTX {
				if cn, ok := svb.copyNumber[lib.Name]; ok {
					copyNumberStr = fmt.Sprintf("%.2f", cn)
				}
			}
			segments = append(segments, fmt.Sprintf("%s|%d,%s", lib.Name, readCount, copyNumberStr))

			diff += float64(svb.typeLibMeanspan[svb.flag][index]) -
				float64(readCount)*lib.MeanInsert
		}
	} else {
		bamCounts := make(map[string]int)
		for _, index := range sortedIntKeys(libCounts) {
			readCount := libCounts[index]
			lib := e.libs.LibraryByIndex(index)
			bamCounts[lib.Bam] += readCount
			diff += float64(svb.typeLibMeanspan[svb.flag][index]) -
				float64(readCount)*lib.MeanInsert
		}
		bams := make([]string, 0, len(bamCounts))
		for bam := range bamCounts {
			bams = append(bams, bam)
		}
		sort.Strings(bams)
		for _, bam := range bams {
			segments = append(segments, fmt.Sprintf("%s|%d", bam, bamCounts[bam]))
		}
	}

	sptype := strings.Join(segments, ":")
	if sptype == "" {
		sptype = "NA"
	}
	diffspan := int(diff/float64(svb.flagCounts[svb.flag]) + 0.5)
	return sptype, diffspan
}

// dumpFastq writes the supporting pairs, the first-seen read of each name to
// the "2" file and the second to "1". Downstream assembly depends on that
// ordering.
func (e *emitter) dumpFastq(svb *svBuilder) error {
	pairing := make(map[string]bool)
	for _, r := range svb.supportReads {
		if r.Seq == "" || r.Qual == "" || r.Flag != svb.flag {
			continue
		}
		suffix := "2"
		if pairing[r.Name] {
			suffix = "1"
		}
		lib := e.libs.LibraryByIndex(r.LibIndex)
		path := fmt.Sprintf("%s.%s.%s.fastq", e.opts.PrefixFastq, lib.Name, suffix)
		w, ok := e.fastq[path]
		if !ok {
			var err error
			w, err = xopen.Wopen(path)
			if err != nil {
				return errors.Wrapf(err, "open fastq %s", path)
			}
			e.fastq[path] = w
		}
		fmt.Fprintf(w, "@%s\n%s\n+\n%s\n", r.Name, r.Seq, r.Qual)
		pairing[r.Name] = true
	}
	return nil
}

// dumpBED appends one track per candidate with a line per supporting read,
// color-coded by orientation.
func (e *emitter) dumpBED(d *Detector, svb *svBuilder, svt string, diffspan int) error {
	if e.bed == nil {
		f, err := os.OpenFile(e.opts.DumpBED, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrapf(err, "open BED %s", e.opts.DumpBED)
		}
		e.bed = f
	}

	chrName := d.refNames[svb.chr[0]]
	trackname := fmt.Sprintf("%s_%d_%s_%d", chrName, svb.pos[0], svt, diffspan)
	fmt.Fprintf(e.bed, "track name=%s\tdescription=\"BreakDancer %s %d %s %d\"\tuseScore=0\n",
		trackname, chrName, svb.pos[0], svt, diffspan)

	for _, r := range svb.supportReads {
		if r.Seq == "" || r.Qual == "" || r.Flag != svb.flag {
			continue
		}
		alnEnd := r.Pos - r.Len - 1
		color := "0,0,255"
		if r.Ori == REV {
			color = "255,0,0"
		}
		lib := e.libs.LibraryByIndex(r.LibIndex)
		fmt.Fprintf(e.bed, "chr%s\t%d\t%d\t%s|%s\t%d\t%s\t%d\t%d\t%s\n",
			d.refNames[r.Tid], r.Pos, alnEnd, r.Name, lib.Name,
			r.MapQ*10, r.Ori, r.Pos, alnEnd, color)
	}
	return nil
}
