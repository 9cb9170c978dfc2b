package main

import (
	"github.com/biogo/hts/sam"
)

const badFlags = sam.Secondary | sam.Supplementary | sam.Duplicate | sam.QCFail

// initialFlag derives the pair-orientation flag from the raw alignment flags
// alone. Insert-size rewrites happen later, against the library cutoffs.
func initialFlag(rec *sam.Record) PairFlag {
	flags := rec.Flags

	if flags&sam.Paired == 0 || flags&badFlags != 0 {
		return NA
	}
	if flags&sam.Unmapped != 0 {
		return UNMAPPED
	}
	if flags&sam.MateUnmapped != 0 {
		return MATE_UNMAPPED
	}

	// Mate is in another chromosome
	if rec.Ref.ID() != rec.MateRef.ID() {
		return ARP_CTX
	}

	rev := flags&sam.Reverse != 0
	mateRev := flags&sam.MateReverse != 0

	// Same direction with mate
	if rev && mateRev {
		return ARP_RR
	}
	if !rev && !mateRev {
		return ARP_FF
	}

	// Opposite directions: FR when the forward read is leftmost
	if !rev {
		if rec.Pos <= rec.MatePos {
			return NORMAL_FR
		}
		return NORMAL_RF
	}
	if rec.Pos >= rec.MatePos {
		return NORMAL_FR
	}
	return NORMAL_RF
}

// classify builds a typed read from a raw alignment. Returns nil when the
// alignment carries no usable pair signal.
func classify(rec *sam.Record, libIndex int, needSeq bool) *Read {
	flag := initialFlag(rec)
	if flag == NA || flag == UNMAPPED {
		return nil
	}

	ori := FWD
	if rec.Flags&sam.Reverse != 0 {
		ori = REV
	}

	rd := &Read{
		Tid:      rec.Ref.ID(),
		Pos:      rec.Pos,
		Name:     rec.Name,
		Len:      rec.Seq.Length,
		MapQ:     int(rec.MapQ),
		Isize:    rec.TempLen,
		Ori:      ori,
		LibIndex: libIndex,
		Flag:     flag,
	}
	if needSeq {
		rd.Seq = string(rec.Seq.Expand())
		qual := make([]byte, len(rec.Qual))
		for i, q := range rec.Qual {
			qual[i] = q + 33
		}
		rd.Qual = string(qual)
	}
	return rd
}

// pushRead runs the classification filters and flag rewrites and hands
// surviving anomalous reads to the region accumulator.
func (d *Detector) pushRead(aln *Read) {
	lib := d.libs.LibraryByIndex(aln.LibIndex)

	if aln.Flag == NA {
		return
	}

	// Per-library mapping quality floor; -1 in the config defers to the
	// global cutoff.
	minMapq := lib.MinMapQual
	if minMapq < 0 {
		minMapq = d.opts.MinMapQual
	}
	if aln.MapQ <= minMapq {
		return
	}

	// Normally oriented reads feed the depth buckets used for copy number.
	if aln.MapQ > d.opts.MinMapQual && (aln.Flag == NORMAL_FR || aln.Flag == NORMAL_RF) {
		d.incrNormalReadCount(d.opts.CopyNumberKey(lib))
	}

	if (d.opts.TranschrRearrange && aln.Flag != ARP_CTX) ||
		aln.Flag == MATE_UNMAPPED || aln.Flag == UNMAPPED {
		return
	}

	// skip read pairs mapped too distantly on the same chromosome
	if aln.Flag != ARP_CTX && aln.AbsIsize() > d.opts.MaxSd {
		return
	}

	remapFlag(aln, lib, d.opts.IlluminaLongInsert)

	if aln.Flag == NORMAL_FR || aln.Flag == NORMAL_RF {
		if d.collectingNormal && aln.Isize > 0 {
			d.nnormalReads++
		}
		return
	}

	d.accumulate(aln)
}

// remapFlag rewrites the pair flag against the library insert-size cutoffs.
// Mate pair libraries have different expected orientations, so the long
// insert protocol reads the RF geometry as normal. The rewrites converge in
// a single pass.
func remapFlag(aln *Read, lib *LibraryConfig, longInsert bool) {
	if longInsert {
		if float64(aln.AbsIsize()) > lib.Upper && aln.Flag == NORMAL_RF {
			aln.Flag = ARP_RF
		}
		if float64(aln.AbsIsize()) < lib.Upper && aln.Flag == ARP_RF {
			aln.Flag = NORMAL_RF
		}
		if float64(aln.AbsIsize()) < lib.Lower && aln.Flag == NORMAL_RF {
			aln.Flag = ARP_FR_SMALL
		}
	} else {
		if float64(aln.AbsIsize()) > lib.Upper && aln.Flag == NORMAL_FR {
			aln.Flag = ARP_FR_BIG
		}
		if float64(aln.AbsIsize()) < lib.Upper && aln.Flag == ARP_FR_BIG {
			aln.Flag = NORMAL_FR
		}
		if float64(aln.AbsIsize()) < lib.Lower && aln.Flag == NORMAL_FR {
			aln.Flag = ARP_FR_SMALL
		}
		if aln.Flag == NORMAL_RF {
			aln.Flag = ARP_RF
		}
	}
	// FF and RR both read as inversion signal
	if aln.Flag == ARP_RR {
		aln.Flag = ARP_FF
	}
}
