package main

// PairFlag classifies the geometry of a read pair. It starts from the raw
// alignment flags and may be rewritten once against the library insert-size
// cutoffs before the read enters a region.
type PairFlag int

const (
	NA PairFlag = iota
	NORMAL_FR
	NORMAL_RF
	ARP_FR_BIG
	ARP_FR_SMALL
	ARP_RF
	ARP_FF
	ARP_RR
	ARP_CTX
	MATE_UNMAPPED
	UNMAPPED
)

var flagNames = map[PairFlag]string{
	NA:            "NA",
	NORMAL_FR:     "normal_FR",
	NORMAL_RF:     "normal_RF",
	ARP_FR_BIG:    "FR_big",
	ARP_FR_SMALL:  "FR_small",
	ARP_RF:        "RF",
	ARP_FF:        "FF",
	ARP_RR:        "RR",
	ARP_CTX:       "CTX",
	MATE_UNMAPPED: "mate_unmapped",
	UNMAPPED:      "unmapped",
}

func (f PairFlag) String() string {
	if s, ok := flagNames[f]; ok {
		return s
	}
	return "NA"
}

// flagFromName is the inverse of PairFlag.String, used by the config loader.
func flagFromName(s string) (PairFlag, bool) {
	for f, name := range flagNames {
		if name == s {
			return f, true
		}
	}
	return NA, false
}

// Orientation of a single read on the reference.
type Orientation int

const (
	FWD Orientation = iota
	REV
)

func (o Orientation) String() string {
	if o == REV {
		return "-"
	}
	return "+"
}

// Read is one classified alignment. Immutable once classified except for
// Flag, which the insert-size rewrites may change exactly once.
type Read struct {
	Tid      int
	Pos      int
	Name     string
	Seq      string
	Qual     string
	Len      int
	MapQ     int
	Isize    int
	Ori      Orientation
	LibIndex int
	Flag     PairFlag
}

func (r *Read) AbsIsize() int {
	if r.Isize < 0 {
		return -r.Isize
	}
	return r.Isize
}

// Region is a finalized window of anomalous reads on one reference.
// Start/End/normal counts are fixed at creation; Reads may shrink when a
// traversal consumes supporting pairs, and may grow only by collapse of an
// unreliable successor window.
type Region struct {
	ID          int
	Tid         int
	Start       int
	End         int
	NormalReads int
	NormalByKey map[string]int
	Reads       []*Read
}

func (r *Region) Size() int {
	return r.End - r.Start
}
