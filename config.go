package main

import (
	"github.com/BurntSushi/toml"
	"github.com/brentp/xopen"
	"github.com/pkg/errors"
)

// LibraryConfig is one sequencing library as characterized up front: insert
// cutoffs, the backing bam, and the genome-wide read-count profile by pair
// flag. Read-only after startup.
type LibraryConfig struct {
	Name       string            `toml:"name"`
	Bam        string            `toml:"bam"`
	ReadGroups []string          `toml:"readgroups"`
	MeanInsert float64           `toml:"mean"`
	StdInsert  float64           `toml:"std"`
	Lower      float64           `toml:"lower"`
	Upper      float64           `toml:"upper"`
	MinMapQual int               `toml:"mapqual"`
	ReadLen    float64           `toml:"readlen"`
	FlagCounts map[string]uint32 `toml:"flag_counts"`

	Index int `toml:"-"`
}

type configFile struct {
	CoveredLength int64            `toml:"covered_reference_length"`
	Libraries     []*LibraryConfig `toml:"library"`
}

// LibraryInfo indexes the parsed config by library index, name, and
// readgroup, and precomputes the per-flag count tables and the normal-read
// densities used for copy number.
type LibraryInfo struct {
	libs          []*LibraryConfig
	byName        map[string]*LibraryConfig
	byReadGroup   map[string]string
	bamDefaultLib map[string]string
	bams          []string
	flagCounts    [][]uint32
	coveredLength int64
	density       map[string]float64
}

func loadConfig(path string, cnLib int) (*LibraryInfo, error) {
	rdr, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer rdr.Close()

	var cf configFile
	if _, err := toml.NewDecoder(rdr).Decode(&cf); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	if len(cf.Libraries) == 0 {
		return nil, errors.Errorf("config %s: no libraries", path)
	}
	if cf.CoveredLength <= 0 {
		return nil, errors.Errorf("config %s: covered_reference_length must be positive", path)
	}
	return newLibraryInfo(&cf, cnLib)
}

func newLibraryInfo(cf *configFile, cnLib int) (*LibraryInfo, error) {
	info := &LibraryInfo{
		libs:          cf.Libraries,
		byName:        make(map[string]*LibraryConfig),
		byReadGroup:   make(map[string]string),
		bamDefaultLib: make(map[string]string),
		coveredLength: cf.CoveredLength,
		density:       make(map[string]float64),
	}

	seenBam := make(map[string]bool)
	for i, lib := range cf.Libraries {
		lib.Index = i
		if lib.Name == "" {
			return nil, errors.Errorf("library %d: missing name", i)
		}
		if _, dup := info.byName[lib.Name]; dup {
			return nil, errors.Errorf("duplicate library %q", lib.Name)
		}
		if lib.MinMapQual == 0 {
			lib.MinMapQual = -1 // unset in config means use the global floor
		}
		info.byName[lib.Name] = lib
		for _, rg := range lib.ReadGroups {
			info.byReadGroup[rg] = lib.Name
		}
		if !seenBam[lib.Bam] {
			seenBam[lib.Bam] = true
			info.bams = append(info.bams, lib.Bam)
			info.bamDefaultLib[lib.Bam] = lib.Name
		}

		counts := make([]uint32, UNMAPPED+1)
		for name, n := range lib.FlagCounts {
			f, ok := flagFromName(name)
			if !ok {
				return nil, errors.Errorf("library %q: unknown flag %q in flag_counts", lib.Name, name)
			}
			counts[f] = n
		}
		info.flagCounts = append(info.flagCounts, counts)
	}

	// Normal-read density per copy-number bucket, reads per covered base.
	for _, lib := range cf.Libraries {
		key := lib.Bam
		if cnLib == 1 {
			key = lib.Name
		}
		normals := float64(info.flagCounts[lib.Index][NORMAL_FR] + info.flagCounts[lib.Index][NORMAL_RF])
		info.density[key] += normals / float64(cf.CoveredLength)
	}
	return info, nil
}

func (li *LibraryInfo) LibraryByIndex(i int) *LibraryConfig {
	return li.libs[i]
}

func (li *LibraryInfo) LibraryByName(name string) (*LibraryConfig, bool) {
	lib, ok := li.byName[name]
	return lib, ok
}

// LibraryForReadGroup resolves a readgroup to a library name; reads from an
// unknown readgroup fall back to the bam's default library, and "" means the
// read cannot be linked and should be skipped.
func (li *LibraryInfo) LibraryForReadGroup(rg, bam string) string {
	if name, ok := li.byReadGroup[rg]; ok {
		return name
	}
	if rg == "" {
		return li.bamDefaultLib[bam]
	}
	return ""
}

func (li *LibraryInfo) NumLibraries() int { return len(li.libs) }

func (li *LibraryInfo) BamFiles() []string { return li.bams }

func (li *LibraryInfo) CoveredLength() int64 { return li.coveredLength }

// FlagCount is the genome-wide count of reads with the given flag observed
// in library i during pre-characterization.
func (li *LibraryInfo) FlagCount(i int, f PairFlag) uint32 {
	if i < 0 || i >= len(li.flagCounts) {
		return 0
	}
	return li.flagCounts[i][f]
}

func (li *LibraryInfo) Density(key string) float64 {
	return li.density[key]
}

// deriveReadWindowSize picks the default region gap: the smallest library
// mean minus two read lengths, clamped to [50, 1e8].
func (li *LibraryInfo) deriveReadWindowSize() int {
	d := int(1e8)
	for _, lib := range li.libs {
		w := int(lib.MeanInsert - 2*lib.ReadLen)
		if w < d {
			d = w
		}
	}
	if d < 50 {
		d = 50
	}
	return d
}

// Options are the recognized core options, resolved from the command line.
type Options struct {
	MinMapQual        int
	MaxSd             int
	MinLen            int
	SeqCoverageLim    float64
	BufferSize        int
	MaxReadWindowSize int
	MinReadPair       int
	TranschrRearrange bool
	IlluminaLongInsert bool
	CNLib             int
	Fisher            bool
	ScoreThreshold    int
	PrintAF           bool
	SVType            map[PairFlag]string
	PrefixFastq       string
	DumpBED           string
	CountPairsOnFree  bool
}

// NeedSequenceData reports whether read sequence and quality must be kept on
// classified reads. Only the FASTQ and BED side outputs consume them.
func (o *Options) NeedSequenceData() bool {
	return o.PrefixFastq != "" || o.DumpBED != ""
}

// defaultSVTypes maps each dominant anomaly flag to the emitted SV type
// string for the given library protocol.
func defaultSVTypes(longInsert bool) map[PairFlag]string {
	if longInsert {
		return map[PairFlag]string{
			ARP_FF:     "INV",
			ARP_FR_BIG: "INS",
			ARP_RF:     "DEL",
			ARP_RR:     "INV",
			ARP_CTX:    "CTX",
		}
	}
	return map[PairFlag]string{
		ARP_FF:       "INV",
		ARP_FR_BIG:   "DEL",
		ARP_FR_SMALL: "INS",
		ARP_RF:       "ITX",
		ARP_RR:       "INV",
		ARP_CTX:      "CTX",
	}
}

// CopyNumberKey picks the accounting bucket for normal-read depth.
func (o *Options) CopyNumberKey(lib *LibraryConfig) string {
	if o.CNLib == 1 {
		return lib.Name
	}
	return lib.Bam
}
