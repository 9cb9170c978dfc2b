package main

import (
	"io"
	"log"
	"math"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
)

var logger *log.Logger

func init() {
	logger = log.New(os.Stderr, "[breakdancer] ", log.Ldate|log.Ltime)
}

type cliargs struct {
	Config           string   `arg:"-c,--config,required" help:"library configuration file (TOML, gz ok)"`
	Bams             []string `arg:"positional,required" help:"position-sorted bam files"`
	MinMapQual       int      `arg:"-q,--mapqual" help:"global minimum mapping quality"`
	MaxSd            int      `arg:"-m,--maxsd" help:"maximum same-chromosome insert size to consider"`
	MinLen           int      `arg:"-s,--minlen" help:"minimum region span to promote"`
	SeqCoverageLim   float64  `arg:"--covlim" help:"maximum coverage density to promote a region"`
	BufferSize       int      `arg:"-b,--buffer" help:"promoted regions between graph flushes"`
	WindowSize       int      `arg:"-w,--window" help:"gap that starts a new region (0 derives from the config)"`
	MinReadPair      int      `arg:"-r,--pairs" help:"minimum pair support for edges and candidates"`
	TranschrOnly     bool     `arg:"-t,--transchr" help:"only detect inter-chromosomal rearrangements"`
	LongInsert       bool     `arg:"--long-insert" help:"mate-pair (Illumina long insert) libraries"`
	CNLib            int      `arg:"--cn-lib" help:"1: copy number per library, 0: per bam"`
	Fisher           bool     `arg:"--fisher" help:"combine library p-values with Fisher's method"`
	ScoreThreshold   int      `arg:"-y,--score" help:"minimum phred score to emit"`
	PrintAF          bool     `arg:"-a,--af" help:"print allele frequency"`
	PrefixFastq      string   `arg:"-d,--fastq" help:"dump supporting reads to <prefix>.<lib>.<1|2>.fastq"`
	DumpBED          string   `arg:"-g,--bed" help:"append supporting-read traces to this BED file"`
	Exclude          string   `arg:"-e,--exclude" help:"VCF of regions to suppress calls in"`
	CountPairsOnFree bool     `arg:"--count-pairs-on-free" help:"compare residual region reads in pair units on the free sweep"`
}

func (cliargs) Version() string {
	return "breakdancer 1.0.0"
}

// bamStream is one open reader with a lookahead record.
type bamStream struct {
	f    *os.File
	r    *bam.Reader
	path string
	head *sam.Record
}

// mergedReader yields records of all input bams merged by (tid, pos). Each
// input is assumed position-sorted.
type mergedReader struct {
	streams []*bamStream
	refs    []*sam.Reference
}

func newMergedReader(paths []string) (*mergedReader, error) {
	m := &mergedReader{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		r, err := bam.NewReader(f, 1)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "read %s", path)
		}
		if ok, err := bgzf.HasEOF(f); err != nil || !ok {
			f.Close()
			return nil, errors.Errorf("%s: missing bgzf EOF block (%v)", path, err)
		}
		s := &bamStream{f: f, r: r, path: path}
		if err := s.advance(); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		m.streams = append(m.streams, s)
		if m.refs == nil {
			m.refs = r.Header().Refs()
		}
	}
	return m, nil
}

func (s *bamStream) advance() error {
	rec, err := s.r.Read()
	if err == io.EOF {
		s.head = nil
		return nil
	}
	if err != nil {
		return err
	}
	s.head = rec
	return nil
}

func recTid(rec *sam.Record) int {
	if rec.Ref == nil {
		return math.MaxInt32
	}
	return rec.Ref.ID()
}

// next returns the lowest-coordinate head record and the bam it came from.
func (m *mergedReader) next() (*sam.Record, string, error) {
	best := -1
	for i, s := range m.streams {
		if s.head == nil {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		bt, st := recTid(m.streams[best].head), recTid(s.head)
		if st < bt || (st == bt && s.head.Pos < m.streams[best].head.Pos) {
			best = i
		}
	}
	if best < 0 {
		return nil, "", io.EOF
	}
	s := m.streams[best]
	rec := s.head
	if err := s.advance(); err != nil {
		return nil, "", err
	}
	return rec, s.path, nil
}

func (m *mergedReader) refNames() []string {
	names := make([]string, len(m.refs))
	for i, r := range m.refs {
		names[i] = r.Name()
	}
	return names
}

func (m *mergedReader) Close() {
	for _, s := range m.streams {
		s.r.Close()
		s.f.Close()
	}
}

var rgTag = sam.NewTag("RG")

func readGroup(rec *sam.Record) string {
	return auxString(rec.AuxFields.Get(rgTag))
}

func main() {
	args := cliargs{
		MinMapQual:     35,
		MaxSd:          1000000000,
		MinLen:         7,
		SeqCoverageLim: 1000,
		BufferSize:     100,
		MinReadPair:    2,
		ScoreThreshold: 30,
	}
	arg.MustParse(&args)

	opts := &Options{
		MinMapQual:         args.MinMapQual,
		MaxSd:              args.MaxSd,
		MinLen:             args.MinLen,
		SeqCoverageLim:     args.SeqCoverageLim,
		BufferSize:         args.BufferSize,
		MaxReadWindowSize:  args.WindowSize,
		MinReadPair:        args.MinReadPair,
		TranschrRearrange:  args.TranschrOnly,
		IlluminaLongInsert: args.LongInsert,
		CNLib:              args.CNLib,
		Fisher:             args.Fisher,
		ScoreThreshold:     args.ScoreThreshold,
		PrintAF:            args.PrintAF,
		SVType:             defaultSVTypes(args.LongInsert),
		PrefixFastq:        args.PrefixFastq,
		DumpBED:            args.DumpBED,
		CountPairsOnFree:   args.CountPairsOnFree,
	}

	libs, err := loadConfig(args.Config, opts.CNLib)
	if err != nil {
		logger.Fatalf("could not load config: %v", err)
	}
	if opts.MaxReadWindowSize == 0 {
		opts.MaxReadWindowSize = libs.deriveReadWindowSize()
		logger.Printf("max read window size: %d", opts.MaxReadWindowSize)
	}

	merged, err := newMergedReader(args.Bams)
	if err != nil {
		logger.Fatalf("could not open bams: %v", err)
	}
	defer merged.Close()

	em := newEmitter(os.Stdout, opts, libs)
	det := NewDetector(opts, libs, em, merged.refNames())

	if args.Exclude != "" {
		det.exclude, err = readExcludeVcf(args.Exclude)
		if err != nil {
			logger.Fatalf("could not load exclude list: %v", err)
		}
	}

	needSeq := opts.NeedSequenceData()
	readIndex := 0
	for {
		rec, bamPath, err := merged.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Fatalf("error reading bam: %v", err)
		}

		readIndex++
		if readIndex%1000000 == 0 && rec.Ref != nil {
			logger.Printf("processed %d reads, at %s %d", readIndex, rec.Ref.Name(), rec.Pos)
		}

		// Reads with no library linkage carry no usable profile; skip them.
		libName := libs.LibraryForReadGroup(readGroup(rec), bamPath)
		if libName == "" {
			continue
		}
		lib, ok := libs.LibraryByName(libName)
		if !ok {
			continue
		}

		if rd := classify(rec, lib.Index, needSeq); rd != nil {
			det.pushRead(rd)
		}
	}
	det.processFinalRegion()

	if err := em.Close(); err != nil {
		logger.Printf("closing outputs: %v", err)
	}
}
