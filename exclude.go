package main

import (
	"github.com/brentp/vcfgo"
	"github.com/brentp/xopen"
	"github.com/pkg/errors"
)

// excludeStore holds intervals from an exclude VCF (assembly gaps, blacklist
// regions). Candidates anchored inside one are suppressed.
type excludeStore struct {
	intervals []excludeInterval
	byChrom   map[string][]int
}

type excludeInterval struct {
	chrom string
	start int
	end   int
}

func readExcludeVcf(path string) (*excludeStore, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open exclude %s", path)
	}
	defer f.Close()

	rdr, err := vcfgo.NewReader(f, false)
	if err != nil {
		return nil, errors.Wrapf(err, "read exclude %s", path)
	}

	store := &excludeStore{byChrom: make(map[string][]int)}
	for {
		variant := rdr.Read()
		if variant == nil {
			break
		}
		start := int(variant.Pos)
		end := start
		if endPosition, err := variant.Info().Get("END"); err == nil {
			switch v := endPosition.(type) {
			case int:
				end = v
			case float64:
				end = int(v)
			}
		}
		if end < start {
			end = start
		}
		store.add(variant.Chromosome, start, end)
	}
	return store, nil
}

func (s *excludeStore) add(chrom string, start, end int) {
	s.intervals = append(s.intervals, excludeInterval{chrom: chrom, start: start, end: end})
	s.byChrom[chrom] = append(s.byChrom[chrom], len(s.intervals)-1)
}

func (s *excludeStore) overlaps(chrom string, pos int) bool {
	for _, i := range s.byChrom[chrom] {
		iv := s.intervals[i]
		if pos >= iv.start && pos <= iv.end {
			return true
		}
	}
	return false
}
