package model

import (
	"os"

	"github.com/pkg/errors"
)

// SufficientStatistics summarizes an aligned pair of sequences: the number of
// sites that are identical, that differ by a transition, and that differ by a
// transversion. It is computed once and never changed.
type SufficientStatistics struct {
	Same          int `yaml:"same"`
	Transitions   int `yaml:"transitions"`
	Transversions int `yaml:"transversions"`
}

// Sites is the total number of sites
func (s SufficientStatistics) Sites() int {
	return s.Same + s.Transitions + s.Transversions
}

// Check returns an error if the counts are not usable
func (s SufficientStatistics) Check() error {
	if s.Same < 0 || s.Transitions < 0 || s.Transversions < 0 {
		return errors.Errorf("Negative site count in %+v", s)
	}
	if s.Sites() < 1 {
		return errors.Errorf("No sites in %+v", s)
	}
	return nil
}

// ReadStatistics parses "nsame ntransitions ntransversions" from a buffer.
func ReadStatistics(data []byte) (SufficientStatistics, error) {
	fr := NewFieldReader(string(data))
	if fr.Remaining() != 3 {
		return SufficientStatistics{}, errors.Errorf("Expected 3 counts, found %d fields", fr.Remaining())
	}

	var s SufficientStatistics
	var err error
	if s.Same, err = fr.ReadCount(); err != nil {
		return s, errors.Wrap(err, "Could not read same-site count")
	}
	if s.Transitions, err = fr.ReadCount(); err != nil {
		return s, errors.Wrap(err, "Could not read transition count")
	}
	if s.Transversions, err = fr.ReadCount(); err != nil {
		return s, errors.Wrap(err, "Could not read transversion count")
	}

	if err = s.Check(); err != nil {
		return s, err
	}
	return s, nil
}

// ReadStatisticsFile reads and parses a statistics file
func ReadStatisticsFile(filename string) (SufficientStatistics, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return SufficientStatistics{}, errors.Wrapf(err, "Could not READ statistics from %s", filename)
	}

	s, err := ReadStatistics(data)
	if err != nil {
		return s, errors.Wrapf(err, "Could not PARSE statistics in %s", filename)
	}
	return s, nil
}
