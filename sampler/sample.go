package sampler

import (
	"github.com/pkg/errors"
)

// SampleRecord is one retained draw: the log posterior kernel and the
// parameter vector at that draw.
type SampleRecord struct {
	LogKernel float64
	Params    []float64
}

// PosteriorSample is an ordered sequence of retained draws
type PosteriorSample struct {
	Names   []string
	Records []SampleRecord
}

// NewPosteriorSample creates an empty sample for the named parameters
func NewPosteriorSample(names []string, capacity int) *PosteriorSample {
	if capacity < 0 {
		capacity = 0
	}
	return &PosteriorSample{
		Names:   append([]string(nil), names...),
		Records: make([]SampleRecord, 0, capacity),
	}
}

// Add copies params into a new record
func (p *PosteriorSample) Add(logKernel float64, params []float64) error {
	if len(params) != len(p.Names) {
		return errors.Errorf("Sample has %d parameters, record has %d", len(p.Names), len(params))
	}
	p.Records = append(p.Records, SampleRecord{
		LogKernel: logKernel,
		Params:    append([]float64(nil), params...),
	})
	return nil
}

// Len is the number of records
func (p *PosteriorSample) Len() int {
	return len(p.Records)
}

// Dim is the number of parameters per record
func (p *PosteriorSample) Dim() int {
	return len(p.Names)
}

// Column returns parameter i across all records
func (p *PosteriorSample) Column(i int) []float64 {
	col := make([]float64, len(p.Records))
	for r, rec := range p.Records {
		col[r] = rec.Params[i]
	}
	return col
}

// LogKernels returns the log kernel of every record
func (p *PosteriorSample) LogKernels() []float64 {
	lk := make([]float64, len(p.Records))
	for r, rec := range p.Records {
		lk[r] = rec.LogKernel
	}
	return lk
}
