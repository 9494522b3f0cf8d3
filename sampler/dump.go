package sampler

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// WriteSamples writes a tab-separated header of parameter names followed by
// one row per record, each value formatted with five decimals.
func WriteSamples(w io.Writer, p *PosteriorSample) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, strings.Join(p.Names, "\t")); err != nil {
		return errors.Wrap(err, "Could not write sample header")
	}

	cols := make([]string, p.Dim())
	for _, rec := range p.Records {
		for i, x := range rec.Params {
			cols[i] = fmt.Sprintf("%.5f", x)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(cols, "\t")); err != nil {
			return errors.Wrap(err, "Could not write sample row")
		}
	}
	return bw.Flush()
}

// WriteSamplesFile writes the sample to the named file
func WriteSamplesFile(fn string, p *PosteriorSample) error {
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "Could not CREATE sample file %s", fn)
	}

	if err := WriteSamples(f, p); err != nil {
		f.Close()
		return errors.Wrapf(err, "Could not WRITE samples to %s", fn)
	}
	return errors.Wrapf(f.Close(), "Could not CLOSE sample file %s", fn)
}
