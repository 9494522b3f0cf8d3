package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/marglike/buffer"
	"github.com/CraigKelly/marglike/rand"
)

// MaxWidth caps the proposal window so a flat marginal cannot make the
// updater arbitrarily bold.
const MaxWidth = 1000.0

// Updater is a sliding-window Metropolis updater for one coordinate of the
// parameter vector, tuned with a Robbins-Monro schedule during burn-in.
type Updater struct {
	Index  int     // Coordinate of the parameter vector this updater owns
	Name   string  // Parameter name
	Width  float64 // Current proposal window width
	Target float64 // Target acceptance rate

	TuneUpdates int64 // Updates made while tuning (drives the step size)
	TuneAccepts int64 // Acceptances made while tuning
	Proposed    int64 // All updates
	Accepted    int64 // All acceptances

	recent *buffer.CircularFloat // 1 for accept, 0 for reject
}

// NewUpdater creates an updater for coordinate index
func NewUpdater(index int, name string, width float64, target float64) (*Updater, error) {
	if index < 0 {
		return nil, errors.Errorf("Invalid coordinate %d for updater %s", index, name)
	}
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, errors.Errorf("Invalid window width %v for updater %s", width, name)
	}
	if !(target > 0 && target < 1) {
		return nil, errors.Errorf("Target acceptance %v for updater %s must be in (0,1)", target, name)
	}

	return &Updater{
		Index:  index,
		Name:   name,
		Width:  math.Min(width, MaxWidth),
		Target: target,
		recent: buffer.NewCircularFloat(200),
	}, nil
}

// ResetCounters zeroes every counter and the recent history
func (u *Updater) ResetCounters() {
	u.TuneUpdates, u.TuneAccepts = 0, 0
	u.Proposed, u.Accepted = 0, 0
	u.recent = buffer.NewCircularFloat(u.recent.BufSize)
}

// Propose draws uniformly from [x - w/2, x + w/2] and reflects negative
// draws at zero. The window is symmetric about x and zero is a reflecting
// wall, so the proposal stays symmetric. An exact zero is redrawn.
func (u *Updater) Propose(gen *rand.Generator, x float64) float64 {
	for {
		y := (x - u.Width/2.0) + gen.Float64()*u.Width
		if y < 0 {
			y = -y
		}
		if y > 0 {
			return y
		}
	}
}

// Update proposes a new value for the coordinate and accepts or rejects it
// against the power posterior at beta. A DomainError from the model is
// returned unchanged.
func (u *Updater) Update(gen *rand.Generator, s *State, beta float64, tune bool) (bool, error) {
	i := u.Index
	x0 := s.Params[i]
	x1 := u.Propose(gen, x0)

	ll1, err := s.candidateLogLike(i, x1)
	if err != nil {
		return false, err
	}
	lp1 := s.Model.LogPriorAt(i, x1)

	logRatio := beta * ((ll1 + lp1) - (s.LogLike + s.LogPri[i]))
	var lr1 float64
	if beta < 1.0 {
		lr1 = s.Model.LogReferenceAt(i, x1)
		logRatio += (1.0 - beta) * (lr1 - s.LogRef[i])
	}

	accepted := math.Log(gen.Float64()) < logRatio
	if accepted {
		s.Params[i] = x1
		s.LogLike = ll1
		s.LogPri[i] = lp1
		if beta < 1.0 {
			s.LogRef[i] = lr1
		} else {
			s.LogRef[i] = s.Model.LogReferenceAt(i, x1)
		}
	}

	u.Proposed++
	if accepted {
		u.Accepted++
		u.recent.Add(1)
	} else {
		u.recent.Add(0)
	}

	if tune {
		u.Tune(accepted)
	}
	return accepted, nil
}

// Tune applies one Robbins-Monro step to the window width. See Prokaj (2009),
// Proposal selection for MCMC simulation.
func (u *Updater) Tune(accepted bool) {
	u.TuneUpdates++
	gamma := 10.0 / (100.0 + float64(u.TuneUpdates))
	if accepted {
		u.TuneAccepts++
		u.Width *= 1.0 + gamma*(1.0-u.Target)/(2.0*u.Target)
	} else {
		u.Width *= 1.0 - gamma*0.5
	}

	if u.Width > MaxWidth {
		u.Width = MaxWidth
	}
}

// TuneAcceptanceRate is the acceptance rate over the tuning updates
func (u *Updater) TuneAcceptanceRate() float64 {
	if u.TuneUpdates < 1 {
		return 0
	}
	return float64(u.TuneAccepts) / float64(u.TuneUpdates)
}

// AcceptanceRate is the acceptance rate over all updates
func (u *Updater) AcceptanceRate() float64 {
	if u.Proposed < 1 {
		return 0
	}
	return float64(u.Accepted) / float64(u.Proposed)
}

// RecentAcceptanceRate is the acceptance rate over the most recent updates
func (u *Updater) RecentAcceptanceRate() float64 {
	return u.recent.Mean()
}
