package cmd

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/CraigKelly/marglike/pipeline"
)

// monitor publishes run progress under /debug/vars. It implements
// pipeline.Observer.
type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server
	started time.Time

	Phase      *expvar.String
	Iterations *expvar.Int
	Stone      *expvar.Int
	Stones     *expvar.Int
	Beta       *expvar.Float
	Estimate   *expvar.Float
	GSS        *expvar.Float
	LoRaD      *expvar.Float
	RunTime    *expvar.Float
	LastError  *expvar.String

	mu         sync.Mutex
	acceptance []float64
}

func newMonitor() *monitor {
	m := &monitor{
		info:       new(expvar.Map).Init(),
		started:    time.Now(),
		Phase:      new(expvar.String),
		Iterations: new(expvar.Int),
		Stone:      new(expvar.Int),
		Stones:     new(expvar.Int),
		Beta:       new(expvar.Float),
		Estimate:   new(expvar.Float),
		GSS:        new(expvar.Float),
		LoRaD:      new(expvar.Float),
		RunTime:    new(expvar.Float),
		LastError:  new(expvar.String),
	}

	m.Phase.Set(pipeline.Idle.String())
	m.info.Set("Phase", m.Phase)
	m.info.Set("Iterations", m.Iterations)
	m.info.Set("Stone", m.Stone)
	m.info.Set("Stone-Count", m.Stones)
	m.info.Set("Beta", m.Beta)
	m.info.Set("Running-Estimate", m.Estimate)
	m.info.Set("GSS-Log-Marginal-Likelihood", m.GSS)
	m.info.Set("LoRaD-Log-Marginal-Likelihood", m.LoRaD)
	m.info.Set("Run-Time", m.RunTime)
	m.info.Set("Last-Error", m.LastError)
	m.info.Set("Recent-Acceptance", expvar.Func(func() interface{} {
		m.mu.Lock()
		defer m.mu.Unlock()
		return append([]float64(nil), m.acceptance...)
	}))
	return m
}

// Observe implements pipeline.Observer
func (m *monitor) Observe(ev pipeline.Event) {
	m.Phase.Set(ev.Phase.String())
	m.RunTime.Set(time.Since(m.started).Seconds())

	if ev.Iterations > 0 {
		m.Iterations.Set(ev.Iterations)
	}
	if ev.Acceptance != nil {
		m.mu.Lock()
		m.acceptance = append(m.acceptance[:0], ev.Acceptance...)
		m.mu.Unlock()
	}

	switch ev.Phase {
	case pipeline.LadderStep:
		m.Stone.Set(int64(ev.Stone))
		m.Stones.Set(int64(ev.Stones))
		m.Beta.Set(ev.Beta)
		m.Estimate.Set(ev.Estimate)
	case pipeline.Done:
		if r := ev.Result; r != nil {
			m.GSS.Set(r.GSSLogMarginalLikelihood)
			m.LoRaD.Set(r.LoRaDLogMarginalLikelihood)
		}
	case pipeline.Failed:
		if ev.Err != nil {
			m.LastError.Set(ev.Err.Error())
		}
	}
}

// Start publishes the monitor and begins serving on addr. Only one monitor
// may be started per process.
func (m *monitor) Start(addr string) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}
	if expvar.Get("marglike-progress") != nil {
		return errors.Errorf("A progress monitor is already published")
	}
	expvar.Publish("marglike-progress", m.info)

	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	// Help the user and redirect to the only thing currently available
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

// Stop shuts the server down, waiting briefly for it to exit
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
