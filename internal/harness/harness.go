package harness

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/compat"
	"github.com/roach88/mpcompat/internal/config"
	"github.com/roach88/mpcompat/internal/engine"
	"github.com/roach88/mpcompat/internal/host"
	"github.com/roach88/mpcompat/internal/host/simhost"
	"github.com/roach88/mpcompat/internal/integrations"
	"github.com/roach88/mpcompat/internal/store"
	"github.com/roach88/mpcompat/internal/transport"
)

// maxSettleRounds bounds settle. Applying never submits, so two rounds
// normally suffice.
const maxSettleRounds = 64

// Options configure a simulation beyond what the scenario states.
type Options struct {
	// Peers is used when the scenario leaves its peer count at zero.
	Peers int

	// Debug and Disabled add to the scenario's own settings.
	Debug    bool
	Disabled []string

	// Journal, when set, records every applied operation of every peer.
	Journal *store.Store

	// IDs names the peers. Defaults to peer-0, peer-1, ...
	IDs transport.IDGenerator

	// Groups defaults to the reference integrations.
	Groups []compat.Group

	Logger zerolog.Logger
}

// peer is one simulated participant.
type peer struct {
	id     string
	world  *simhost.World
	rt     *compat.Runtime
	engine *engine.Engine
	trace  []TraceEvent
}

func (p *peer) pawn(id host.EntityID) (*simhost.Pawn, error) {
	pawn := p.world.Pawn(id)
	if pawn == nil {
		return nil, fmt.Errorf("%s: no pawn %d", p.id, id)
	}
	return pawn, nil
}

func (p *peer) pod(id host.EntityID) (*simhost.Pod, error) {
	pod := p.world.Pod(id)
	if pod == nil {
		return nil, fmt.Errorf("%s: no pod %d", p.id, id)
	}
	return pod, nil
}

func (p *peer) ability(pawnID host.EntityID, def string) (*simhost.Ability, error) {
	pawn, err := p.pawn(pawnID)
	if err != nil {
		return nil, err
	}
	a := pawn.Abilities().Find(def)
	if a == nil {
		return nil, fmt.Errorf("%s: pawn %d has no ability %s", p.id, pawnID, def)
	}
	return a, nil
}

// simulation is one scenario run in progress.
type simulation struct {
	scenario *Scenario
	opts     Options
	lb       *transport.Loopback
	peers    []*peer
	logger   zerolog.Logger
}

// Run executes a scenario: it builds the peers, runs setup and steps,
// settles, and evaluates the assertions.
//
// The returned error reports a broken scenario or infrastructure failure.
// Failed assertions are reported in Result.Errors instead.
func Run(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	n := s.Peers
	if n == 0 {
		n = opts.Peers
	}
	if n == 0 {
		n = config.Default().Peers
	}
	if n > config.MaxPeers {
		return nil, fmt.Errorf("scenario %s: %d peers, at most %d", s.Name, n, config.MaxPeers)
	}
	for i, h := range s.Hosts {
		if h.Peer >= n {
			return nil, fmt.Errorf("scenario %s: hosts[%d] names peer %d of %d", s.Name, i, h.Peer, n)
		}
	}
	for i, step := range s.Steps {
		if step.Do != StepSettle && (step.Peer < 0 || step.Peer >= n) {
			return nil, fmt.Errorf("scenario %s: steps[%d] runs on peer %d of %d", s.Name, i, step.Peer, n)
		}
	}
	if opts.IDs == nil {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("peer-%d", i)
		}
		opts.IDs = transport.NewFixedGenerator(ids...)
	}
	if opts.Groups == nil {
		groups, err := integrations.Groups()
		if err != nil {
			return nil, err
		}
		opts.Groups = groups
	}

	sim := &simulation{
		scenario: s,
		opts:     opts,
		lb:       transport.NewLoopback(opts.Logger),
		logger:   opts.Logger.With().Str("component", "harness").Str("scenario", s.Name).Logger(),
	}
	defer sim.close()

	for i := 0; i < n; i++ {
		p, err := sim.addPeer(i)
		if err != nil {
			return nil, err
		}
		sim.peers = append(sim.peers, p)
	}

	for i, step := range s.Steps {
		if step.Do == StepSettle {
			if err := sim.settle(ctx); err != nil {
				return nil, err
			}
			continue
		}
		p := sim.peers[step.Peer]
		a := &args{m: step.Args}
		if err := stepActions[step.Do](p, a); err != nil {
			return nil, fmt.Errorf("steps[%d] %s on %s: %w", i, step.Do, p.id, err)
		}
		if a.err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Do, a.err)
		}
		sim.logger.Debug().Int("step", i).Str("action", step.Do).Str("peer", p.id).Msg("step done")
	}
	if err := sim.settle(ctx); err != nil {
		return nil, err
	}

	result := sim.result()
	for _, msg := range evaluateAssertions(sim, result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (sim *simulation) addPeer(i int) (*peer, error) {
	s := sim.scenario
	var hostOpts []simhost.Option
	for _, h := range s.Hosts {
		if h.Peer != i {
			continue
		}
		hostOpts = append(hostOpts, simhost.WithoutSymbols(h.Without...))
		for from, to := range h.Renamed {
			hostOpts = append(hostOpts, simhost.WithRenamed(from, to))
		}
	}

	p := &peer{id: sim.opts.IDs.Generate()}
	logger := sim.opts.Logger.With().Str("peer", p.id).Logger()
	p.world = simhost.New(logger, hostOpts...)

	for j, step := range s.Setup {
		if len(step.Peers) > 0 && !slices.Contains(step.Peers, i) {
			continue
		}
		a := &args{m: step.Args}
		if err := setupActions[step.Do](p, a); err != nil {
			return nil, fmt.Errorf("setup[%d] %s on %s: %w", j, step.Do, p.id, err)
		}
		if a.err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", j, step.Do, a.err)
		}
	}

	rt, err := compat.New(compat.Config{
		Namespace: p.world.Namespace(),
		World:     p.world,
		Selection: p.world,
		Hooks:     p.world.Hooks(),
		Sink:      sim.lb.Endpoint(p.id),
		Debug:     s.Debug || sim.opts.Debug,
		Disabled:  append(slices.Clone(s.Disabled), sim.opts.Disabled...),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	p.rt = rt
	if err := rt.Add(sim.opts.Groups...); err != nil {
		return nil, err
	}
	if err := rt.LoadImmediate(); err != nil {
		return nil, err
	}
	if err := rt.LoadLate(); err != nil {
		return nil, err
	}

	engineOpts := []engine.EngineOption{
		engine.WithObserver(func(r engine.Result) {
			ev := TraceEvent{Seq: r.Op.Seq, Origin: r.Op.Origin, Method: r.Op.Method, Status: string(r.Status)}
			if r.Err != nil {
				ev.Error = r.Err.Error()
			}
			p.trace = append(p.trace, ev)
		}),
	}
	if sim.opts.Journal != nil {
		engineOpts = append(engineOpts, engine.WithJournal(sim.opts.Journal))
	}
	p.engine = engine.New(p.id, rt, logger, engineOpts...)
	sim.lb.Attach(p.id, p.engine)
	return p, nil
}

// settle steps every peer until nothing is pending anywhere.
func (sim *simulation) settle(ctx context.Context) error {
	for round := 0; round < maxSettleRounds; round++ {
		progressed := false
		for _, p := range sim.peers {
			n, err := p.engine.Step(ctx)
			if err != nil {
				return fmt.Errorf("settle %s: %w", p.id, err)
			}
			if n > 0 {
				progressed = true
			}
		}
		if !progressed {
			return nil
		}
	}
	return fmt.Errorf("settle: still progressing after %d rounds", maxSettleRounds)
}

func (sim *simulation) result() *Result {
	r := &Result{
		Scenario:  sim.scenario.Name,
		Pass:      true,
		Submitted: sim.lb.Seq(),
		Converged: true,
	}
	for _, p := range sim.peers {
		applied, failed := p.engine.Stats()
		pr := PeerResult{
			ID:       p.id,
			Applied:  applied,
			Failed:   failed,
			Checksum: p.engine.Checksum(),
			Groups:   make(map[string]string),
			Trace:    p.trace,
		}
		for _, st := range p.rt.Statuses() {
			pr.Groups[st.Name] = string(st.State)
		}
		if failed > 0 || pr.Checksum != sim.peers[0].engine.Checksum() {
			r.Converged = false
		}
		r.Peers = append(r.Peers, pr)
	}
	return r
}

func (sim *simulation) close() {
	for _, p := range sim.peers {
		p.engine.Stop()
		p.rt.Close()
	}
}
