// Package decision assembles the final per-agent decision from the claim
// resolution, the lifecycle step, and the avoidance offset, and provides
// the batch boundary: one decision per agent per tick, with a per-agent
// fault never taking down the rest of the batch.
package decision

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/depot-fleet/internal/avoid"
	"github.com/talgya/depot-fleet/internal/claim"
	"github.com/talgya/depot-fleet/internal/geom"
	"github.com/talgya/depot-fleet/internal/lifecycle"
	"github.com/talgya/depot-fleet/internal/protocol"
)

// Decider is the decision core for a whole fleet. All agents share one
// Decider so the tournament parameters are identical by construction.
type Decider struct {
	resolver *claim.Resolver
	field    avoid.Field
	life     lifecycle.Config
	contexts *lifecycle.Store
}

// New creates a decider from the three layer configs.
func New(claimCfg claim.Config, avoidCfg avoid.Config, lifeCfg lifecycle.Config) *Decider {
	return &Decider{
		resolver: claim.NewResolver(claimCfg),
		field:    avoid.NewField(avoidCfg),
		life:     lifeCfg,
		contexts: lifecycle.NewStore(),
	}
}

// Contexts exposes the per-agent context store for inspection and sweeps.
func (d *Decider) Contexts() *lifecycle.Store { return d.contexts }

// Result is the explicit per-agent outcome of a batch pass: either a
// decision or a failure that was replaced by the safe default.
type Result struct {
	AgentID  string
	Decision protocol.Decision
	State    lifecycle.State
	Err      error
}

// DecideOne computes one agent's decision from its perception. Pure with
// respect to the snapshot: same perception, same context, same output.
func (d *Decider) DecideOne(p *protocol.Perception) (protocol.Decision, lifecycle.State, error) {
	if p == nil {
		return protocol.Decision{}, lifecycle.StateSeeking, fmt.Errorf("nil perception")
	}
	if p.ID == "" {
		return protocol.Decision{}, lifecycle.StateSeeking, fmt.Errorf("perception missing agent id")
	}
	p.Normalize()

	res := d.resolver.Resolve(p)
	ctx := d.contexts.Get(p.ID)
	out := lifecycle.Step(ctx, p, res, d.life)

	// Repulsion from obstacles and peers, added to the chosen target.
	obstacles := make([]geom.Vec2, 0, len(p.Obstacles))
	for _, o := range p.Obstacles {
		obstacles = append(obstacles, o.Pos())
	}
	peers := make([]geom.Vec2, 0, len(p.OtherAgents))
	for id, peer := range p.OtherAgents {
		if id == p.ID {
			continue
		}
		peers = append(peers, peer.Pos())
	}
	target := out.Target.Add(d.field.Offset(p.Pos(), obstacles, peers))

	dec := protocol.Decision{
		Movement: protocol.Movement{
			Type:    out.Movement,
			TargetX: target.X,
			TargetZ: target.Z,
		},
		Action: protocol.Action{
			Type:     out.Action,
			TargetID: out.ActionTarget,
		},
	}
	return dec, out.State, nil
}

// DecideAll runs one resolution pass for every agent in the batch against
// the shared snapshot. Agents are evaluated in id order purely for
// reproducible logs — the tournament makes the outcome order-independent.
// Any per-agent error or panic is converted into the safe stop/none
// decision for that agent only.
func (d *Decider) DecideAll(batch map[string]*protocol.Perception) []Result {
	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return claim.LessID(ids[i], ids[j]) })

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, d.decideSafe(id, batch[id]))
	}
	return results
}

// decideSafe is the last line of defense: nothing an agent's decision
// logic does may escape past here.
func (d *Decider) decideSafe(id string, p *protocol.Perception) (res Result) {
	res.AgentID = id

	var x, z float64
	if p != nil {
		x, z = p.X, p.Z
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent decision panicked, substituting safe default",
				"agent", id, "panic", r)
			res.Decision = protocol.SafeDecision(x, z)
			res.State = lifecycle.StateSeeking
			res.Err = fmt.Errorf("decision panic: %v", r)
		}
	}()

	dec, state, err := d.DecideOne(p)
	if err != nil {
		slog.Warn("agent decision failed, substituting safe default",
			"agent", id, "error", err)
		res.Decision = protocol.SafeDecision(x, z)
		res.State = lifecycle.StateSeeking
		res.Err = err
		return res
	}
	res.Decision = dec
	res.State = state
	return res
}
