package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/logging"
	"github.com/ferrite-io/ferrite/internal/provider"
	"github.com/ferrite-io/ferrite/internal/registry"
)

// Engine orchestrates the lifecycle of resources.
type Engine struct {
	providers *provider.Registry

	// Parallelism bounds concurrent provider operations during apply.
	// Zero means DefaultParallelism.
	Parallelism int

	// Retry overrides the retry policy for transient provider errors.
	Retry *RetryPolicy
}

func NewEngine(providers *provider.Registry) *Engine {
	return &Engine{
		providers: providers,
	}
}

// CreatePlan generates an execution plan by comparing the registered
// resources with the current state snapshot.
func (e *Engine) CreatePlan(ctx context.Context, reg *registry.Registry, state *ir.State) (*ir.Plan, error) {
	return e.CreatePlanWithTargets(ctx, reg, state, nil)
}

// CreatePlanWithTargets generates a plan restricted to the given addresses
// plus their transitive dependencies. Nil or empty targets plan everything.
//
// Changes come out in creation order; deletions follow at the end in reverse
// dependency order so nothing is removed before its dependents.
func (e *Engine) CreatePlanWithTargets(ctx context.Context, reg *registry.Registry, state *ir.State, targets []string) (*ir.Plan, error) {
	resources := reg.Resources()
	logging.Debug("creating plan", "resources", len(resources), "state_resources", len(state.Resources), "targets", len(targets))

	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
		Outputs: reg.Outputs(),
	}

	for _, res := range resources {
		if err := e.providers.LoadProvider(res.Provider); err != nil {
			return nil, fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
		}
	}

	dag, err := BuildDAG(resources)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	stateMap := make(map[string]*ir.ResourceState)
	for _, rs := range state.Resources {
		stateMap[rs.Addr()] = rs
	}

	configByAddr := make(map[string]*ir.Resource)
	for _, res := range resources {
		configByAddr[res.Addr()] = res
	}

	targetSet := buildTargetSet(dag, targets, false)

	for _, res := range resources {
		if targetSet != nil && !targetSet[res.Addr()] {
			continue
		}
		if err := e.validate(ctx, res); err != nil {
			return nil, err
		}
	}

	// Walk desired resources in dependency order so upstream decisions are
	// known when their dependents are diffed.
	actionByAddr := make(map[string]ir.Action)
	for _, addr := range dag.CreationOrder() {
		res, ok := configByAddr[addr]
		if !ok {
			continue
		}
		if targetSet != nil && !targetSet[addr] {
			continue
		}

		change, err := e.diffResource(ctx, reg, res, stateMap[addr], actionByAddr)
		if err != nil {
			return nil, err
		}

		actionByAddr[addr] = change.Action
		plan.Changes = append(plan.Changes, change)
		plan.Summary.Count(change.Action)
	}

	deletions, err := e.planDeletions(state, configByAddr, targetSet)
	if err != nil {
		return nil, err
	}
	for _, change := range deletions {
		plan.Changes = append(plan.Changes, change)
		plan.Summary.Count(change.Action)
	}

	return plan, nil
}

// CreateDestroyPlan plans the deletion of every resource in state, in
// reverse dependency order. When a registry is given, preventDestroy
// lifecycle rules from the configuration still protect their resources.
func (e *Engine) CreateDestroyPlan(ctx context.Context, reg *registry.Registry, state *ir.State, targets []string) (*ir.Plan, error) {
	logging.Debug("creating destroy plan", "state_resources", len(state.Resources), "targets", len(targets))

	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
	}

	entries := make([]*ir.ResourceState, 0, len(state.Resources))
	for _, rs := range state.Resources {
		entries = append(entries, rs)
	}

	dag, err := BuildDAGFromState(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph from state: %w", err)
	}

	// Destroying a target drags everything that depends on it along.
	targetSet := buildTargetSet(dag, targets, true)

	stateMap := make(map[string]*ir.ResourceState)
	for _, rs := range entries {
		stateMap[rs.Addr()] = rs
	}

	for _, addr := range dag.DestructionOrder() {
		rs, ok := stateMap[addr]
		if !ok {
			continue
		}
		if targetSet != nil && !targetSet[addr] {
			continue
		}
		if reg != nil {
			if res, err := reg.Get(rs.Type, rs.Name); err == nil {
				if res.Lifecycle != nil && res.Lifecycle.PreventDestroy {
					return nil, fmt.Errorf("resource %s has preventDestroy set but plan requires destruction", addr)
				}
			}
		}

		plan.Changes = append(plan.Changes, &ir.ResourceChange{
			Address: addr,
			Action:  ir.ActionDelete,
			Prior:   rs.Resource(),
			Diff:    buildDeleteDiff(rs.Inputs),
		})
		plan.Summary.Count(ir.ActionDelete)
	}

	return plan, nil
}

// validate asks the resource's provider to check desired attributes before
// any diffing happens.
func (e *Engine) validate(ctx context.Context, res *ir.Resource) error {
	prov, err := e.providers.Get(res.Provider)
	if err != nil {
		return err
	}
	req := &provider.ValidateRequest{
		Kind:       res.Type,
		Name:       res.Name,
		Attributes: ir.NormalizeProperties(res.Properties),
	}
	if err := prov.Validate(ctx, req); err != nil {
		return &ValidationError{Address: res.Addr(), Err: err}
	}
	return nil
}

// diffResource decides the action for one desired resource against its state
// entry. actionByAddr holds decisions already made for upstream resources.
func (e *Engine) diffResource(ctx context.Context, reg *registry.Registry, res *ir.Resource, prior *ir.ResourceState, actionByAddr map[string]ir.Action) (*ir.ResourceChange, error) {
	addr := res.Addr()
	desired := ir.NormalizeProperties(res.Properties)

	change := &ir.ResourceChange{
		Address: addr,
		Desired: res,
	}

	if prior == nil || prior.ID == "" {
		change.Action = ir.ActionCreate
		change.Diff = buildCreateDiff(desired)
		return change, nil
	}

	change.Prior = prior.Resource()

	if prior.Tainted {
		if err := enforceLifecycle(res, ir.ActionReplace, addr); err != nil {
			return nil, err
		}
		change.Action = ir.ActionReplace
		change.Diff = buildPropertyDiff(prior.Inputs, desired)
		return change, nil
	}

	unchanged := prior.InputsHash != "" && prior.InputsHash == HashInputs(desired)
	if !unchanged {
		prov, err := e.providers.Get(res.Provider)
		if err != nil {
			return nil, err
		}
		resp, err := prov.Diff(ctx, &provider.DiffRequest{
			Kind:      res.Type,
			Name:      res.Name,
			Prior:     ir.NormalizeProperties(prior.Inputs),
			Desired:   desired,
			ReplaceOn: reg.ReplaceOn(res.Type),
		})
		if err != nil {
			return nil, fmt.Errorf("diff failed for %s: %w", addr, err)
		}

		changed, forced := filterIgnoredChanges(res, resp)
		if len(changed) > 0 {
			action := ir.ActionUpdate
			if len(forced) > 0 {
				action = ir.ActionReplace
			}
			if err := enforceLifecycle(res, action, addr); err != nil {
				return nil, err
			}
			change.Action = action
			change.Diff = buildChangedDiff(prior.Inputs, desired, changed, forced)
			return change, nil
		}
	}

	// Inputs unchanged. If an upstream resource this one references is being
	// created or replaced, its outputs will change, so the references must
	// be re-resolved and re-applied.
	if upstream := refreshedUpstream(res, actionByAddr); upstream != "" {
		change.Action = ir.ActionUpdate
		change.Diff = buildRefDiff(res, prior.Inputs, desired, upstream)
		return change, nil
	}

	change.Action = ir.ActionNoOp
	return change, nil
}

// planDeletions builds DELETE changes for state entries with no desired
// counterpart, ordered so dependents are deleted before their dependencies.
func (e *Engine) planDeletions(state *ir.State, configByAddr map[string]*ir.Resource, targetSet map[string]bool) ([]*ir.ResourceChange, error) {
	var orphaned []*ir.ResourceState
	for _, rs := range state.Resources {
		if _, exists := configByAddr[rs.Addr()]; !exists {
			orphaned = append(orphaned, rs)
		}
	}
	if len(orphaned) == 0 {
		return nil, nil
	}

	dag, err := BuildDAGFromState(orphaned)
	if err != nil {
		return nil, fmt.Errorf("failed to order deletions: %w", err)
	}

	orphanedByAddr := make(map[string]*ir.ResourceState)
	for _, rs := range orphaned {
		orphanedByAddr[rs.Addr()] = rs
	}

	var changes []*ir.ResourceChange
	for _, addr := range dag.DestructionOrder() {
		rs, ok := orphanedByAddr[addr]
		if !ok {
			continue
		}
		if targetSet != nil && !targetSet[addr] {
			continue
		}
		changes = append(changes, &ir.ResourceChange{
			Address: addr,
			Action:  ir.ActionDelete,
			Prior:   rs.Resource(),
			Diff:    buildDeleteDiff(rs.Inputs),
		})
	}
	return changes, nil
}

// buildTargetSet expands targets with their transitive dependencies, or with
// their transitive dependents when destroying. Nil means no restriction.
func buildTargetSet(dag *DAG, targets []string, dependents bool) map[string]bool {
	if len(targets) == 0 {
		return nil
	}
	set := make(map[string]bool)
	for _, t := range targets {
		set[t] = true
		var closure []string
		if dependents {
			closure = dag.TransitiveDependents(t)
		} else {
			closure = dag.TransitiveDeps(t)
		}
		for _, addr := range closure {
			set[addr] = true
		}
	}
	return set
}

// refreshedUpstream returns the first referenced address whose planned action
// invalidates this resource's resolved references, or "" if none.
func refreshedUpstream(res *ir.Resource, actionByAddr map[string]ir.Action) string {
	for _, ref := range extractRefs(res.Properties) {
		depType, depName, _, ok := ParseRef(ref)
		if !ok {
			continue
		}
		switch actionByAddr[depType+"."+depName] {
		case ir.ActionCreate, ir.ActionReplace:
			return depType + "." + depName
		}
	}
	return ""
}

// enforceLifecycle checks lifecycle rules and returns an error if violated.
func enforceLifecycle(res *ir.Resource, action ir.Action, addr string) error {
	if res.Lifecycle == nil {
		return nil
	}
	if res.Lifecycle.PreventDestroy && (action == ir.ActionDelete || action == ir.ActionReplace) {
		return fmt.Errorf("resource %s has preventDestroy set but plan requires destruction", addr)
	}
	return nil
}

// filterIgnoredChanges drops attributes listed in lifecycle.ignoreChanges
// from the provider's change set.
func filterIgnoredChanges(res *ir.Resource, resp *provider.DiffResponse) (changed, forced []string) {
	if res.Lifecycle == nil || len(res.Lifecycle.IgnoreChanges) == 0 {
		return resp.Changed, resp.ForcedBy
	}

	ignore := make(map[string]bool, len(res.Lifecycle.IgnoreChanges))
	for _, attr := range res.Lifecycle.IgnoreChanges {
		ignore[attr] = true
	}

	for _, attr := range resp.Changed {
		if !ignore[attr] {
			changed = append(changed, attr)
		}
	}
	for _, attr := range resp.ForcedBy {
		if !ignore[attr] {
			forced = append(forced, attr)
		}
	}
	return changed, forced
}

// HashInputs returns a stable hash of normalized desired properties. Equal
// hashes short-circuit the attribute diff during planning.
func HashInputs(props map[string]any) string {
	data, err := json.Marshal(ir.Normalize(props))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// buildPropertyDiff compares prior and desired properties and returns a diff map.
func buildPropertyDiff(prior, desired map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for _, k := range provider.DiffAttributes(prior, desired) {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]
		switch {
		case !inPrior:
			diff[k] = &ir.PropertyDiff{After: desiredVal, Action: "create"}
		case !inDesired:
			diff[k] = &ir.PropertyDiff{Before: priorVal, Action: "delete"}
		default:
			diff[k] = &ir.PropertyDiff{Before: priorVal, After: desiredVal, Action: "update"}
		}
	}
	return diff
}

// buildChangedDiff renders the provider's change set, marking attributes that
// force replacement.
func buildChangedDiff(prior, desired map[string]any, changed, forced []string) map[string]*ir.PropertyDiff {
	forcedSet := make(map[string]bool, len(forced))
	for _, attr := range forced {
		forcedSet[attr] = true
	}

	diff := make(map[string]*ir.PropertyDiff)
	for _, k := range changed {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]
		pd := &ir.PropertyDiff{Destructive: forcedSet[k]}
		switch {
		case !inPrior:
			pd.After = desiredVal
			pd.Action = "create"
		case !inDesired:
			pd.Before = priorVal
			pd.Action = "delete"
		default:
			pd.Before = priorVal
			pd.After = desiredVal
			pd.Action = "update"
		}
		diff[k] = pd
	}
	return diff
}

// buildRefDiff marks the attributes holding references to an upstream
// resource whose identity is changing.
func buildRefDiff(res *ir.Resource, prior, desired map[string]any, upstream string) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range desired {
		if !refersTo(v, upstream) {
			continue
		}
		diff[k] = &ir.PropertyDiff{Before: prior[k], After: v, Action: "update"}
	}
	return diff
}

// refersTo reports whether a property value contains a reference to addr.
func refersTo(v any, addr string) bool {
	for _, ref := range extractRefs(v) {
		depType, depName, _, ok := ParseRef(ref)
		if ok && depType+"."+depName == addr {
			return true
		}
	}
	return false
}

func buildCreateDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{After: v, Action: "create"}
	}
	return diff
}

func buildDeleteDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{Before: v, Action: "delete"}
	}
	return diff
}
