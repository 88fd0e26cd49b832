package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ferrite-io/ferrite/internal/ir"
	"github.com/ferrite-io/ferrite/internal/logging"
	"github.com/ferrite-io/ferrite/internal/provider"
)

// DefaultParallelism bounds concurrent provider operations unless overridden.
const DefaultParallelism = 10

// NodeStatus is the terminal (or in-progress) state of one plan step.
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusApplying  NodeStatus = "applying"
	StatusApplied   NodeStatus = "applied"
	StatusFailed    NodeStatus = "failed"
	StatusBlocked   NodeStatus = "blocked"   // an upstream dependency failed
	StatusSkipped   NodeStatus = "skipped"   // no-op, nothing to do
	StatusCancelled NodeStatus = "cancelled" // run was cancelled before this step started
)

// ApplyEvent represents a progress event during apply.
type ApplyEvent struct {
	Address  string
	Action   ir.Action
	Status   string // "started", "completed", "failed", "skipped", "blocked", "cancelled"
	Duration time.Duration
	Error    error
}

// ApplyCallback is called for each apply event if set.
type ApplyCallback func(event ApplyEvent)

// ResourceResult is the outcome of one plan step.
type ResourceResult struct {
	Address   string
	Action    ir.Action
	Status    NodeStatus
	Error     error
	Duration  time.Duration
	BlockedBy string // upstream address that failed, for blocked steps
}

// ApplyResult aggregates per-resource outcomes, in plan order.
type ApplyResult struct {
	Results []*ResourceResult
}

// Applied returns addresses whose step completed successfully.
func (r *ApplyResult) Applied() []string { return r.withStatus(StatusApplied) }

// Blocked returns addresses never attempted because an upstream step failed.
func (r *ApplyResult) Blocked() []string { return r.withStatus(StatusBlocked) }

// Skipped returns addresses whose step was a no-op.
func (r *ApplyResult) Skipped() []string { return r.withStatus(StatusSkipped) }

// Cancelled returns addresses never attempted because the run was cancelled.
func (r *ApplyResult) Cancelled() []string { return r.withStatus(StatusCancelled) }

// Failed maps each failed address to its error.
func (r *ApplyResult) Failed() map[string]error {
	out := make(map[string]error)
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out[res.Address] = res.Error
		}
	}
	return out
}

// Attempted reports whether any provider mutation was started.
func (r *ApplyResult) Attempted() bool {
	for _, res := range r.Results {
		switch res.Status {
		case StatusApplied, StatusFailed:
			if res.Action != ir.ActionNoOp {
				return true
			}
		}
	}
	return false
}

func (r *ApplyResult) withStatus(status NodeStatus) []string {
	var out []string
	for _, res := range r.Results {
		if res.Status == status {
			out = append(out, res.Address)
		}
	}
	return out
}

// ApplyPlan executes a plan against a copy of the given state and returns the
// updated state alongside per-resource outcomes. The input state is never
// mutated; callers persist the returned state even on error, since a failed
// run may still have changed real infrastructure.
func (e *Engine) ApplyPlan(ctx context.Context, plan *ir.Plan, state *ir.State) (*ir.State, *ApplyResult, error) {
	return e.ApplyPlanWithCallback(ctx, plan, state, nil)
}

// ApplyPlanWithCallback executes a plan with progress event callbacks.
//
// Steps run in parallel up to the engine's parallelism bound, each waiting
// for its dependencies. A failed step never aborts the run: its transitive
// dependents are marked blocked and every independent branch continues.
// Cancelling the context stops scheduling new steps; steps already running
// finish and their results are recorded.
func (e *Engine) ApplyPlanWithCallback(ctx context.Context, plan *ir.Plan, state *ir.State, callback ApplyCallback) (*ir.State, *ApplyResult, error) {
	newState, err := state.DeepCopy()
	if err != nil {
		return state, nil, fmt.Errorf("failed to copy state: %w", err)
	}

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	run := &applyRun{
		engine:    e,
		state:     newState,
		status:    make(map[string]NodeStatus, len(plan.Changes)),
		errors:    make(map[string]error),
		blockedBy: make(map[string]string),
		durations: make(map[string]time.Duration),
		deps:      buildApplyDeps(plan, newState),
		sem:       make(chan struct{}, parallelism),
		callback:  callback,
	}
	run.cond = sync.NewCond(&run.mu)
	for _, change := range plan.Changes {
		run.status[change.Address] = StatusPending
	}

	// Wake dependency waiters when the run is cancelled. The broadcast takes
	// the run lock so it cannot slip between a waiter's context check and its
	// cond.Wait.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			run.mu.Lock()
			run.cond.Broadcast()
			run.mu.Unlock()
		case <-watcherDone:
		}
	}()

	var wg sync.WaitGroup
	for _, change := range plan.Changes {
		wg.Add(1)
		go func(c *ir.ResourceChange) {
			defer wg.Done()
			run.runStep(ctx, c)
		}(change)
	}
	wg.Wait()

	result := run.collect(plan)

	if result.Attempted() {
		newState.Serial++
	}
	if len(plan.Outputs) > 0 {
		outputs, err := resolveReferences(plan.Outputs, newState)
		if err != nil {
			logging.Warn("could not resolve outputs", "error", err)
		} else {
			newState.Outputs = outputs.(map[string]any)
		}
	}

	if failed := result.Failed(); len(failed) > 0 {
		return newState, result, &PartialApplyError{
			Applied: result.Applied(),
			Failed:  failed,
			Blocked: result.Blocked(),
		}
	}
	if len(result.Cancelled()) > 0 {
		return newState, result, fmt.Errorf("apply cancelled: %w", ctx.Err())
	}
	return newState, result, nil
}

// applyRun holds the shared scheduling state for one apply. A single mutex
// guards both step statuses and the state document; provider calls happen
// outside the lock.
type applyRun struct {
	engine    *Engine
	state     *ir.State
	mu        sync.Mutex
	cond      *sync.Cond
	status    map[string]NodeStatus
	errors    map[string]error
	blockedBy map[string]string
	durations map[string]time.Duration
	deps      map[string][]string
	sem       chan struct{}
	callback  ApplyCallback
}

func (r *applyRun) emit(event ApplyEvent) {
	if r.callback != nil {
		r.callback(event)
	}
}

// runStep drives one plan step through its lifecycle: wait for dependencies,
// then execute the provider operation and record the outcome.
func (r *applyRun) runStep(ctx context.Context, change *ir.ResourceChange) {
	addr := change.Address

	// A no-op touches nothing, so it neither waits on upstream steps nor
	// gets blocked by their failures.
	if change.Action == ir.ActionNoOp {
		r.mu.Lock()
		r.finishLocked(addr, StatusSkipped, nil)
		r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "skipped"})
		return
	}

	r.mu.Lock()
	for {
		if ctx.Err() != nil {
			r.finishLocked(addr, StatusCancelled, nil)
			r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "cancelled"})
			return
		}
		ready, failedDep := r.depsReadyLocked(addr)
		if failedDep != "" {
			blockErr := fmt.Errorf("dependency %s did not complete", failedDep)
			r.blockedBy[addr] = failedDep
			r.finishLocked(addr, StatusBlocked, blockErr)
			r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "blocked", Error: blockErr})
			return
		}
		if ready {
			break
		}
		r.cond.Wait()
	}
	r.mu.Unlock()

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		r.mu.Lock()
		r.finishLocked(addr, StatusCancelled, nil)
		r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "cancelled"})
		return
	}
	defer func() { <-r.sem }()

	if ctx.Err() != nil {
		r.mu.Lock()
		r.finishLocked(addr, StatusCancelled, nil)
		r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "cancelled"})
		return
	}

	r.mu.Lock()
	r.status[addr] = StatusApplying
	r.mu.Unlock()
	r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "started"})

	start := time.Now()
	err := r.applyChange(ctx, change)
	duration := time.Since(start)

	r.mu.Lock()
	r.durations[addr] = duration
	if err != nil {
		r.finishLocked(addr, StatusFailed, err)
		r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "failed", Duration: duration, Error: err})
		return
	}
	r.finishLocked(addr, StatusApplied, nil)
	r.emit(ApplyEvent{Address: addr, Action: change.Action, Status: "completed", Duration: duration})
}

// finishLocked records a terminal status and wakes waiters. It releases the
// run lock so events can be emitted without holding it.
func (r *applyRun) finishLocked(addr string, status NodeStatus, err error) {
	r.status[addr] = status
	if err != nil {
		r.errors[addr] = err
	}
	r.mu.Unlock()
	r.cond.Broadcast()
}

// depsReadyLocked reports whether every dependency of addr reached a
// successful terminal status. A failed, blocked, or cancelled dependency is
// returned so the caller can mark addr blocked.
func (r *applyRun) depsReadyLocked(addr string) (ready bool, failedDep string) {
	for _, dep := range r.deps[addr] {
		switch r.status[dep] {
		case StatusApplied, StatusSkipped:
		case StatusFailed, StatusBlocked, StatusCancelled:
			return false, dep
		default:
			return false, ""
		}
	}
	return true, ""
}

func (r *applyRun) collect(plan *ir.Plan) *ApplyResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &ApplyResult{}
	for _, change := range plan.Changes {
		result.Results = append(result.Results, &ResourceResult{
			Address:   change.Address,
			Action:    change.Action,
			Status:    r.status[change.Address],
			Error:     r.errors[change.Address],
			Duration:  r.durations[change.Address],
			BlockedBy: r.blockedBy[change.Address],
		})
	}
	return result
}

// applyChange executes the provider operation for one step and updates the
// state under the run lock. The operation itself runs on a context detached
// from cancellation so an in-flight call always finishes; retries between
// attempts still stop once the run is cancelled.
func (r *applyRun) applyChange(ctx context.Context, change *ir.ResourceChange) error {
	addr := change.Address
	logging.Debug("applying change", "address", addr, "action", change.Action)

	res := change.Desired
	if res == nil {
		res = change.Prior
	}
	if res == nil {
		return fmt.Errorf("change for %s carries no resource", addr)
	}

	prov, err := r.engine.providers.Get(res.Provider)
	if err != nil {
		return err
	}

	timeout := DefaultTimeout
	if change.Desired != nil && change.Desired.Timeout != "" {
		d, err := time.ParseDuration(change.Desired.Timeout)
		if err != nil {
			logging.Warn("invalid timeout, using default", "address", addr, "timeout", change.Desired.Timeout)
		} else {
			timeout = d
		}
	}
	opCtx, cancel := WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	policy := r.engine.Retry
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	switch change.Action {
	case ir.ActionCreate:
		return r.create(ctx, opCtx, policy, prov, change)
	case ir.ActionUpdate:
		return r.update(ctx, opCtx, policy, prov, change)
	case ir.ActionReplace:
		return r.replace(ctx, opCtx, policy, prov, change)
	case ir.ActionDelete:
		return r.delete(ctx, opCtx, policy, prov, change)
	default:
		return fmt.Errorf("unexpected action %s for %s", change.Action, addr)
	}
}

func (r *applyRun) create(ctx, opCtx context.Context, policy *RetryPolicy, prov provider.Provider, change *ir.ResourceChange) error {
	res := change.Desired
	attrs, err := r.resolveProperties(res)
	if err != nil {
		return err
	}

	var resp *provider.CreateResponse
	err = RetryWithBackoff(ctx, policy, func() error {
		var opErr error
		resp, opErr = prov.Create(opCtx, &provider.CreateRequest{
			Kind:       res.Type,
			Name:       res.Name,
			Attributes: attrs,
		})
		return opErr
	}, ShouldRetry)
	if err != nil {
		return fmt.Errorf("create failed for %s: %w", change.Address, err)
	}

	r.storeResult(res, resp.ID, resp.Outputs)
	return nil
}

func (r *applyRun) update(ctx, opCtx context.Context, policy *RetryPolicy, prov provider.Provider, change *ir.ResourceChange) error {
	res := change.Desired
	attrs, err := r.resolveProperties(res)
	if err != nil {
		return err
	}

	r.mu.Lock()
	prior, ok := r.state.Resource(change.Address)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no state entry for %s", change.Address)
	}

	var resp *provider.UpdateResponse
	err = RetryWithBackoff(ctx, policy, func() error {
		var opErr error
		resp, opErr = prov.Update(opCtx, &provider.UpdateRequest{
			Kind:       res.Type,
			Name:       res.Name,
			ID:         prior.ID,
			Prior:      ir.NormalizeProperties(prior.Inputs),
			Attributes: attrs,
		})
		return opErr
	}, ShouldRetry)
	if err != nil {
		return fmt.Errorf("update failed for %s: %w", change.Address, err)
	}

	r.storeResult(res, prior.ID, resp.Outputs)
	return nil
}

// replace deletes the old object and creates its successor. With
// createBeforeDestroy the order flips: the successor is created first and
// the old object torn down after.
func (r *applyRun) replace(ctx, opCtx context.Context, policy *RetryPolicy, prov provider.Provider, change *ir.ResourceChange) error {
	res := change.Desired

	r.mu.Lock()
	prior, ok := r.state.Resource(change.Address)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no state entry for %s", change.Address)
	}

	attrs, err := r.resolveProperties(res)
	if err != nil {
		return err
	}

	deleteOld := func() error {
		return RetryWithBackoff(ctx, policy, func() error {
			err := prov.Delete(opCtx, &provider.DeleteRequest{
				Kind:       prior.Type,
				Name:       prior.Name,
				ID:         prior.ID,
				Attributes: prior.Inputs,
			})
			if provider.IsNotFound(err) {
				return nil
			}
			return err
		}, ShouldRetry)
	}
	createNew := func() (*provider.CreateResponse, error) {
		var resp *provider.CreateResponse
		err := RetryWithBackoff(ctx, policy, func() error {
			var opErr error
			resp, opErr = prov.Create(opCtx, &provider.CreateRequest{
				Kind:       res.Type,
				Name:       res.Name,
				Attributes: attrs,
			})
			return opErr
		}, ShouldRetry)
		return resp, err
	}

	if res.Lifecycle != nil && res.Lifecycle.CreateBeforeDestroy {
		resp, err := createNew()
		if err != nil {
			return fmt.Errorf("replace (create) failed for %s: %w", change.Address, err)
		}
		r.storeResult(res, resp.ID, resp.Outputs)
		if err := deleteOld(); err != nil {
			return fmt.Errorf("replace (delete of old object) failed for %s: %w", change.Address, err)
		}
		return nil
	}

	if err := deleteOld(); err != nil {
		return fmt.Errorf("replace (delete) failed for %s: %w", change.Address, err)
	}
	r.mu.Lock()
	r.state.RemoveResource(change.Address)
	r.mu.Unlock()

	resp, err := createNew()
	if err != nil {
		return fmt.Errorf("replace (create) failed for %s: %w", change.Address, err)
	}
	r.storeResult(res, resp.ID, resp.Outputs)
	return nil
}

func (r *applyRun) delete(ctx, opCtx context.Context, policy *RetryPolicy, prov provider.Provider, change *ir.ResourceChange) error {
	r.mu.Lock()
	prior, ok := r.state.Resource(change.Address)
	r.mu.Unlock()
	if !ok {
		// nothing recorded, nothing to delete
		return nil
	}

	err := RetryWithBackoff(ctx, policy, func() error {
		err := prov.Delete(opCtx, &provider.DeleteRequest{
			Kind:       prior.Type,
			Name:       prior.Name,
			ID:         prior.ID,
			Attributes: prior.Inputs,
		})
		if provider.IsNotFound(err) {
			return nil
		}
		return err
	}, ShouldRetry)
	if err != nil {
		return fmt.Errorf("delete failed for %s: %w", change.Address, err)
	}

	r.mu.Lock()
	r.state.RemoveResource(change.Address)
	r.mu.Unlock()
	return nil
}

// resolveProperties resolves every reference in the resource's declared
// properties against the current state.
func (r *applyRun) resolveProperties(res *ir.Resource) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved, err := resolveReferences(ir.NormalizeProperties(res.Properties), r.state)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return map[string]any{}, nil
	}
	return resolved.(map[string]any), nil
}

// storeResult writes the post-apply snapshot for a resource into the state.
// Inputs are recorded as declared (references unresolved) so future diffs
// compare declaration against declaration.
func (r *applyRun) storeResult(res *ir.Resource, id string, outputs map[string]any) {
	if outputs == nil {
		outputs = map[string]any{}
	}
	if _, ok := outputs["id"]; !ok && id != "" {
		outputs["id"] = id
	}

	inputs := ir.NormalizeProperties(res.Properties)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.SetResource(&ir.ResourceState{
		Type:         res.Type,
		Name:         res.Name,
		Provider:     res.Provider,
		ID:           id,
		Inputs:       inputs,
		InputsHash:   HashInputs(inputs),
		Outputs:      outputs,
		Dependencies: dependenciesOf(res),
		LastApplied:  time.Now().UTC().Format(time.RFC3339),
	})
}

// buildApplyDeps computes, per plan step, the other steps it must wait for.
// Create/update steps wait for the steps of resources they reference;
// deletions wait for the deletions of their dependents, recorded in state.
func buildApplyDeps(plan *ir.Plan, state *ir.State) map[string][]string {
	inPlan := make(map[string]*ir.ResourceChange, len(plan.Changes))
	for _, c := range plan.Changes {
		inPlan[c.Address] = c
	}

	deps := make(map[string][]string, len(plan.Changes))
	for _, c := range plan.Changes {
		if c.Action != ir.ActionDelete {
			if c.Desired == nil {
				continue
			}
			for _, dep := range dependenciesOf(c.Desired) {
				if other, ok := inPlan[dep]; ok && other.Action != ir.ActionDelete {
					deps[c.Address] = append(deps[c.Address], dep)
				}
			}
		}
	}

	// A deletion waits on the deletions of everything that depends on it.
	for _, rs := range state.Resources {
		c, ok := inPlan[rs.Addr()]
		if !ok || c.Action != ir.ActionDelete {
			continue
		}
		for _, dep := range rs.Dependencies {
			if other, ok := inPlan[dep]; ok && other.Action == ir.ActionDelete {
				deps[dep] = append(deps[dep], rs.Addr())
			}
		}
	}
	return deps
}

// dependenciesOf returns the sorted addresses a resource depends on, from
// both explicit dependsOn entries and attribute references.
func dependenciesOf(res *ir.Resource) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		if addr != "" && !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	for _, dep := range res.DependsOn {
		add(dep)
	}
	for _, ref := range extractRefs(res.Properties) {
		if depType, depName, _, ok := ParseRef(ref); ok {
			add(depType + "." + depName)
		}
	}
	sort.Strings(out)
	return out
}

// resolveReferences replaces every ref://type/name/attribute value with the
// referenced attribute from state, preferring provider outputs over declared
// inputs. An unresolvable reference is an error rather than a literal
// leaking into a provider call.
func resolveReferences(val any, state *ir.State) (any, error) {
	switch v := val.(type) {
	case string:
		refType, refName, attr, ok := ParseRef(v)
		if !ok {
			return v, nil
		}
		rs, found := state.Resource(refType + "." + refName)
		if !found {
			return nil, fmt.Errorf("cannot resolve %s: resource %s.%s not in state", v, refType, refName)
		}
		if out, ok := rs.Outputs[attr]; ok {
			return out, nil
		}
		if in, ok := rs.Inputs[attr]; ok {
			return in, nil
		}
		return nil, fmt.Errorf("cannot resolve %s: resource %s.%s has no attribute %q", v, refType, refName, attr)
	case map[string]any:
		newMap := make(map[string]any, len(v))
		for k, val := range v {
			resolved, err := resolveReferences(val, state)
			if err != nil {
				return nil, err
			}
			newMap[k] = resolved
		}
		return newMap, nil
	case []any:
		newSlice := make([]any, len(v))
		for i, val := range v {
			resolved, err := resolveReferences(val, state)
			if err != nil {
				return nil, err
			}
			newSlice[i] = resolved
		}
		return newSlice, nil
	default:
		return v, nil
	}
}
