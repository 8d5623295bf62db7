package agentfactory

// Close tears down every agent this Factory has built so far (one call per
// distinct name, regardless of how many separate RunAgent/Build calls
// reached it). A caller that only ever builds a single root agent can close
// that Agent directly instead; Factory.Close exists for callers — a DSL
// workflow run, in particular — that may invoke RunAgent against several
// independent agent names over one workload's lifetime and want a single
// teardown call at the end.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, a := range f.built {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

// Close tears down the root agent recursively per spec.md §4.6: "close
// sub-agents depth-first; for each agent-tool, close its wrapped agent
// first, then the tool; await any close() the tool exposes."
//
// Grounded on original_source/.../workloads/dsl_agent_factory.py's
// _close_agent_recursive: depth-first sub_agents, then agent_tools
// (wrapped agent before its tool), collecting every error encountered
// instead of stopping at the first. Unlike that reference's generic
// tool.close(), a boundTool here never owns a closeable resource of its
// own — an MCP-backed Handle's transport lifecycle belongs to the shared
// runtime/mcp.Manager the Tool Provider was constructed with, not to any
// individual resolved Handle — so there is nothing left to await beyond
// the agent tree itself.
func (a *Agent) Close() error {
	var errs []error
	for _, sub := range a.subAgents {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, wrapped := range a.agentTools {
		if err := wrapped.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msg := "agentfactory: multiple close errors: "
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return errJoined(msg)
}

type errJoined string

func (e errJoined) Error() string { return string(e) }
