package trace

// Summary aggregates statistics over a run's trace.
type Summary struct {
	TotalEvents int `json:"total_events"`
	// AgentRuns counts agent_start events (one per agent invocation).
	AgentRuns int `json:"agent_runs"`
	// DistinctAgents counts unique agent names observed.
	DistinctAgents int `json:"distinct_agents"`
	ToolCalls      int `json:"tool_calls"`
	Delegations    int `json:"delegations"`
	Errors         int `json:"errors"`
	// TotalTime is the wall-clock duration in seconds from the top-level
	// agent_start to the top-level agent_end.
	TotalTime float64 `json:"total_time"`
	// AverageToolTime is the mean elapsed seconds across tool results.
	AverageToolTime float64 `json:"average_tool_time"`
	// SuccessRate is the fraction of tool results without an error.
	SuccessRate float64 `json:"success_rate"`
}

// Summary computes aggregate statistics for the recorded events.
func (l *Ledger) Summary() Summary {
	events := l.Trace()

	s := Summary{TotalEvents: len(events), SuccessRate: 1.0}
	if len(events) == 0 {
		return s
	}

	agents := map[string]bool{}
	var (
		topStart, topEnd     float64
		toolResults          int
		toolFailures         int
		toolElapsed          float64
		toolElapsedRecording int
	)

	for _, ev := range events {
		agents[ev.AgentName] = true

		switch ev.Type {
		case EventAgentStart:
			s.AgentRuns++
			if ev.DelegationDepth == 0 && topStart == 0 {
				topStart = ev.Timestamp
			}
		case EventAgentEnd:
			if ev.DelegationDepth == 0 {
				topEnd = ev.Timestamp
			}
		case EventToolCall:
			s.ToolCalls++
		case EventToolResult:
			toolResults++
			if ev.Error != "" {
				toolFailures++
			}
			if ev.Elapsed > 0 {
				toolElapsed += ev.Elapsed
				toolElapsedRecording++
			}
		case EventAgentDelegate:
			s.Delegations++
		case EventError:
			s.Errors++
		}
	}

	s.DistinctAgents = len(agents)
	if topEnd > topStart {
		s.TotalTime = topEnd - topStart
	}
	if toolElapsedRecording > 0 {
		s.AverageToolTime = toolElapsed / float64(toolElapsedRecording)
	}
	if toolResults > 0 {
		s.SuccessRate = float64(toolResults-toolFailures) / float64(toolResults)
	}

	return s
}
