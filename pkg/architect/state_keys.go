package architect

// State data keys for the architect's state machine.
const (
	StateKeyProjectScope  = "project_scope"  // factsheet.ProjectScope - discovery result
	StateKeyProposedURLs  = "proposed_urls"  // int - URLs suggested by the model
	StateKeyLiveURLs      = "live_urls"      // int - URLs that survived unit testing
	StateKeyExcludedURLs  = "excluded_urls"  // []string - URLs dropped by unit testing
	StateKeyFailedState   = "failed_state"   // string - state where a fatal error stopped the run
	StateKeyFailureReason = "failure_reason" // string - the fatal error text
)
