package architect

import (
	"context"
	"fmt"

	"autogippity/pkg/agent"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/probe"
	"autogippity/pkg/proto"
)

// handleUnitTesting probes every external URL and keeps only those answering
// 200, in their original order. Probe failures are never fatal.
func (a *Agent) handleUnitTesting(ctx context.Context, fs *factsheet.FactSheet) (proto.State, error) {
	urls := fs.ExternalURLs
	live, results := probe.FilterLive(ctx, announcingProber{a}, urls, a.probeConcurrency)

	excluded := make([]string, 0, len(results)-len(live))
	for _, r := range results {
		if r.Live() {
			continue
		}
		excluded = append(excluded, r.URL)
		a.notifier.Notify(proto.AgentMessage{
			Position:  a.Position(),
			Statement: fmt.Sprintf("Excluding URL Endpoint: %s (%v)", r.URL, r.Err),
			Kind:      proto.MessageIssue,
		})
	}

	fs.SetExternalURLs(live)
	agent.SetTyped(a.BaseStateMachine, StateKeyLiveURLs, len(live))
	agent.SetTyped(a.BaseStateMachine, StateKeyExcludedURLs, excluded)
	a.logger.Info("unit testing kept %d of %d external URLs", len(live), len(urls))

	return proto.StateFinished, nil
}

// announcingProber reports each probe to the operator before issuing it.
type announcingProber struct {
	a *Agent
}

func (p announcingProber) Probe(ctx context.Context, url string) probe.Result {
	p.a.notifier.Notify(proto.AgentMessage{
		Position:  p.a.Position(),
		Statement: "Testing URL Endpoint: " + url,
		Kind:      proto.MessageUnitTest,
	})
	return p.a.prober.Probe(ctx, url)
}
