package architect

import (
	"context"

	"autogippity/pkg/agent"
	"autogippity/pkg/capabilities"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/proto"
)

// handleDiscovery asks for the project scope and, when the build needs third
// party data, for candidate external URLs.
func (a *Agent) handleDiscovery(ctx context.Context, fs *factsheet.FactSheet) (proto.State, error) {
	scope, err := agent.RequestTaskDecoded[factsheet.ProjectScope](ctx, a.tasks, agent.Task{
		AgentLabel: a.Position(),
		Capability: capabilities.ProjectScope(),
		Input:      fs.ProjectDescription,
	})
	if err != nil {
		return proto.StateDiscovery, err
	}
	fs.SetProjectScope(scope)
	agent.SetTyped(a.BaseStateMachine, StateKeyProjectScope, scope)
	a.logger.Info("project scope: crud=%t login=%t external=%t",
		scope.IsCRUDRequired, scope.IsUserLoginAndLogout, scope.IsExternalURLsRequired)

	if !scope.IsExternalURLsRequired {
		return proto.StateFinished, nil
	}

	urls, err := agent.RequestTaskDecoded[[]string](ctx, a.tasks, agent.Task{
		AgentLabel: a.Position(),
		Capability: capabilities.SiteURLs(),
		Input:      fs.ProjectDescription,
	})
	if err != nil {
		return proto.StateDiscovery, err
	}
	fs.SetExternalURLs(urls)
	agent.SetTyped(a.BaseStateMachine, StateKeyProposedURLs, len(urls))

	return proto.StateUnitTesting, nil
}
