package architect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogippity/pkg/agent"
	"autogippity/pkg/agent/llm"
	"autogippity/pkg/agent/llmerrors"
	"autogippity/pkg/capabilities"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/probe"
	"autogippity/pkg/proto"
)

const (
	todoScope   = `{"is_crud_required":true,"is_user_login_and_logout":false,"is_external_urls_required":false}`
	cryptoScope = `{"is_crud_required":false,"is_user_login_and_logout":true,"is_external_urls_required":true}`
	binanceURL  = "https://api.binance.com/api/v3/exchangeInfo"
	badURL      = "https://api.bad.example/x"
)

// statusProber answers from a fixed table and remembers the probe order.
type statusProber struct {
	status map[string]int
	seen   []string
	mu     sync.Mutex
}

func (p *statusProber) Probe(_ context.Context, url string) probe.Result {
	p.mu.Lock()
	p.seen = append(p.seen, url)
	p.mu.Unlock()

	res := probe.Result{URL: url, Status: p.status[url]}
	if res.Status != http.StatusOK {
		res.Err = probe.ErrNotLive
	}
	return res
}

// messageLog collects notifier output.
type messageLog struct {
	msgs []proto.AgentMessage
	mu   sync.Mutex
}

func (l *messageLog) Notify(m proto.AgentMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
}

func (l *messageLog) ofKind(k proto.MessageKind) []proto.AgentMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []proto.AgentMessage
	for _, m := range l.msgs {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

// isCapability reports whether a request carries the given capability's prompt.
func isCapability(req llm.CompletionRequest, c capabilities.Capability) bool {
	return len(req.Messages) == 1 && strings.HasPrefix(req.Messages[0].Content, "FUNCTION: "+c.Instruction)
}

func TestNewAgentAttributes(t *testing.T) {
	a := New(agent.NewMockTextClient(), WithID("architect-test"))

	assert.Equal(t, "architect-test", a.GetID())
	assert.Equal(t, "Gathers information and design solutions for website development", a.Objective())
	assert.Equal(t, "Solutions Architect", a.Position())
	assert.Equal(t, proto.StateDiscovery, a.State())
	assert.Empty(t, a.Memory())
	assert.Empty(t, a.Transitions())

	var _ agent.Agent = a
}

func TestExecuteTodoApp(t *testing.T) {
	client := agent.NewMockTextClient(todoScope)
	prober := &statusProber{}
	fs := factsheet.New("I need a simple TODO app")

	a := New(client, WithProber(prober))
	require.NoError(t, a.Execute(context.Background(), fs))

	require.NotNil(t, fs.ProjectScope)
	assert.Equal(t, factsheet.ProjectScope{IsCRUDRequired: true}, *fs.ProjectScope)
	assert.Nil(t, fs.ExternalURLs)
	assert.False(t, fs.HasExternalURLs())
	assert.Equal(t, proto.StateFinished, a.State())

	assert.Equal(t, 1, client.Calls(), "no URL capability request")
	assert.Empty(t, prober.seen)

	transitions := a.Transitions()
	require.Len(t, transitions, 1)
	assert.Equal(t, proto.StateDiscovery, transitions[0].FromState)
	assert.Equal(t, proto.StateFinished, transitions[0].ToState)
}

func TestExecuteCryptoPrices(t *testing.T) {
	client := agent.NewMockLLMClientFunc(func(req llm.CompletionRequest) (llm.CompletionResponse, error) {
		switch {
		case isCapability(req, capabilities.ProjectScope()):
			return llm.CompletionResponse{Content: cryptoScope}, nil
		case isCapability(req, capabilities.SiteURLs()):
			return llm.CompletionResponse{Content: `["` + binanceURL + `","` + badURL + `"]`}, nil
		}
		return llm.CompletionResponse{}, errors.New("unexpected prompt")
	})
	prober := &statusProber{status: map[string]int{binanceURL: 200, badURL: 500}}
	log := &messageLog{}
	fs := factsheet.New("Build a website that shows Crypto Price Data from Binance and Kraken")

	a := New(client, WithProber(prober), WithNotifier(log))
	require.NoError(t, a.Execute(context.Background(), fs))

	assert.Equal(t, []string{binanceURL}, fs.ExternalURLs)
	assert.True(t, fs.ProjectScope.IsExternalURLsRequired)
	assert.Equal(t, proto.StateFinished, a.State())
	assert.Equal(t, []string{binanceURL, badURL}, prober.seen)

	var path []proto.State
	for _, tr := range a.Transitions() {
		path = append(path, tr.ToState)
	}
	assert.Equal(t, []proto.State{proto.StateUnitTesting, proto.StateFinished}, path)

	calls := log.ofKind(proto.MessageAICall)
	require.Len(t, calls, 2)
	assert.Equal(t, capabilities.NameProjectScope, calls[0].Statement)
	assert.Equal(t, capabilities.NameSiteURLs, calls[1].Statement)
	assert.Equal(t, "Solutions Architect", calls[0].Position)

	tests := log.ofKind(proto.MessageUnitTest)
	require.Len(t, tests, 2)
	assert.Equal(t, "Testing URL Endpoint: "+binanceURL, tests[0].Statement)

	issues := log.ofKind(proto.MessageIssue)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Statement, badURL)

	excluded, ok := agent.GetTyped[[]string](a.BaseStateMachine, StateKeyExcludedURLs)
	require.True(t, ok)
	assert.Equal(t, []string{badURL}, excluded)
}

func TestUnitTestingPreservesOrder(t *testing.T) {
	urls := []string{"https://u1.example", "https://u2.example", "https://u3.example", "https://u4.example", "https://u5.example"}
	prober := &statusProber{status: map[string]int{urls[0]: 200, urls[1]: 404, urls[2]: 200, urls[3]: 500, urls[4]: 200}}

	for _, concurrency := range []int{1, 4} {
		fs := factsheet.New("desc")
		fs.SetExternalURLs(urls)

		a := New(agent.NewMockTextClient(), WithProber(prober), WithProbeConcurrency(concurrency))
		require.NoError(t, a.UpdateState(proto.StateUnitTesting))
		require.NoError(t, a.Execute(context.Background(), fs))

		assert.Equal(t, []string{urls[0], urls[2], urls[4]}, fs.ExternalURLs)
		assert.Equal(t, proto.StateFinished, a.State())
	}
}

func TestUnitTestingIdempotent(t *testing.T) {
	urls := []string{"https://a.example", "https://b.example"}
	prober := &statusProber{status: map[string]int{urls[0]: 200, urls[1]: 200}}
	fs := factsheet.New("desc")
	fs.SetExternalURLs(urls)

	for range 2 {
		a := New(agent.NewMockTextClient(), WithProber(prober))
		require.NoError(t, a.UpdateState(proto.StateUnitTesting))
		require.NoError(t, a.Execute(context.Background(), fs))
		assert.Equal(t, urls, fs.ExternalURLs)
	}
}

func TestUnitTestingAllDeadIsNotAnError(t *testing.T) {
	fs := factsheet.New("desc")
	fs.SetExternalURLs([]string{"https://gone.example"})

	a := New(agent.NewMockTextClient(), WithProber(&statusProber{}))
	require.NoError(t, a.UpdateState(proto.StateUnitTesting))
	require.NoError(t, a.Execute(context.Background(), fs))

	assert.NotNil(t, fs.ExternalURLs)
	assert.Empty(t, fs.ExternalURLs)
}

func TestUnitTestingWithRealProber(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer live.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	fs := factsheet.New("desc")
	fs.SetExternalURLs([]string{slow.URL, live.URL})

	a := New(agent.NewMockTextClient(), WithProber(probe.New(100*time.Millisecond)))
	require.NoError(t, a.UpdateState(proto.StateUnitTesting))
	require.NoError(t, a.Execute(context.Background(), fs))
	assert.Equal(t, []string{live.URL}, fs.ExternalURLs)
}

func TestDiscoveryDecodeFailure(t *testing.T) {
	client := agent.NewMockTextClient("not json")
	fs := factsheet.New("I need a simple TODO app")

	a := New(client)
	err := a.Execute(context.Background(), fs)
	require.Error(t, err)
	assert.True(t, agent.IsDecodeError(err))

	assert.Nil(t, fs.ProjectScope)
	assert.Equal(t, proto.StateDiscovery, a.State())
	assert.Empty(t, a.Transitions())

	failed, ok := a.GetStateValue(StateKeyFailedState)
	require.True(t, ok)
	assert.Equal(t, "DISCOVERY", failed)
}

func TestDiscoveryRejectsEmptyScope(t *testing.T) {
	client := agent.NewMockTextClient(`{"is_crud_required":false,"is_user_login_and_logout":false,"is_external_urls_required":false}`)
	fs := factsheet.New("nothing at all")

	err := New(client).Execute(context.Background(), fs)
	require.ErrorIs(t, err, factsheet.ErrScopeEmpty)
	assert.Nil(t, fs.ProjectScope)
}

func TestDiscoveryRejectsIncompleteScope(t *testing.T) {
	client := agent.NewMockTextClient(`{"is_crud_required":true,"is_user_login_and_logout":false}`)
	fs := factsheet.New("crypto prices")

	a := New(client)
	err := a.Execute(context.Background(), fs)
	require.ErrorIs(t, err, factsheet.ErrScopeIncomplete)
	assert.True(t, agent.IsDecodeError(err))
	assert.Nil(t, fs.ProjectScope)
	assert.Equal(t, 1, client.Calls(), "no URL request on an incomplete scope")
	assert.Equal(t, proto.StateDiscovery, a.State())
}

func TestDiscoveryTransportFailureAfterRetry(t *testing.T) {
	blip := llmerrors.NewError(llmerrors.ErrorTypeTransient, "connection reset")
	client := agent.NewMockLLMClient(nil, []error{blip, blip})
	fs := factsheet.New("desc")

	a := New(client)
	err := a.Execute(context.Background(), fs)
	require.ErrorIs(t, err, agent.ErrTaskFailed)
	assert.Equal(t, 2, client.Calls())
	assert.Equal(t, proto.StateDiscovery, a.State())
}

func TestURLRequestFailureKeepsScope(t *testing.T) {
	client := agent.NewMockTextClient(cryptoScope, "here are some urls")
	fs := factsheet.New("crypto prices")

	a := New(client)
	err := a.Execute(context.Background(), fs)
	require.Error(t, err)
	assert.True(t, agent.IsDecodeError(err))

	require.NotNil(t, fs.ProjectScope, "scope written before the failure persists")
	assert.Nil(t, fs.ExternalURLs)
	assert.Equal(t, proto.StateDiscovery, a.State())
}

func TestWorkingStateFallsThroughToFinished(t *testing.T) {
	client := agent.NewMockTextClient()
	a := New(client)
	require.NoError(t, a.UpdateState(proto.StateWorking))

	require.NoError(t, a.Execute(context.Background(), factsheet.New("desc")))
	assert.Equal(t, proto.StateFinished, a.State())
	assert.Zero(t, client.Calls())
}

func TestExecuteWhenFinishedIsNoop(t *testing.T) {
	client := agent.NewMockTextClient(todoScope)
	a := New(client)
	fs := factsheet.New("I need a simple TODO app")

	require.NoError(t, a.Execute(context.Background(), fs))
	require.NoError(t, a.Execute(context.Background(), fs))
	assert.Equal(t, 1, client.Calls())
}

func TestExecuteNilFactSheet(t *testing.T) {
	assert.Error(t, New(agent.NewMockTextClient()).Execute(context.Background(), nil))
}

func TestExecutePersistsTransitions(t *testing.T) {
	store := &snapshotStore{}
	a := New(agent.NewMockTextClient(todoScope), WithStateStore(store), WithID("architect-persist"))
	require.NoError(t, a.Execute(context.Background(), factsheet.New("todo")))

	require.NotNil(t, store.last)
	assert.Equal(t, "architect-persist", store.id)
	assert.Equal(t, proto.StateFinished, store.last.CurrentState)
	require.Len(t, store.last.Transitions, 1)
}

func TestExecutePersistsFailure(t *testing.T) {
	store := &snapshotStore{}
	a := New(agent.NewMockTextClient("not json"), WithStateStore(store), WithID("architect-failed"))
	require.Error(t, a.Execute(context.Background(), factsheet.New("todo")))

	require.NotNil(t, store.last, "failure is saved even though no transition happened")
	assert.Equal(t, proto.StateDiscovery, store.last.CurrentState)
	assert.Equal(t, "DISCOVERY", store.last.StateData[StateKeyFailedState])
	assert.NotEmpty(t, store.last.StateData[StateKeyFailureReason])
	assert.Empty(t, store.last.Transitions)
}

func TestResumeFromPersistedState(t *testing.T) {
	store := newJSONStore()
	fs := factsheet.New("Crypto Price Data from Binance")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := New(agent.NewMockTextClient(cryptoScope, `["`+binanceURL+`"]`),
		WithStateStore(store), WithID("architect-resume"),
		WithProber(cancellingProber{cancel: cancel}))
	require.ErrorIs(t, first.Execute(ctx, fs), context.Canceled)
	require.Equal(t, proto.StateUnitTesting, first.State())

	client := agent.NewMockTextClient()
	second := New(client, WithStateStore(store), WithID("architect-resume"),
		WithProber(&statusProber{status: map[string]int{binanceURL: http.StatusOK}}))
	require.NoError(t, second.Initialize(context.Background()))
	assert.Equal(t, proto.StateUnitTesting, second.State())

	require.NoError(t, second.Execute(context.Background(), fs))
	assert.Equal(t, proto.StateFinished, second.State())
	assert.Equal(t, 0, client.Calls(), "discovery is not repeated")
	assert.Equal(t, []string{binanceURL}, fs.ExternalURLs)
	require.Len(t, second.Transitions(), 2)
	assert.Equal(t, proto.StateDiscovery, second.Transitions()[0].FromState)
}

// cancellingProber cancels the run while probing, so the next transition fails.
type cancellingProber struct {
	cancel context.CancelFunc
}

func (p cancellingProber) Probe(_ context.Context, url string) probe.Result {
	p.cancel()
	return probe.Result{URL: url, Status: http.StatusOK}
}

type jsonStore struct {
	data map[string][]byte
}

func newJSONStore() *jsonStore {
	return &jsonStore{data: make(map[string][]byte)}
}

func (s *jsonStore) Save(id string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[id] = b
	return nil
}

func (s *jsonStore) Load(id string, dest any) error {
	b, ok := s.data[id]
	if !ok {
		return agent.ErrStateNotFound
	}
	return json.Unmarshal(b, dest)
}

type snapshotStore struct {
	last *agent.Snapshot
	id   string
}

func (s *snapshotStore) Save(id string, value any) error {
	snap, ok := value.(agent.Snapshot)
	if !ok {
		return errors.New("unexpected value")
	}
	s.id = id
	s.last = &snap
	return nil
}

func (s *snapshotStore) Load(string, any) error {
	return agent.ErrStateNotFound
}
