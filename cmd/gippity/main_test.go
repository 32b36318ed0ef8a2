package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogippity/pkg/agent"
	"autogippity/pkg/agent/llm"
	"autogippity/pkg/artifacts"
	"autogippity/pkg/capabilities"
	"autogippity/pkg/config"
	"autogippity/pkg/eventlog"
	"autogippity/pkg/persistence"
	"autogippity/pkg/probe"
)

type fixedProber map[string]int

func (p fixedProber) Probe(_ context.Context, url string) probe.Result {
	res := probe.Result{URL: url, Status: p[url]}
	if res.Status != http.StatusOK {
		res.Err = probe.ErrNotLive
	}
	return res
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(dir, "runs.db")
	cfg.Paths.FactSheet = filepath.Join(dir, "factsheet.json")
	cfg.Paths.EventLogDir = filepath.Join(dir, "logs")
	return cfg
}

func testDeps(client llm.LLMClient, prober probe.Prober, in string) (runDeps, *bytes.Buffer) {
	var out bytes.Buffer
	return runDeps{
		newClient: func(*config.Config) (llm.LLMClient, error) { return client, nil },
		prober:    prober,
		in:        strings.NewReader(in),
		out:       &out,
		errOut:    &bytes.Buffer{},
	}, &out
}

func TestExecuteRunTodo(t *testing.T) {
	cfg := testConfig(t)
	client := agent.NewMockTextClient(`{"is_crud_required":true,"is_user_login_and_logout":false,"is_external_urls_required":false}`)
	deps, out := testDeps(client, fixedProber{}, "")

	require.NoError(t, executeRun(context.Background(), cfg, deps, "I need a simple TODO app", &runOptions{}))
	assert.Contains(t, out.String(), "Agent: Solutions Architect: print_project_scope")
	assert.Contains(t, out.String(), `"is_crud_required": true`)
	assert.Contains(t, out.String(), `"external_urls": null`)

	store, err := persistence.Open(cfg.Storage.DBPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, persistence.RunStatusFinished, runs[0].Status)
	assert.Equal(t, "I need a simple TODO app", runs[0].Description)

	saved, err := artifacts.New(cfg.Paths).LoadFactSheet()
	require.NoError(t, err)
	assert.True(t, saved.ProjectScope.IsCRUDRequired)

	events, err := eventlog.ReadRun(cfg.Paths.EventLogDir, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "print_project_scope", events[0].Statement)
}

func TestExecuteRunFiltersURLs(t *testing.T) {
	cfg := testConfig(t)
	good := "https://api.binance.com/api/v3/exchangeInfo"
	bad := "https://api.bad.example/x"
	client := agent.NewMockLLMClientFunc(func(req llm.CompletionRequest) (llm.CompletionResponse, error) {
		if strings.HasPrefix(req.Messages[0].Content, "FUNCTION: "+capabilities.SiteURLs().Instruction) {
			return llm.CompletionResponse{Content: `["` + good + `","` + bad + `"]`}, nil
		}
		return llm.CompletionResponse{Content: `{"is_crud_required":false,"is_user_login_and_logout":false,"is_external_urls_required":true}`}, nil
	})
	deps, out := testDeps(client, fixedProber{good: 200, bad: 500}, "")

	require.NoError(t, executeRun(context.Background(), cfg, deps, "Crypto Price Data from Binance and Kraken", &runOptions{noHistory: true}))
	assert.Contains(t, out.String(), "Testing URL Endpoint: "+bad)
	assert.Contains(t, out.String(), good)

	saved, err := artifacts.New(cfg.Paths).LoadFactSheet()
	require.NoError(t, err)
	assert.Equal(t, []string{good}, saved.ExternalURLs)

	_, err = os.Stat(cfg.Storage.DBPath)
	assert.True(t, os.IsNotExist(err), "no history database without history")
	_, err = os.Stat(cfg.Paths.EventLogDir)
	assert.True(t, os.IsNotExist(err), "no event log without history")
}

func TestExecuteRunReadsDescriptionInteractively(t *testing.T) {
	cfg := testConfig(t)
	client := agent.NewMockTextClient(`{"is_crud_required":true,"is_user_login_and_logout":true,"is_external_urls_required":false}`)
	deps, out := testDeps(client, fixedProber{}, "a members-only forum\n")

	require.NoError(t, executeRun(context.Background(), cfg, deps, "", &runOptions{noHistory: true}))
	assert.Contains(t, out.String(), "What webserver are we building today?")
	require.Len(t, client.Requests(), 1)
	assert.Contains(t, client.Requests()[0].Messages[0].Content, "a members-only forum")
}

func TestExecuteRunRecordsFailure(t *testing.T) {
	cfg := testConfig(t)
	deps, _ := testDeps(agent.NewMockTextClient("not json"), fixedProber{}, "")

	err := executeRun(context.Background(), cfg, deps, "anything", &runOptions{})
	require.Error(t, err)
	assert.True(t, agent.IsDecodeError(err))

	store, err := persistence.Open(cfg.Storage.DBPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, persistence.RunStatusFailed, runs[0].Status)
	assert.Equal(t, "DISCOVERY", string(runs[0].FinalState))
}

func TestExecuteRunResumesFailedRun(t *testing.T) {
	cfg := testConfig(t)
	scope := `{"is_crud_required":false,"is_user_login_and_logout":false,"is_external_urls_required":true}`
	good := "https://api.kraken.com/0/public/Ticker"
	deps, _ := testDeps(agent.NewMockTextClient(scope, "some urls"), fixedProber{}, "")
	require.Error(t, executeRun(context.Background(), cfg, deps, "Crypto Price Data from Kraken", &runOptions{}))

	store, err := persistence.Open(cfg.Storage.DBPath)
	require.NoError(t, err)
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)
	id := runs[0].ID

	client := agent.NewMockTextClient(scope, `["`+good+`"]`)
	deps, out := testDeps(client, fixedProber{good: 200}, "")
	require.NoError(t, executeRun(context.Background(), cfg, deps, "", &runOptions{resume: id}))
	assert.Contains(t, out.String(), "Resuming run "+id+" from DISCOVERY")
	assert.NotContains(t, out.String(), "What webserver are we building today?")
	assert.Contains(t, client.Requests()[0].Messages[0].Content, "Crypto Price Data from Kraken")

	store, err = persistence.Open(cfg.Storage.DBPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err = store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1, "resume updates the run in place")
	assert.Equal(t, persistence.RunStatusFinished, runs[0].Status)
	assert.Empty(t, runs[0].Error)
	assert.Equal(t, []string{good}, runs[0].FactSheet.ExternalURLs)

	deps, _ = testDeps(agent.NewMockTextClient(), fixedProber{}, "")
	err = executeRun(context.Background(), cfg, deps, "", &runOptions{resume: id})
	assert.ErrorContains(t, err, "already finished")
}

func TestExecuteRunResumeErrors(t *testing.T) {
	cfg := testConfig(t)
	deps, _ := testDeps(agent.NewMockTextClient(), fixedProber{}, "")

	err := executeRun(context.Background(), cfg, deps, "", &runOptions{resume: "abc", noHistory: true})
	assert.ErrorContains(t, err, "--resume needs the history database")

	err = executeRun(context.Background(), cfg, deps, "", &runOptions{resume: "no-such-run"})
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestExecuteRunWritesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Output = filepath.Join(t.TempDir(), "metrics.prom")
	client := agent.NewMockTextClient(`{"is_crud_required":true,"is_user_login_and_logout":false,"is_external_urls_required":false}`)
	deps, _ := testDeps(client, fixedProber{}, "")

	require.NoError(t, executeRun(context.Background(), cfg, deps, "todo", &runOptions{noHistory: true}))
	b, err := os.ReadFile(cfg.Metrics.Output)
	require.NoError(t, err)
	assert.Contains(t, string(b), "gippity_task_requests_total")
}

func TestCapabilitiesCommands(t *testing.T) {
	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetArgs([]string{"capabilities", "list"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), capabilities.NameProjectScope)
	assert.Contains(t, out.String(), capabilities.NameSiteURLs)

	out.Reset()
	root = NewRoot()
	root.SetOut(&out)
	root.SetArgs([]string{"capabilities", "render", capabilities.NameConvertUserInputToGoal, "build", "a", "blog"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Here is the input to the function: build a blog.")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "gippity dev"))
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	t.Setenv(config.EnvDBPath, dbPath)
	t.Setenv(config.EnvModel, "")

	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFile),
		[]byte("paths:\n  event_log_dir: "+logDir+"\n"), 0644))

	cfg := config.Default()
	cfg.Storage.DBPath = dbPath
	cfg.Paths.FactSheet = filepath.Join(dir, "factsheet.json")
	cfg.Paths.EventLogDir = logDir
	client := agent.NewMockTextClient(`{"is_crud_required":true,"is_user_login_and_logout":false,"is_external_urls_required":false}`)
	deps, _ := testDeps(client, fixedProber{}, "")
	require.NoError(t, executeRun(context.Background(), cfg, deps, "I need a simple TODO app", &runOptions{}))

	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--project-dir", dir})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "I need a simple TODO app")
	assert.Contains(t, out.String(), "finished")

	store, err := persistence.Open(dbPath)
	require.NoError(t, err)
	runs, err := store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out.Reset()
	root = NewRoot()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--project-dir", dir, runs[0].ID})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Scope:       crud=true login=false external=false")
	assert.Contains(t, out.String(), "DISCOVERY → FINISHED")
	assert.Contains(t, out.String(), "[ai_call] Solutions Architect: print_project_scope")
}
