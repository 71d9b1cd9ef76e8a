package e2e_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rps-ledger/internal/api"
	"github.com/mcoot/rps-ledger/internal/factory"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
)

const (
	aliceAccount = "0x00000000000000000000000000000000000000a1"
	bobAccount   = "0x00000000000000000000000000000000000000b2"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath  string
	serverURL   string
	secretsFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "rps-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/rps")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath:  binaryPath,
		serverURL:   serverURL,
		secretsFile: filepath.Join(t.TempDir(), "secrets.json"),
	}
}

func (r *cliRunner) command(account, contract string, args ...string) *exec.Cmd {
	fullArgs := []string{
		"--ledger", r.serverURL,
		"--secrets-file", r.secretsFile,
	}
	if account != "" {
		fullArgs = append(fullArgs, "--account", account)
	}
	if contract != "" {
		fullArgs = append(fullArgs, "--contract", contract)
	}

	cmd := exec.Command(r.binaryPath, append(fullArgs, args...)...)
	cmd.Env = append(os.Environ(), "RPS_OUTPUT=text")
	return cmd
}

// run executes the CLI and returns stdout; stderr is folded into the error
func (r *cliRunner) run(account, contract string, args ...string) (string, error) {
	cmd := r.command(account, contract, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return string(output), errors.New(strings.TrimSpace(stderr.String()))
	}
	return string(output), nil
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real ledger node for e2e tests
type testServer struct {
	app      *factory.App
	url      string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app, err := factory.New(factory.Config{
		Logger:      logger,
		ChainConfig: chain.Config{Stake: 5, TimeoutWindow: time.Hour},
	})
	require.NoError(t, err)

	server := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.RouterConfig{
			Logger:     logger,
			Chain:      app.Chain,
			HubManager: app.HubManager,
		}),
	}

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app: app,
		url: serverURL,
		shutdown: func() {
			app.HubManager.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type contractResponse struct {
	Address              string `json:"address"`
	Stake                uint64 `json:"stake"`
	TimeoutWindowSeconds int64  `json:"timeout_window_seconds"`
	Round                uint64 `json:"round"`
}

type statusResponse struct {
	Round       uint64 `json:"round"`
	LastOutcome string `json:"last_outcome"`
	Slots       []struct {
		Slot  string `json:"slot"`
		Phase string `json:"phase"`
	} `json:"slots"`
	Actions []string `json:"actions"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

func deployContract(t *testing.T, cli *cliRunner) string {
	t.Helper()

	out, err := cli.run("", "", "deploy", "-o", "json")
	require.NoError(t, err)

	var contract contractResponse
	require.NoError(t, json.Unmarshal([]byte(out), &contract))
	require.NotEmpty(t, contract.Address)
	assert.Equal(t, uint64(5), contract.Stake)
	assert.Equal(t, int64(3600), contract.TimeoutWindowSeconds)
	assert.Equal(t, uint64(1), contract.Round)
	return contract.Address
}

func TestCLIHealth(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)

	out, err := cli.run("", "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: ok")
	assert.Contains(t, out, srv.url)
}

func TestCLIFullRound(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)
	contract := deployContract(t, cli)

	mustRun := func(account string, args ...string) string {
		t.Helper()
		out, err := cli.run(account, contract, args...)
		require.NoError(t, err, "%v", args)
		return out
	}

	mustRun(aliceAccount, "register", "1")
	mustRun(bobAccount, "register", "2")
	mustRun(aliceAccount, "lock", "1", "scissors")
	mustRun(bobAccount, "lock", "2", "paper")

	out := mustRun(bobAccount, "status", "-o", "json")
	var status statusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, uint64(1), status.Round)
	require.Len(t, status.Slots, 2)
	assert.Equal(t, "locked", status.Slots[0].Phase)
	assert.Equal(t, "locked", status.Slots[1].Phase)
	assert.ElementsMatch(t, []string{"reveal 1", "reveal 2"}, status.Actions)

	mustRun(aliceAccount, "reveal", "1")
	mustRun(bobAccount, "reveal", "2")

	out = mustRun(bobAccount, "settle")
	assert.Contains(t, out, "Outcome: "+model.OutcomePlayer1Wins.String())

	out = mustRun(aliceAccount, "balance", "-o", "json")
	var balance balanceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &balance))
	assert.Equal(t, aliceAccount, balance.Account)
	assert.Equal(t, uint64(10), balance.Balance)

	out = mustRun("", "status", "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, uint64(2), status.Round)
	assert.Equal(t, model.OutcomePlayer1Wins.String(), status.LastOutcome)
}

func TestCLIErrors(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)
	contract := deployContract(t, cli)

	_, err := cli.run(aliceAccount, "", "register", "1")
	assert.ErrorContains(t, err, "contract address required")

	_, err = cli.run(aliceAccount, "0x00000000000000000000000000000000000000ff", "status")
	assert.ErrorContains(t, err, "Contract not found")

	_, err = cli.run(aliceAccount, contract, "timeout-reset")
	assert.ErrorContains(t, err, "remaining")

	_, err = cli.run(aliceAccount, contract, "reveal", "1")
	assert.ErrorContains(t, err, "no saved move")
}

// lineCollector gathers a process's stdout lines as they arrive
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) read(scanner *bufio.Scanner) {
	for scanner.Scan() {
		c.mu.Lock()
		c.lines = append(c.lines, scanner.Text())
		c.mu.Unlock()
	}
}

func (c *lineCollector) contains(s string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func TestCLIWatchFollowsAnotherPlayersRound(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)
	contract := deployContract(t, cli)
	addr := model.MustParseAddress(contract)

	watch := cli.command(aliceAccount, contract, "watch", "--poll", "100ms")
	stdout, err := watch.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, watch.Start())

	collector := &lineCollector{}
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		collector.read(bufio.NewScanner(stdout))
	}()

	require.Eventually(t, func() bool {
		hub := srv.app.HubManager.GetHub(addr)
		return hub != nil && hub.ClientCount() > 0
	}, 10*time.Second, 20*time.Millisecond, "watch never subscribed")

	for _, step := range [][]string{
		{aliceAccount, "register", "1"},
		{bobAccount, "register", "2"},
		{aliceAccount, "lock", "1", "rock", "--secret", "a"},
		{bobAccount, "lock", "2", "rock", "--secret", "b"},
		{aliceAccount, "reveal", "1"},
		{bobAccount, "reveal", "2"},
		{aliceAccount, "settle"},
	} {
		_, err := cli.run(step[0], contract, step[1:]...)
		require.NoError(t, err, "%v", step)
	}

	assert.Eventually(t, func() bool {
		return collector.contains("Outcome: draw")
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, collector.contains("Timeout: waiting"))

	require.NoError(t, watch.Process.Signal(os.Interrupt))
	<-readDone
	require.NoError(t, watch.Wait())
	assert.True(t, collector.contains("Stopped"))
}
