package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rps-ledger/internal/api"
	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/factory"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
	"github.com/mcoot/rps-ledger/internal/testutil"
)

const (
	contractHex = "0x00000000000000000000000000000000000000c1"
	aliceHex    = "0x00000000000000000000000000000000000000a1"
	bobHex      = "0x00000000000000000000000000000000000000b2"
)

type CLISuite struct {
	suite.Suite
	app     *factory.TestApp
	server  *httptest.Server
	secrets string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.T().Setenv("RPS_OUTPUT", "text")
	s.app = factory.NewTestAppWithConfig(chain.Config{Stake: 5, TimeoutWindow: 10 * time.Minute})
	s.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:     testutil.NopLogger(),
		Chain:      s.app.Chain,
		HubManager: s.app.HubManager,
	}))
	s.secrets = filepath.Join(s.T().TempDir(), "secrets.json")

	_, err := s.app.Chain.Deploy(context.Background(), chain.DeployOptions{Address: model.MustParseAddress(contractHex)})
	s.Require().NoError(err)
}

func (s *CLISuite) TearDownTest() {
	s.server.Close()
	_ = s.app.Close()
}

// run executes one CLI invocation as account and returns its stdout
func (s *CLISuite) run(account string, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	base := []string{"--ledger", s.server.URL, "--contract", contractHex, "--secrets-file", s.secrets}
	if account != "" {
		base = append(base, "--account", account)
	}
	cmd.SetArgs(append(base, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *CLISuite) mustRun(account string, args ...string) string {
	out, err := s.run(account, args...)
	s.Require().NoError(err, "%v: %s", args, out)
	return out
}

func (s *CLISuite) TestHealth() {
	out := s.mustRun("", "health")
	s.Contains(out, "Status: ok")
}

func (s *CLISuite) TestDeploy() {
	out := s.mustRun("", "deploy", "--address", "0x00000000000000000000000000000000000000d4", "--stake", "7", "--timeout-window", "30s")
	s.Contains(out, "Contract: 0x00000000000000000000000000000000000000d4")
	s.Contains(out, "Stake: 7 gwei")
	s.Contains(out, "Timeout window: 30s")
}

func (s *CLISuite) TestContracts() {
	s.mustRun("", "deploy", "--address", "0x00000000000000000000000000000000000000d4", "--stake", "7")

	out := s.mustRun("", "contracts")
	s.Contains(out, "Contract: "+contractHex)
	s.Contains(out, "Contract: 0x00000000000000000000000000000000000000d4")

	out = s.mustRun("", "contracts", "-o", "json")
	var list []response.Contract
	s.Require().NoError(json.Unmarshal([]byte(out), &list))
	s.Len(list, 2)

	out = s.mustRun("", "contracts", "0x00000000000000000000000000000000000000d4")
	s.Contains(out, "Stake: 7 gwei")
	s.NotContains(out, contractHex)

	_, err := s.run("", "contracts", "0x00000000000000000000000000000000000000e5")
	s.ErrorIs(err, model.ErrContractNotFound)

	_, err = s.run("", "contracts", "0x12")
	s.ErrorIs(err, model.ErrInvalidAddress)
}

func (s *CLISuite) TestFullRound() {
	out := s.mustRun(aliceHex, "register", "1")
	s.Contains(out, "player1 is now registered")
	s.Contains(out, "Registered "+aliceHex+" as player1 (stake 5 gwei)")
	s.mustRun(bobHex, "register", "player2")

	out = s.mustRun(aliceHex, "lock", "1", "rock")
	s.Contains(out, "Locked Rock for player1")
	s.mustRun(bobHex, "lock", "2", "paper", "--secret", "bob-secret")

	store, err := LoadSecrets(s.secrets)
	s.Require().NoError(err)
	alice, ok := store.Get(model.MustParseAddress(contractHex), model.Slot1, 1)
	s.Require().True(ok)
	s.Equal(model.ShapeRock, alice.Shape)
	s.Len(alice.Secret, secretLength)

	out = s.mustRun(aliceHex, "reveal", "1")
	s.Contains(out, "Revealed Rock for player1")
	s.mustRun(bobHex, "reveal", "2")

	out = s.mustRun(aliceHex, "settle")
	s.Contains(out, "Outcome: player2_wins")
	s.Contains(out, "round 2 is open")

	out = s.mustRun("", "balance", bobHex)
	s.Contains(out, "Balance: 10 gwei")

	store, err = LoadSecrets(s.secrets)
	s.Require().NoError(err)
	_, ok = store.Get(model.MustParseAddress(contractHex), model.Slot2, 1)
	s.False(ok)
}

func (s *CLISuite) TestStatusJSON() {
	s.mustRun(aliceHex, "register", "1")

	out := s.mustRun(aliceHex, "status", "-o", "json")

	var st Status
	s.Require().NoError(json.Unmarshal([]byte(out), &st))
	s.Equal(contractHex, st.Contract)
	s.Equal(uint64(1), st.Round)
	s.Equal(uint64(5), st.Stake)
	s.Require().Len(st.Slots, 2)
	s.Equal("registered", st.Slots[0].Phase)
	s.Equal(aliceHex, st.Slots[0].Address)
	s.True(st.Slots[0].Mine)
	s.Equal("unregistered", st.Slots[1].Phase)
	s.Equal("pending", st.LastOutcome)
	s.Contains(st.Actions, "lock 1")
	s.Contains(st.Actions, "register 2")
	s.NotContains(st.Actions, "settle")
}

func (s *CLISuite) TestTimeoutReset() {
	s.mustRun(aliceHex, "register", "1")

	s.app.MockClock.Advance(10 * time.Minute)
	out := s.mustRun(bobHex, "timeout-reset")
	s.Contains(out, "stakes refunded")
	s.Contains(out, "player1 is now unregistered")

	out = s.mustRun(aliceHex, "balance")
	s.Contains(out, "Balance: 5 gwei")
}

func (s *CLISuite) TestErrors() {
	_, err := s.run("", "register", "1")
	s.ErrorContains(err, "account address required")

	_, err = s.run(aliceHex, "register", "3")
	s.ErrorIs(err, model.ErrInvalidSlot)

	_, err = s.run(aliceHex, "lock", "1", "lizard")
	s.ErrorIs(err, model.ErrInvalidShape)

	s.mustRun(bobHex, "register", "1")
	_, err = s.run(aliceHex, "register", "1")
	s.ErrorIs(err, model.ErrIllegalTransition)

	_, err = s.run(bobHex, "reveal", "1")
	s.ErrorContains(err, "no saved move")

	_, err = s.run(aliceHex, "settle")
	s.ErrorIs(err, model.ErrIllegalTransition)
}

func (s *CLISuite) TestRejectedLockForgetsSecret() {
	s.mustRun(aliceHex, "register", "1")

	// bob does not own slot 1, so the orchestrator refuses before submitting
	_, err := s.run(bobHex, "lock", "1", "rock")
	s.Error(err)

	store, err := LoadSecrets(s.secrets)
	s.Require().NoError(err)
	_, ok := store.Get(model.MustParseAddress(contractHex), model.Slot1, 1)
	s.False(ok)
}
