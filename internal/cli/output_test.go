package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rps-ledger/internal/model"
)

func TestPrintSinkMuted(t *testing.T) {
	var buf bytes.Buffer
	sink := newPrintSink(NewOutput("text", &buf), true, true)

	sink.OnPhaseChanged(model.Slot1, model.PhaseRegistered)
	sink.OnOutcomeDetermined(model.OutcomeDraw)
	assert.Empty(t, buf.String())
	assert.Equal(t, []model.Outcome{model.OutcomeDraw}, sink.Outcomes())

	sink.unmute()
	sink.OnPhaseChanged(model.Slot2, model.PhaseLocked)
	assert.Equal(t, "player2 is now locked\n", buf.String())
}

func TestPrintSinkTimeoutTransitionsOnly(t *testing.T) {
	var buf bytes.Buffer
	sink := newPrintSink(NewOutput("text", &buf), false, false)

	waiting := model.TimeoutEligibility{Status: model.TimeoutWaiting, Remaining: 90 * time.Second}
	sink.OnTimeoutEligibility(waiting)
	waiting.Remaining = 80 * time.Second
	sink.OnTimeoutEligibility(waiting)
	sink.OnTimeoutEligibility(model.TimeoutEligibility{Status: model.TimeoutEligible})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"Timeout: waiting (1m30s left)", "Timeout: eligible"}, lines)
}

func TestPrintSinkFailures(t *testing.T) {
	err := model.NewOperationError(model.OpLock, model.Slot1, model.ErrInvalidShape)

	var quiet bytes.Buffer
	newPrintSink(NewOutput("text", &quiet), false, false).OnOperationFailed(model.OpLock, model.Slot1, err)
	assert.Empty(t, quiet.String())

	var buf bytes.Buffer
	newPrintSink(NewOutput("json", &buf), false, true).OnOperationFailed(model.OpLock, model.Slot1, err)

	var n notification
	require.NoError(t, json.Unmarshal(buf.Bytes(), &n))
	assert.Equal(t, "operation_failed", n.Event)
	assert.Equal(t, "player1", n.Slot)
	assert.Equal(t, string(model.OpLock), n.Op)
	assert.Equal(t, model.ErrInvalidArgument.Error(), n.Kind)
}

func TestOutputJSONMessage(t *testing.T) {
	var buf bytes.Buffer
	NewOutput("json", &buf).PrintMessage("hello")
	assert.JSONEq(t, `{"message":"hello"}`, buf.String())
}
