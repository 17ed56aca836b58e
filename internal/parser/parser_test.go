package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/llm"
	"sentinel-nlmod/internal/mention"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const botID = "900"

func input(text string, targets ...command.TargetRef) Input {
	return Input{
		Text:    text,
		Context: mention.Analyze(mention.Input{Text: text, BotID: botID}),
		Targets: targets,
	}
}

func staticModel(answer string, err error) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, string) (string, error) {
		return answer, err
	})
}

func TestAnalyzeBanScenarioWithoutModel(t *testing.T) {
	p := New(nil, DefaultThresholds(), time.Second, zap.NewNop())
	spammer := command.TargetRef{ID: "1", DisplayName: "spammer"}

	cmd := p.Analyze(context.Background(), input("<@900> ban <@1> vì spam quá nhiều", spammer))

	assert.Equal(t, command.ActionBan, cmd.Action)
	require.Len(t, cmd.Targets, 1)
	assert.Equal(t, "1", cmd.Targets[0].ID)
	assert.Equal(t, "spam quá nhiều", cmd.Reason)
	require.NotNil(t, cmd.Duration)
	assert.True(t, cmd.Duration.Permanent)
	assert.True(t, cmd.RequiresConfirmation)
	assert.GreaterOrEqual(t, cmd.Confidence, DefaultThreshold)
}

func TestAnalyzeMuteScenarioWithoutModel(t *testing.T) {
	p := New(nil, DefaultThresholds(), time.Second, zap.NewNop())

	cmd := p.Analyze(context.Background(), input("câm <@2> 10 phút vì spam", command.TargetRef{ID: "2"}))

	assert.Equal(t, command.ActionMute, cmd.Action)
	require.NotNil(t, cmd.Duration)
	assert.Equal(t, 10, cmd.Duration.Minutes)
	assert.False(t, cmd.RequiresConfirmation)
	assert.Equal(t, command.ModeCommand, cmd.Mode)
	assert.Equal(t, "spam", cmd.Reason)
}

func TestAnalyzeMalformedModelOutputDegrades(t *testing.T) {
	for _, answer := range []string{"I think you should ban them", `{"action": 12, "confidence": "high"}`, `{"action": "explode", "confidence": 0.99}`} {
		p := New(staticModel(answer, nil), DefaultThresholds(), time.Second, zap.NewNop())
		cmd := p.Analyze(context.Background(), input("<@900> hôm nay trời đẹp quá"))
		assert.Equal(t, command.ActionNone, cmd.Action, answer)
		assert.Equal(t, command.ModeChat, cmd.Mode, answer)
		assert.Zero(t, cmd.Confidence, answer)
	}
}

func TestAnalyzeModelErrorUsesFallback(t *testing.T) {
	var results []string
	p := New(staticModel("", errors.New("unreachable")), DefaultThresholds(), time.Second, zap.NewNop())
	p.OnModelResult(func(result string) { results = append(results, result) })

	cmd := p.Analyze(context.Background(), input("kick <@3> vì quảng cáo", command.TargetRef{ID: "3"}))

	assert.Equal(t, command.ActionKick, cmd.Action)
	assert.Equal(t, command.SourcePattern, cmd.Source)
	assert.Equal(t, []string{"error"}, results)
}

func TestAnalyzeModelTimeout(t *testing.T) {
	slow := llm.CompleterFunc(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := New(slow, DefaultThresholds(), 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	cmd := p.Analyze(context.Background(), input("warn <@4>", command.TargetRef{ID: "4"}))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, command.ActionWarn, cmd.Action)
}

func TestAnalyzeModelTargetsAreVerified(t *testing.T) {
	answer := `Here you go: {"action": "kick", "targets": ["5", "666"], "reason": "raid", "confidence": 0.92}`
	p := New(staticModel(answer, nil), DefaultThresholds(), time.Second, zap.NewNop())

	cmd := p.Analyze(context.Background(), input("đá <@5> ra ngoài", command.TargetRef{ID: "5"}))

	assert.Equal(t, command.SourceModel, cmd.Source)
	require.Len(t, cmd.Targets, 1)
	assert.Equal(t, "5", cmd.Targets[0].ID)
	assert.Equal(t, "raid", cmd.Reason)
}

func TestAnalyzeThreeTargetsNeedConfirmation(t *testing.T) {
	p := New(nil, DefaultThresholds(), time.Second, zap.NewNop())
	targets := []command.TargetRef{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	cmd := p.Analyze(context.Background(), input("warn <@1> <@2> <@3>", targets...))

	assert.Equal(t, command.ActionWarn, cmd.Action)
	assert.True(t, cmd.BatchOperation)
	assert.True(t, cmd.RequiresConfirmation)
}

func TestAnalyzeDeleteMessagesCount(t *testing.T) {
	p := New(nil, DefaultThresholds(), time.Second, zap.NewNop())

	cmd := p.Analyze(context.Background(), input("xóa 30 tin nhắn của <@7>", command.TargetRef{ID: "7"}))

	assert.Equal(t, command.ActionDeleteMessages, cmd.Action)
	assert.Equal(t, 30, cmd.MessageCount)
	assert.Nil(t, cmd.Duration)
}

func TestReconcile(t *testing.T) {
	thresholds := DefaultThresholds()
	fallback := command.ParsedCommand{Action: command.ActionMute, Confidence: 0.6, Reason: "spam", Source: command.SourcePattern}

	high := command.ParsedCommand{Action: command.ActionKick, Confidence: 0.9, Source: command.SourceModel}
	assert.Equal(t, high, Reconcile(high, fallback, thresholds))

	agree := command.ParsedCommand{Action: command.ActionMute, Confidence: 0.5, Source: command.SourceModel}
	merged := Reconcile(agree, fallback, thresholds)
	assert.InDelta(t, 0.6, merged.Confidence, 1e-9)
	assert.Equal(t, command.SourceCombined, merged.Source)
	assert.Equal(t, "spam", merged.Reason)

	disagree := command.ParsedCommand{Action: command.ActionWarn, Confidence: 0.5, Source: command.SourceModel}
	assert.Equal(t, fallback, Reconcile(disagree, fallback, thresholds))

	strongDisagree := command.ParsedCommand{Action: command.ActionWarn, Confidence: 0.7, Source: command.SourceModel}
	assert.Equal(t, strongDisagree, Reconcile(strongDisagree, fallback, thresholds))

	low := command.ParsedCommand{Action: command.ActionBan, Confidence: 0.1}
	assert.Equal(t, fallback, Reconcile(low, fallback, thresholds))
	assert.Equal(t, command.Default(), Reconcile(low, command.Default(), thresholds))
}

func TestNeedsConfirmationIsPure(t *testing.T) {
	for _, action := range command.Actions {
		for n := 0; n < 5; n++ {
			assert.Equal(t, NeedsConfirmation(action, n), NeedsConfirmation(action, n))
		}
	}
	assert.True(t, NeedsConfirmation(command.ActionUnban, 1))
	assert.False(t, NeedsConfirmation(command.ActionMute, 2))
}

func TestStructured(t *testing.T) {
	p := New(nil, DefaultThresholds(), time.Second, zap.NewNop())
	cmd := p.Structured(command.ActionMute, []command.TargetRef{{ID: "1"}}, "flood", nil, 0)

	assert.Equal(t, command.ModeCommand, cmd.Mode)
	assert.Equal(t, 1.0, cmd.Confidence)
	require.NotNil(t, cmd.Duration)
	assert.Equal(t, 10, cmd.Duration.Minutes)
}
