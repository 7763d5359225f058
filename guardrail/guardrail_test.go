package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/internal/testutil"
	"github.com/hupe1980/ragmesh/policy"
)

func TestFilter_DenyListBlocksWithoutModeration(t *testing.T) {
	mod := &testutil.Moderator{}
	f := New(func(o *Options) { o.Moderator = mod })

	v := f.Check(context.Background(), "What is the state of Taiwan Independence today?")

	assert.True(t, v.Blocked)
	assert.Equal(t, ReasonPolicyTopic, v.Reason)
	assert.Equal(t, policy.Default().TopicRefusal, v.Message)
	assert.Equal(t, 0, mod.Calls())
}

func TestFilter_DenyListIsCaseInsensitive(t *testing.T) {
	f := New()
	v := f.Check(context.Background(), "tell me about TAIWAN INDEPENDENCE")
	assert.True(t, v.Blocked)
	assert.Equal(t, ReasonPolicyTopic, v.Reason)
}

func TestFilter_ModerationFlagged(t *testing.T) {
	mod := &testutil.Moderator{Flagged: true, Categories: []string{"harassment"}}
	f := New(func(o *Options) { o.Moderator = mod })

	v := f.Check(context.Background(), "some hostile text")

	assert.True(t, v.Blocked)
	assert.Equal(t, ReasonModerationFlagged, v.Reason)
	assert.Equal(t, policy.Default().ModerationRefusal, v.Message)
	assert.Equal(t, 1, mod.Calls())
}

func TestFilter_ModerationErrorFailsOpen(t *testing.T) {
	mod := &testutil.Moderator{Err: errors.New("503")}
	log := &testutil.RecordingLogger{}
	f := New(func(o *Options) {
		o.Moderator = mod
		o.Logger = log
	})

	v := f.Check(context.Background(), "what did Amazon report in 2023?")

	assert.False(t, v.Blocked)
	assert.Equal(t, ReasonNone, v.Reason)
	assert.Equal(t, 1, mod.Calls(), "no retry")
	assert.Equal(t, 1, log.Count("WARN"), log.String())
}

func TestFilter_NilModeratorAllows(t *testing.T) {
	f := New()
	assert.Equal(t, Allowed, f.Check(context.Background(), "hello"))
}

func TestFilter_UsesCurrentPolicy(t *testing.T) {
	p := policy.Default()
	p.DenyList = []string{"forbidden phrase"}
	p.TopicRefusal = "nope"
	f := New(func(o *Options) { o.Policy = policy.Static(p) })

	v := f.Check(context.Background(), "a Forbidden Phrase appears")
	assert.True(t, v.Blocked)
	assert.Equal(t, "nope", v.Message)

	assert.False(t, f.Check(context.Background(), "taiwan independence").Blocked)
}

type mockModerator struct{ mock.Mock }

func (m *mockModerator) Moderate(ctx context.Context, text string) (core.ModerationResult, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(core.ModerationResult), args.Error(1)
}

func TestFilter_ModeratesExactQueryOnce(t *testing.T) {
	mod := &mockModerator{}
	mod.On("Moderate", mock.Anything, "How did AWS do in 2023?").
		Return(core.ModerationResult{}, nil).Once()
	f := New(func(o *Options) { o.Moderator = mod })

	v := f.Check(context.Background(), "How did AWS do in 2023?")

	assert.Equal(t, Allowed, v)
	mod.AssertExpectations(t)
}
