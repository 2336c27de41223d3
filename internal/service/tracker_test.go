package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTrackerOptions = TrackerOptions{SampleLength: 50, SampleLimit: 50}

func sampleTurn(msg string) domain.Turn {
	return domain.Turn{
		UserID:           "farmer-1",
		SessionID:        "s1",
		UserMessage:      msg,
		AssistantMessage: "answer",
		Source:           domain.SourceFallback,
	}
}

func TestTrackerNewSession(t *testing.T) {
	sessions := &sessionStoreStub{isNew: true}
	usage := &usageStoreStub{}
	tr := NewTracker(sessions, usage, testTrackerOptions, nil, zap.NewNop())

	require.NoError(t, tr.RecordTurn(context.Background(), sampleTurn("What is crop insurance?")))

	require.Len(t, sessions.turns, 1)
	require.Len(t, usage.calls, 1)
	assert.Equal(t, usageCall{userID: "farmer-1", newSession: true, sample: "What is crop insurance?", limit: 50}, usage.calls[0])
}

func TestTrackerTruncatesSample(t *testing.T) {
	usage := &usageStoreStub{}
	tr := NewTracker(&sessionStoreStub{}, usage, testTrackerOptions, nil, zap.NewNop())

	long := strings.Repeat("फसल बीमा ", 20)
	require.NoError(t, tr.RecordTurn(context.Background(), sampleTurn(long)))

	sample := usage.calls[0].sample
	assert.LessOrEqual(t, utf8.RuneCountInString(sample), 50)
	assert.True(t, strings.HasPrefix(long, sample))
	assert.False(t, usage.calls[0].newSession)
}

func TestTrackerSwallowsUsageFailure(t *testing.T) {
	usage := &usageStoreStub{err: errors.New("disk full")}
	tr := NewTracker(&sessionStoreStub{isNew: true}, usage, testTrackerOptions, nil, zap.NewNop())

	assert.NoError(t, tr.RecordTurn(context.Background(), sampleTurn("hi")))
	assert.Len(t, usage.calls, 1)
}

func TestTrackerReportsSessionFailure(t *testing.T) {
	sessionErr := errors.New("database is locked")
	usage := &usageStoreStub{}
	tr := NewTracker(&sessionStoreStub{isNew: true, err: sessionErr}, usage, testTrackerOptions, nil, zap.NewNop())

	err := tr.RecordTurn(context.Background(), sampleTurn("hi"))
	assert.ErrorIs(t, err, sessionErr)

	require.Len(t, usage.calls, 1)
	assert.False(t, usage.calls[0].newSession)
}

func TestTruncateSample(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 50, "short"},
		{"  padded  ", 50, "padded"},
		{"abcdef", 3, "abc"},
		{"ab cd", 3, "ab"},
		{"मौसम", 2, "मौ"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateSample(tt.in, tt.n), tt.in)
	}
}

func TestTrackerRejectedTurnSkipsUsage(t *testing.T) {
	usage := &usageStoreStub{}
	rejected := fmt.Errorf("%w: session belongs to another user", domain.ErrInvalidRequest)
	tr := NewTracker(&sessionStoreStub{err: rejected}, usage, testTrackerOptions, nil, zap.NewNop())

	err := tr.RecordTurn(context.Background(), sampleTurn("hi"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, usage.calls)
}
