package extraction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/openai"
)

func TestClient_Extract_FencedJSONWithoutRepair(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())
	ctx := context.Background()

	completer.On("Complete", ctx, mock.MatchedBy(isExtraction), float32(0)).
		Return("Sure! ```json\n[{\"entity_name\": \"X\"}]\n```", nil).Once()

	got, err := client.Extract(ctx, "X is a company.")

	require.NoError(t, err)
	assert.Equal(t, []domain.RawEntity{{"entity_name": "X"}}, got)
	completer.AssertNumberOfCalls(t, "Complete", 1)
	completer.AssertExpectations(t)
}

func TestClient_Extract_SendsChunkAsUserMessage(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, nil)

	completer.On("Complete", mock.Anything, mock.Anything, float32(0)).
		Return(`{"entities": []}`, nil).Once()

	got, err := client.Extract(context.Background(), "Alice Smith is the CEO.")
	require.NoError(t, err)
	assert.Empty(t, got)

	msgs := completer.Calls[0].Arguments.Get(1).([]openai.Message)
	require.Len(t, msgs, 2)
	assert.Equal(t, openai.RoleSystem, msgs[0].Role)
	assert.Equal(t, openai.RoleUser, msgs[1].Role)
	assert.Equal(t, "Alice Smith is the CEO.", msgs[1].Content)
}

func TestClient_Extract_RepairSucceeds(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())

	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return(`[{"primary_name": "Alice",}`, nil).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []openai.Message) bool {
		return isRepair(msgs) && msgs[1].Content == `[{"primary_name": "Alice",}`
	}), float32(0)).Return(`[{"primary_name": "Alice"}]`, nil).Once()

	got, err := client.Extract(context.Background(), "Alice")

	require.NoError(t, err)
	assert.Equal(t, []domain.RawEntity{{"primary_name": "Alice"}}, got)
	completer.AssertExpectations(t)
}

func TestClient_Extract_BracketedAsideTriggersRepair(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())

	raw := `I found [1] entity: [{"primary_name": "Alice", "entity_type": "Individual"}]`
	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return(raw, nil).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []openai.Message) bool {
		return isRepair(msgs) && msgs[1].Content == raw
	}), float32(0)).Return(`[{"primary_name": "Alice", "entity_type": "Individual"}]`, nil).Once()

	got, err := client.Extract(context.Background(), "Alice is the CEO.")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0]["primary_name"])
	completer.AssertNumberOfCalls(t, "Complete", 2)
	completer.AssertExpectations(t)
}

func TestClient_Extract_NoChoicesIsMalformedOutput(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())

	noChoices := fmt.Errorf("failed to create chat completion: %w", openai.ErrEmptyResponse)
	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return("", noChoices).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(isRepair), float32(0)).
		Return("", noChoices).Once()

	got, err := client.Extract(context.Background(), "some text")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	completer.AssertNumberOfCalls(t, "Complete", 2)
}

func TestClient_Extract_UnrecoverableReturnsEmpty(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())

	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return("I cannot help with that.", nil).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(isRepair), float32(0)).
		Return("Sorry, I still cannot help.", nil).Once()

	got, err := client.Extract(context.Background(), "some text")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	completer.AssertNumberOfCalls(t, "Complete", 2)
	completer.AssertExpectations(t)
}

func TestClient_Extract_TransportErrorPropagates(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())

	transportErr := errors.New("connection refused")
	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return("", transportErr).Once()

	got, err := client.Extract(context.Background(), "some text")

	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrModelRequest)
	assert.ErrorIs(t, err, transportErr)
	completer.AssertNumberOfCalls(t, "Complete", 1)
}

func TestClient_Extract_RepairTransportErrorPropagates(t *testing.T) {
	completer := new(MockCompleter)
	client := NewClient(completer, discardLogger())

	transportErr := errors.New("timeout")
	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return("not json", nil).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(isRepair), float32(0)).
		Return("", transportErr).Once()

	_, err := client.Extract(context.Background(), "some text")

	assert.ErrorIs(t, err, ErrModelRequest)
	assert.ErrorIs(t, err, transportErr)
}
