package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitted struct {
	texts []string
}

func (s *submitted) submit(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func TestFlowConfirmSubmitsHeldText(t *testing.T) {
	var sub submitted
	f := NewFlow(sub.submit)

	require.True(t, f.Offer("remove milk"))
	text, pending := f.Pending()
	assert.True(t, pending)
	assert.Equal(t, "remove milk", text)

	require.NoError(t, f.Confirm(context.Background()))
	assert.Equal(t, []string{"remove milk"}, sub.texts)

	_, pending = f.Pending()
	assert.False(t, pending)
	assert.ErrorIs(t, f.Confirm(context.Background()), ErrNothingPending)
}

func TestFlowEditRelocatesText(t *testing.T) {
	var sub submitted
	f := NewFlow(sub.submit)

	f.Offer("add tree apples")
	text, ok := f.Edit()
	assert.True(t, ok)
	assert.Equal(t, "add tree apples", text)
	assert.Empty(t, sub.texts)

	_, pending := f.Pending()
	assert.False(t, pending)
	_, ok = f.Edit()
	assert.False(t, ok)
}

func TestFlowCancelDiscards(t *testing.T) {
	var sub submitted
	f := NewFlow(sub.submit)

	assert.False(t, f.Cancel())
	f.Offer("add bread")
	assert.True(t, f.Cancel())
	assert.False(t, f.Cancel())
	assert.Empty(t, sub.texts)
}

func TestFlowOfferRules(t *testing.T) {
	f := NewFlow(func(context.Context, string) error { return nil })

	assert.False(t, f.Offer(""))
	assert.False(t, f.Offer("   "))
	assert.True(t, f.Offer("first"))
	assert.False(t, f.Offer("second"))

	text, _ := f.Pending()
	assert.Equal(t, "first", text)
}
