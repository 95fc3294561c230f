package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	text string
	err  error
}

func (p staticProvider) Instruction() (string, error) { return p.text, p.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstruction("static text")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "static text", got)
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstruction("You are {{.role}} helping {{.user}}.")
	got, err := inst.Resolve(map[string]any{"role": "a librarian", "user": "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "You are a librarian helping Sam.", got)
}

func TestInstruction_FromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(staticProvider{text: "provider text"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(map[string]any{"ignored": true})
	require.NoError(t, err)
	assert.Equal(t, "provider text", got)
}

func TestInstruction_FromFunc(t *testing.T) {
	calls := 0
	inst := NewInstructionFromFunc(func() (string, error) {
		calls++
		return "dynamic", nil
	})

	got, err := inst.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)
	assert.Equal(t, 1, calls)
}

func TestInstruction_ProviderErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")
	inst := NewInstructionFromProvider(staticProvider{err: wantErr})

	_, err := inst.Resolve(nil)
	assert.ErrorIs(t, err, wantErr)
}
