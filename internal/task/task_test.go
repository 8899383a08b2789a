package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalStatusIsImmutable(t *testing.T) {
	tk := &Task{Name: "a", Status: StatusPending}
	tk.Complete("done")
	require.Equal(t, StatusCompleted, tk.Status)
	require.NotNil(t, tk.Success)
	assert.True(t, *tk.Success)

	tk.Fail("boom")
	assert.Equal(t, StatusCompleted, tk.Status)
	assert.Equal(t, "done", tk.Result)

	tk.Cancel()
	assert.Equal(t, StatusCompleted, tk.Status)
}

func TestFailKeepsErrorText(t *testing.T) {
	tk := &Task{Name: "a", Status: StatusInProgress}
	tk.Fail("tool exploded")
	assert.Equal(t, StatusFailed, tk.Status)
	assert.Equal(t, "tool exploded", tk.Result)
	require.NotNil(t, tk.Success)
	assert.False(t, *tk.Success)
}

func TestCancelIsDistinctFromFailure(t *testing.T) {
	tk := &Task{Name: "a", Status: StatusPending}
	tk.Cancel()
	assert.Equal(t, StatusCancelled, tk.Status)
	assert.Empty(t, tk.Result)
}

func TestListValidate(t *testing.T) {
	valid := &List{
		Sequential: []*Task{{Name: "a"}, {Name: "b"}},
		Parallel:   []*Task{{Name: "c"}},
	}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, 3, valid.Len())

	dupAcrossGroups := &List{
		Sequential: []*Task{{Name: "a"}},
		Parallel:   []*Task{{Name: "a"}},
	}
	assert.Error(t, dupAcrossGroups.Validate())

	empty := &List{Sequential: []*Task{{Name: ""}}}
	assert.Error(t, empty.Validate())
}

func TestAllOrdersSequentialFirst(t *testing.T) {
	l := &List{
		Sequential: []*Task{{Name: "s1"}, {Name: "s2"}},
		Parallel:   []*Task{{Name: "p1"}},
	}
	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].Name)
	assert.Equal(t, "s2", all[1].Name)
	assert.Equal(t, "p1", all[2].Name)
}
