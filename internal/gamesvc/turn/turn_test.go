package turn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roster() []Seat {
	// deliberately out of order
	return []Seat{
		{UserID: 30, PlayerOrder: 3},
		{UserID: 10, PlayerOrder: 1},
		{UserID: 20, PlayerOrder: 2},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		moves     int
		reverses  int
		wantUser  int64
		wantIndex int
		wantDir   int
	}{
		{"first move", 0, 0, 10, 0, 1},
		{"forward one", 1, 0, 20, 1, 1},
		{"wraps around", 3, 0, 10, 0, 1},
		{"five moves no reverse", 5, 0, 30, 2, 1},
		{"five moves one reverse", 5, 1, 20, 1, -1},
		{"four moves one reverse", 4, 1, 30, 2, -1},
		{"three moves one reverse", 3, 1, 10, 0, -1},
		{"two reverses cancel", 5, 2, 30, 2, 1},
		{"reverse with no moves", 0, 1, 10, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(roster(), tt.moves, tt.reverses)
			require.NoError(t, err)
			require.Equal(t, tt.wantUser, got.UserID)
			require.Equal(t, tt.wantIndex, got.Index)
			require.Equal(t, tt.wantDir, got.Direction)
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	r := roster()
	first, err := Resolve(r, 7, 3)
	require.NoError(t, err)
	second, err := Resolve(r, 7, 3)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// input roster untouched
	require.Equal(t, roster(), r)
	require.Equal(t, []int{1, 2, 3}, []int{first.Seats[0].PlayerOrder, first.Seats[1].PlayerOrder, first.Seats[2].PlayerOrder})
}

func TestResolveNoPlayers(t *testing.T) {
	_, err := Resolve(nil, 3, 0)
	require.ErrorIs(t, err, ErrNoPlayers)
}
