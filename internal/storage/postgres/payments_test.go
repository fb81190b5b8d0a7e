package postgres

import (
	"testing"

	"creatorfund/internal/storage"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceGoal(t *testing.T) {
	cases := []struct {
		name         string
		progress     int64
		target       int64
		amount       int64
		wantProgress int64
		wantReached  bool
	}{
		{"crosses the target", 800, 1000, 300, 1100, true},
		{"lands exactly on the target", 800, 1000, 200, 1000, true},
		{"stays below the target", 100, 1000, 300, 400, false},
		{"starts from zero", 0, 1000, 50, 50, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			progress, reached := advanceGoal(tc.progress, tc.target, tc.amount)
			assert.Equal(t, tc.wantProgress, progress)
			assert.Equal(t, tc.wantReached, reached)
		})
	}
}

func TestAdvanceGoalNeverDecrements(t *testing.T) {
	progress := int64(800)
	for _, amount := range []int64{300, 1, 500} {
		next, _ := advanceGoal(progress, 1000, amount)
		assert.Greater(t, next, progress)
		progress = next
	}
}

func TestDecideEnrollment(t *testing.T) {
	cases := []struct {
		name        string
		change      bool
		hasActive   bool
		currentTier int
		newTier     int
		want        error
	}{
		{"fresh enroll with no active enrollment", false, false, 0, 2, nil},
		{"fresh enroll while already enrolled", false, true, 1, 2, storage.ErrAlreadyEnrolled},
		{"change without an active enrollment", true, false, 0, 2, storage.ErrEnrollmentNotFound},
		{"downgrade while active", true, true, 3, 2, storage.ErrDowngradeWhileActive},
		{"change to the same tier", true, true, 2, 2, nil},
		{"upgrade while active", true, true, 2, 3, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := decideEnrollment(tc.change, tc.hasActive, tc.currentTier, tc.newTier)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}
