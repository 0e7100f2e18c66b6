package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cardbid/models"
)

func TestStatusAt(t *testing.T) {
	now := time.Now()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	testCases := []struct {
		name      string
		startTime *time.Time
		endTime   *time.Time
		expected  models.AuctionStatus
	}{
		{
			name:     "尚未排程",
			expected: models.StatusNotScheduled,
		},
		{
			name:      "尚未開始",
			startTime: ptr(now.Add(time.Hour)),
			endTime:   ptr(now.Add(2 * time.Hour)),
			expected:  models.StatusScheduled,
		},
		{
			name:      "進行中",
			startTime: &start,
			endTime:   &end,
			expected:  models.StatusOngoing,
		},
		{
			name:      "剛好開始",
			startTime: &now,
			endTime:   &end,
			expected:  models.StatusOngoing,
		},
		{
			name:      "剛好結束",
			startTime: &start,
			endTime:   &now,
			expected:  models.StatusOngoing,
		},
		{
			name:      "已結束",
			startTime: ptr(now.Add(-2 * time.Hour)),
			endTime:   ptr(now.Add(-time.Hour)),
			expected:  models.StatusEnded,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			item := models.AuctionItem{
				StartTime: tc.startTime,
				EndTime:   tc.endTime,
			}
			assert.Equal(t, tc.expected, item.StatusAt(now))
		})
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}
