package ioc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForScore(t *testing.T) {
	cases := []struct {
		score int
		want  Tier
	}{
		{100, TierCritical},
		{70, TierCritical},
		{69, TierHigh},
		{45, TierHigh},
		{44, TierMedium},
		{20, TierMedium},
		{19, TierLow},
		{1, TierLow},
		{0, TierUnknown},
		{-5, TierUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TierForScore(tc.score), "score %d", tc.score)
	}
}

func TestParseDetections(t *testing.T) {
	cases := []struct {
		in   string
		want Detections
	}{
		{"45/70", Detections{Detected: 45, Total: 70}},
		{" 3 / 70 ", Detections{Detected: 3, Total: 70}},
		{"0/0", Detections{}},
		{"45", Detections{}},
		{"x/70", Detections{}},
		{"-1/70", Detections{}},
		{"", Detections{}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseDetections(tc.in))
		})
	}
}

func TestDetectionsRate(t *testing.T) {
	assert.Equal(t, 0.0, Detections{}.Rate())
	assert.InDelta(t, 0.5, Detections{Detected: 35, Total: 70}.Rate(), 1e-9)
	assert.Equal(t, "35/70", Detections{Detected: 35, Total: 70}.String())
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryFileHash, CategoryOf(TypeMD5))
	assert.Equal(t, CategoryFileHash, CategoryOf(TypeSHA256))
	assert.Equal(t, CategoryIP, CategoryOf(TypeIPv4))
	assert.Equal(t, CategoryOther, CategoryOf(Type("bogus")))
}
