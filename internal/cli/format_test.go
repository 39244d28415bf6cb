package cli

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestProperty_TruncateStringBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("result fits and keeps a prefix of the input", prop.ForAll(
		func(s string, maxLen int) bool {
			out := TruncateString(s, maxLen)
			n := utf8.RuneCountInString(out)
			if utf8.RuneCountInString(s) <= maxLen {
				return out == s
			}
			if n != maxLen {
				return false
			}
			keep := maxLen
			if maxLen > 3 {
				keep = maxLen - 3
			}
			return string([]rune(s)[:keep]) == string([]rune(out)[:keep])
		},
		gen.AnyString(),
		gen.IntRange(0, 40),
	))

	properties.Property("timestamps format as the same instant in UTC", prop.ForAll(
		func(ns int64) bool {
			parsed, err := time.Parse(timestampLayout, FormatTimestamp(uint64(ns)))
			if err != nil {
				return false
			}
			return parsed.Equal(time.Unix(0, ns).UTC().Truncate(time.Millisecond))
		},
		gen.Int64Range(0, 4_000_000_000_000_000_000),
	))

	properties.TestingRun(t)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "2023-11-14 22:13:20.000", FormatTimestamp(1_700_000_000_000_000_000))
	assert.Equal(t, "never", FormatOptionalTimestamp(nil))

	assert.Equal(t, "42356.78", FormatPrice(42356.78))
	assert.Equal(t, "1.2346", FormatPrice(1.23456))

	assert.Equal(t, "75%", FormatConfidence(0.75))
	assert.Equal(t, "62%", FormatConfidence(0.62))

	pl := 12.5
	assert.Equal(t, "+12.50", FormatProfitLoss(&pl))
	loss := -3.0
	assert.Equal(t, "-3.00", FormatProfitLoss(&loss))
	assert.Equal(t, "-", FormatProfitLoss(nil))

	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", FormatDuration(125*time.Second))
	assert.Equal(t, "3h 10m", FormatDuration(3*time.Hour+10*time.Minute))
	assert.Equal(t, "2d 1h", FormatDuration(49*time.Hour))
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "BUY", stripANSI("\x1b[32mBUY\x1b[0m"))
	assert.Equal(t, 6, visibleLen("\x1b[1;31m↓ SELL\x1b[0m"))
}
