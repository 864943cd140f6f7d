package money

import "testing"

func TestDivByZeroYieldsZero(t *testing.T) {
	// GIVEN a total premium and zero participants
	total := New(47_350_000)

	// WHEN dividing by zero participants
	avg := total.Div(Zero)

	// THEN the result is zero, not a panic or error
	if !avg.IsZero() {
		t.Fatalf("expected zero, got %s", avg.String())
	}
}

func TestRoundPresentationHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"47350000.005", "47350000.01"},
		{"47350000.004", "47350000"},
		{"100.125", "100.13"},
	}

	for _, c := range cases {
		got := Parse(c.in).RoundPresentation(2)
		want := Parse(c.want).RoundPresentation(2)
		if !got.Equal(want) {
			t.Errorf("RoundPresentation(%s) = %s, want %s", c.in, got.String(), want.String())
		}
	}
}

func TestArithmeticKeepsFullPrecisionUntilRounding(t *testing.T) {
	// GIVEN a chain of multiplications with many fractional digits
	a := Parse("1000000")
	b := Parse("1.333333")
	c := Parse("1.150000")

	// WHEN multiplying without intermediate rounding
	result := a.Mul(b).Mul(c)

	// THEN only the final RoundPresentation call rounds
	if !result.Equal(Parse("1533332.95")) {
		t.Fatalf("product = %s, want exactly 1533332.95", result.String())
	}
	rounded := result.RoundPresentation(2)
	if rounded.IsZero() {
		t.Fatalf("expected non-zero result")
	}
}
