package pricing

import "testing"

func within(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestDeltaATMCallNearHalf(t *testing.T) {
	d := Delta(100, 100, 0.25, 0.01, 0.2, Call)
	if !within(d, 0.54, 0.05) {
		t.Errorf("ATM call delta = %v, want near 0.54", d)
	}
}

func TestDeltaPutCallParity(t *testing.T) {
	call := Delta(100, 100, 0.25, 0.01, 0.2, Call)
	put := Delta(100, 100, 0.25, 0.01, 0.2, Put)
	if !within(call-put, 1.0, 1e-6) {
		t.Errorf("call delta - put delta = %v, want ~1 (ignoring dividend/rate drift)", call-put)
	}
}

func TestDeltaDeepITMCallApproachesOne(t *testing.T) {
	d := Delta(200, 100, 0.25, 0.01, 0.2, Call)
	if d < 0.95 {
		t.Errorf("deep ITM call delta = %v, want > 0.95", d)
	}
}

func TestDeltaDeepOTMPutApproachesZero(t *testing.T) {
	d := Delta(200, 100, 0.25, 0.01, 0.2, Put)
	if d < -0.05 {
		t.Errorf("deep OTM put delta = %v, want near 0", d)
	}
}

func TestDeltaZeroOnExpiredContract(t *testing.T) {
	if d := Delta(100, 100, 0, 0.01, 0.2, Call); d != 0 {
		t.Errorf("expired contract delta = %v, want 0", d)
	}
	if d := Delta(100, 100, -0.01, 0.01, 0.2, Call); d != 0 {
		t.Errorf("negative years delta = %v, want 0", d)
	}
}

func TestDeltaZeroOnZeroVol(t *testing.T) {
	if d := Delta(100, 100, 0.25, 0.01, 0, Call); d != 0 {
		t.Errorf("zero-vol delta = %v, want 0", d)
	}
}

func TestGammaPositiveAtTheMoney(t *testing.T) {
	callG := Gamma(100, 100, 0.25, 0.01, 0.2)
	if callG <= 0 {
		t.Fatalf("gamma = %v, want > 0", callG)
	}
}

func TestGammaZeroOnExpiredOrBadInputs(t *testing.T) {
	cases := []struct {
		spot, strike, years, rate, vol float64
	}{
		{100, 100, 0, 0.01, 0.2},
		{0, 100, 0.25, 0.01, 0.2},
		{100, 0, 0.25, 0.01, 0.2},
		{100, 100, 0.25, 0.01, 0},
	}
	for _, c := range cases {
		if g := Gamma(c.spot, c.strike, c.years, c.rate, c.vol); g != 0 {
			t.Errorf("Gamma(%v) = %v, want 0", c, g)
		}
	}
}

func TestGammaHighestNearATM(t *testing.T) {
	atm := Gamma(100, 100, 0.25, 0.01, 0.2)
	otm := Gamma(100, 150, 0.25, 0.01, 0.2)
	itm := Gamma(100, 50, 0.25, 0.01, 0.2)
	if atm <= otm || atm <= itm {
		t.Errorf("ATM gamma %v should exceed far OTM %v and far ITM %v", atm, otm, itm)
	}
}
