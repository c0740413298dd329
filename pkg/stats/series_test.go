package stats

import "testing"

func TestTimeSeriesAppend(t *testing.T) {
	ts := NewTimeSeries("underlying_mid", 5)

	ts.Append(1.0, 100)
	ts.Append(2.0, 200)
	ts.Append(3.0, 300)

	if ts.Len() != 3 {
		t.Errorf("Len() = %v, want 3", ts.Len())
	}

	data := ts.GetAll()
	expected := []float64{1.0, 2.0, 3.0}
	for i, val := range expected {
		if !almostEqual(data[i], val, 1e-10) {
			t.Errorf("Data[%d] = %v, want %v", i, data[i], val)
		}
	}
}

func TestTimeSeriesMaxLengthDropsOldest(t *testing.T) {
	ts := NewTimeSeries("underlying_mid", 3)

	ts.Append(1.0, 100)
	ts.Append(2.0, 200)
	ts.Append(3.0, 300)
	ts.Append(4.0, 400)
	ts.Append(5.0, 500)

	if ts.Len() != 3 {
		t.Errorf("Len() = %v, want 3 (max length)", ts.Len())
	}

	data := ts.GetAll()
	expected := []float64{3.0, 4.0, 5.0}
	for i, val := range expected {
		if !almostEqual(data[i], val, 1e-10) {
			t.Errorf("Data[%d] = %v, want %v", i, data[i], val)
		}
	}

	wantTS := []float64{300, 400, 500}
	for i, val := range wantTS {
		if ts.Timestamps[i] != val {
			t.Errorf("Timestamps[%d] = %v, want %v", i, ts.Timestamps[i], val)
		}
	}
}

func TestTimeSeriesGetAllReturnsCopy(t *testing.T) {
	ts := NewTimeSeries("underlying_mid", 5)
	ts.Append(1.0, 1)

	data := ts.GetAll()
	data[0] = 99.0

	if got := ts.GetAll()[0]; got != 1.0 {
		t.Errorf("internal Data mutated via GetAll() copy, got %v", got)
	}
}

func TestTimeSeriesConcurrentAppend(t *testing.T) {
	ts := NewTimeSeries("underlying_mid", 100)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 10; j++ {
				ts.Append(float64(id*10+j), float64(id*10+j))
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if ts.Len() != 100 {
		t.Errorf("Len() = %v, want 100", ts.Len())
	}
}
