package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseGender(t *testing.T) {
	cases := []struct {
		in   string
		want Gender
		ok   bool
	}{
		{"male", GenderMale, true},
		{" FEMALE ", GenderFemale, true},
		{"Other", GenderOther, true},
		{"unknown", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseGender(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseGender(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPatientForm_Input(t *testing.T) {
	f := PatientForm{
		Name:        "  Ann Lee ",
		DateOfBirth: "1990-02-03",
		Gender:      "female",
		CountryCode: "+86",
		LocalPhone:  "13800138000 ",
		Address:     " Main St ",
	}
	in := f.Input()
	if in.Name != "Ann Lee" {
		t.Errorf("Name = %q", in.Name)
	}
	if in.Gender != GenderFemale {
		t.Errorf("Gender = %q", in.Gender)
	}
	if in.Phone != "+8613800138000" {
		t.Errorf("Phone = %q", in.Phone)
	}
	if in.Address != "Main St" {
		t.Errorf("Address = %q", in.Address)
	}

	f.Gender = "robot"
	if got := f.Input().Gender; got != "robot" {
		t.Errorf("unknown gender should pass through, got %q", got)
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
		err  bool
	}{
		{"api layout", `"2024-05-01 10:20:30"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC), false},
		{"rfc3339", `"2024-05-01T12:20:30+02:00"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC), false},
		{"null", `null`, time.Time{}, false},
		{"empty", `""`, time.Time{}, false},
		{"garbage", `"yesterday"`, time.Time{}, true},
		{"number", `42`, time.Time{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tc.in), &ts)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error for %s", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ts.Equal(tc.want) {
				t.Errorf("got %v, want %v", ts.Time, tc.want)
			}
		})
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	ts := Timestamp{time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)}
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-05-01 10:20:30"` {
		t.Errorf("got %s", b)
	}
	b, _ = json.Marshal(Timestamp{})
	if string(b) != "null" {
		t.Errorf("zero timestamp = %s; want null", b)
	}
}

func TestTestResult_Band(t *testing.T) {
	cases := []struct {
		c    float64
		want Band
	}{
		{0.95, BandHigh},
		{0.8, BandHigh},
		{0.79, BandMedium},
		{0.5, BandMedium},
		{0.49, BandLow},
		{0, BandLow},
	}
	for _, tc := range cases {
		if got := (TestResult{Confidence: tc.c}).Band(); got != tc.want {
			t.Errorf("Band(%v) = %s; want %s", tc.c, got, tc.want)
		}
	}
}

func TestTestSubmitted_Predictions(t *testing.T) {
	body := `{"message":"Test created successfully","patient_id":3,"test_id":9,
		"result":"PNEUMONIA","confidence":0.91,
		"all_predictions":[["NORMAL",0.09],["PNEUMONIA",0.91]]}`
	var out TestSubmitted
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.TestID != 9 || len(out.AllPredictions) != 2 {
		t.Fatalf("unexpected decode: %+v", out)
	}
	if p := out.AllPredictions[1]; p.Label != "PNEUMONIA" || p.Confidence != 0.91 {
		t.Errorf("prediction = %+v", p)
	}

	var bad Prediction
	if err := json.Unmarshal([]byte(`["only-label"]`), &bad); err == nil {
		t.Error("expected error for single-element prediction")
	}
}
