package collection

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/atinyakov/MedKeeper/internal/models"
)

func patients(names ...string) []models.Patient {
	out := make([]models.Patient, len(names))
	for i, n := range names {
		out[i] = models.Patient{ID: int64(i + 1), Name: n, Phone: "+1" + strconv.Itoa(100+i)}
	}
	return out
}

func TestTotalPages(t *testing.T) {
	cases := []struct{ n, size, want int }{
		{0, 7, 1},
		{1, 7, 1},
		{7, 7, 1},
		{8, 7, 2},
		{15, 5, 3},
		{3, 0, 1},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.n, tc.size); got != tc.want {
			t.Errorf("TotalPages(%d, %d) = %d; want %d", tc.n, tc.size, got, tc.want)
		}
	}
}

func TestDerive_Example(t *testing.T) {
	all := []models.Patient{{ID: 1, Name: "Ann", Phone: "+111"}, {ID: 2, Name: "Bob", Phone: "+222"}}
	v := Derive(all, "an", 1, 1, PatientMatch)
	if len(v.Items) != 1 || v.Items[0].Name != "Ann" {
		t.Fatalf("items = %+v", v.Items)
	}
	if v.TotalPages != 1 || v.Page != 1 || v.Filtered != 1 || v.Total != 2 {
		t.Errorf("view = %+v", v)
	}
}

func TestDerive_PagingAndClamp(t *testing.T) {
	all := patients("a", "b", "c", "d", "e")
	cases := []struct {
		page      int
		wantPage  int
		wantNames string
	}{
		{1, 1, "ab"},
		{2, 2, "cd"},
		{3, 3, "e"},
		{9, 3, "e"},
		{0, 1, "ab"},
		{-4, 1, "ab"},
	}
	for _, tc := range cases {
		v := Derive(all, "", tc.page, 2, PatientMatch)
		var names strings.Builder
		for _, p := range v.Items {
			names.WriteString(p.Name)
		}
		if v.Page != tc.wantPage || names.String() != tc.wantNames {
			t.Errorf("page %d: got page %d items %q; want %d %q", tc.page, v.Page, names.String(), tc.wantPage, tc.wantNames)
		}
	}
}

func TestDerive_EmptyQueryMatchesAll(t *testing.T) {
	all := patients("Ann", "Bob")
	for _, q := range []string{"", "   "} {
		if v := Derive(all, q, 1, 10, PatientMatch); v.Filtered != 2 {
			t.Errorf("query %q filtered %d", q, v.Filtered)
		}
	}
}

func TestDerive_DoesNotAliasInput(t *testing.T) {
	all := patients("Ann", "Bob")
	v := Derive(all, "", 1, 10, PatientMatch)
	v.Items[0].Name = "changed"
	if all[0].Name != "Ann" {
		t.Error("Derive returned a slice aliasing the authoritative collection")
	}
}

func TestPatientMatch(t *testing.T) {
	p := models.Patient{Name: "Ann Lee", Phone: "+8613800138000"}
	for q, want := range map[string]bool{"ann": true, "lee": true, "138001": true, "+86": true, "bob": false} {
		if got := PatientMatch(p, q); got != want {
			t.Errorf("PatientMatch(%q) = %v", q, got)
		}
	}
}

func TestTestMatch(t *testing.T) {
	r := models.TestResult{ID: 42, Result: "PNEUMONIA"}
	for q, want := range map[string]bool{"pneu": true, "42": true, "4": true, "normal": false, "43": false} {
		if got := TestMatch(r, q); got != want {
			t.Errorf("TestMatch(%q) = %v", q, got)
		}
	}
}

// Every visible item matches and the filtered count never exceeds the
// collection.
func TestDerive_FilterMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	letters := "abcdefg"
	word := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = letters[rng.IntN(len(letters))]
		}
		return string(b)
	}
	for range 500 {
		names := make([]string, rng.IntN(30))
		for i := range names {
			names[i] = word(1 + rng.IntN(6))
		}
		all := patients(names...)
		q := word(rng.IntN(3))
		size := 1 + rng.IntN(8)
		full := Derive(all, q, 1, 0, PatientMatch)
		if full.Filtered > len(all) || len(full.Items) != full.Filtered {
			t.Fatalf("filtered %d of %d", full.Filtered, len(all))
		}
		for _, p := range full.Items {
			if q != "" && !PatientMatch(p, q) {
				t.Fatalf("item %+v does not match %q", p, q)
			}
		}
		v := Derive(all, q, 1+rng.IntN(6), size, PatientMatch)
		if v.Page < 1 || v.Page > v.TotalPages || len(v.Items) > size {
			t.Fatalf("bad page state %+v", v)
		}
	}
}
