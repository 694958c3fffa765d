package db

import (
	"strings"
	"testing"
)

func TestInitPostgres_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		dsn        string
		wantSubstr string
	}{
		{"invalid DSN", "some=random", "ping postgres"},
		{"empty DSN", "", "ping postgres"},
		{"unreachable host", "postgres://u:p@127.0.0.1:1/medkeeper?sslmode=disable&connect_timeout=1", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := InitPostgres(tc.dsn)
			if err == nil {
				t.Fatalf("InitPostgres(%q) did not return error", tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("InitPostgres(%q) error = %q; want substring %q", tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}

// The repositories map unique violations to duplicates and rely on
// cascading deletes; the schema must keep both.
func TestSchema_Constraints(t *testing.T) {
	for _, want := range []string{
		"username TEXT NOT NULL UNIQUE",
		"phone TEXT NOT NULL UNIQUE",
		"REFERENCES patients(id) ON DELETE CASCADE",
		"labels TEXT[]",
		"scores DOUBLE PRECISION[]",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema lacks %q", want)
		}
	}
}
