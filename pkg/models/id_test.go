package models

import (
	"encoding/json"
	"testing"
)

func TestFlexIDUnmarshal(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected FlexID
		wantErr  bool
	}{
		{name: "String id", raw: `"abc-123"`, expected: "abc-123"},
		{name: "Number id", raw: `42`, expected: "42"},
		{name: "Large number keeps digits", raw: `12345678901234567890`, expected: "12345678901234567890"},
		{name: "Null", raw: `null`, expected: ""},
		{name: "Object rejected", raw: `{}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var id FlexID
			err := json.Unmarshal([]byte(tc.raw), &id)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
			}
			if !tc.wantErr && id != tc.expected {
				t.Errorf("Unmarshal(%s) = %q, want %q", tc.raw, id, tc.expected)
			}
		})
	}
}

func TestSessionAuthenticated(t *testing.T) {
	empty := Session{}
	if empty.Authenticated() {
		t.Error("empty session reports authenticated")
	}
	complete := Session{Token: "tok", User: &User{Name: "Farmer"}}
	if !complete.Authenticated() {
		t.Error("complete session reports unauthenticated")
	}
	tokenOnly := Session{Token: "tok"}
	if tokenOnly.Authenticated() {
		t.Error("session without user reports authenticated")
	}
}
