package main

import (
	"reflect"
	"testing"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		in      []string
		want    map[string]any
		wantErr bool
	}{
		{in: nil, want: nil},
		{in: []string{"brightness=80", "on=true", "scene=evening"}, want: map[string]any{"brightness": float64(80), "on": true, "scene": "evening"}},
		{in: []string{"empty="}, want: map[string]any{"empty": ""}},
		{in: []string{"novalue"}, wantErr: true},
		{in: []string{"=5"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseParams(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseParams(%v) error=nil, want non-nil", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseParams(%v) returned error: %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseParams(%v)=%v, want %v", tt.in, got, tt.want)
		}
	}
}
