package catalog_test

import (
	"testing"

	"memedex/internal/catalog"
)

func TestWatchedSourceSchedulable(t *testing.T) {
	frequency := 300
	cases := []struct {
		name   string
		source catalog.WatchedSource
		want   bool
	}{
		{"enabled with frequency", catalog.WatchedSource{AutoScanEnabled: true, AutoScanFrequency: &frequency}, true},
		{"enabled without frequency", catalog.WatchedSource{AutoScanEnabled: true}, false},
		{"disabled with frequency", catalog.WatchedSource{AutoScanFrequency: &frequency}, false},
	}
	for _, tc := range cases {
		if got := tc.source.Schedulable(); got != tc.want {
			t.Errorf("%s: Schedulable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
