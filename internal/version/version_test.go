package version

import "testing"

func TestString(t *testing.T) {
	want := "dev (unknown) built unknown"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	info := Get()
	if info.Version != Version || info.Commit != Commit || info.BuildTime != BuildTime {
		t.Errorf("Get() = %+v", info)
	}
}
