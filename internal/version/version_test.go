package version

import "testing"

func TestStringReflectsBuildVersion(t *testing.T) {
	cleanup := ForTesting("1.2.3-test")
	t.Cleanup(cleanup)

	if got := String(); got != "1.2.3-test" {
		t.Fatalf("expected version 1.2.3-test, got %s", got)
	}
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "dev", want: "dev"},
		{in: "0.3.0", want: "v0.3.0"},
		{in: "v1.0.0", want: "v1.0.0"},
	}
	for _, tc := range tests {
		if got := FormatVersion(tc.in); got != tc.want {
			t.Fatalf("FormatVersion(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
