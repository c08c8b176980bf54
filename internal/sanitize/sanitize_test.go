package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Alice Smith", want: "Alice Smith"},
		{in: "  padded  ", want: "padded"},
		{in: "<script>alert(1)</script>Bob", want: "Bob"},
		{in: "<b>Carol</b> O'Neil", want: "Carol O'Neil"},
	}
	for _, tc := range tests {
		if got := Text(tc.in); got != tc.want {
			t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
