package main

import "testing"

func TestBinaryName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"java.lang.String", "java/lang/String"},
		{"java/lang/String", "java/lang/String"},
		{"com.example.Main.class", "com/example/Main"},
		{"[Ljava.lang.String;", "[Ljava.lang.String;"},
		{"[I", "[I"},
	}
	for _, tt := range tests {
		if got := binaryName(tt.in); got != tt.want {
			t.Errorf("binaryName(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
