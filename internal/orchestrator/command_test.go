package orchestrator

import "testing"

func TestBuildCommandLine(t *testing.T) {
	tests := []struct {
		name string
		prog string
		args []string
		want string
	}{
		{"plain", "ffmpeg", []string{"-y", "-ss", "00:00:01", "-i", "in.mp4"}, "ffmpeg -y -ss 00:00:01 -i in.mp4"},
		{"filter_graph_quoted", "ffmpeg", []string{"-filter_complex", "[0:v]crop=640:320:0:0[tile0]"}, "ffmpeg -filter_complex '[0:v]crop=640:320:0:0[tile0]'"},
		{"spaces_and_quotes", "/opt/my tools/stitcher", []string{"it's"}, `'/opt/my tools/stitcher' 'it'"'"'s'`},
		{"empty_arg", "x", []string{""}, "x ''"},
		{"no_args", "ffmpeg", nil, "ffmpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildCommandLine(tt.prog, tt.args); got != tt.want {
				t.Errorf("BuildCommandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
