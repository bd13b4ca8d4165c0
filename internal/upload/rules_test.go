package upload

import (
	"errors"
	"testing"
)

func TestRuleCheck(t *testing.T) {
	video := VideoRule(DefaultMaxVideoSize)
	thumb := ThumbnailRule(DefaultMaxThumbnailSize)

	cases := []struct {
		name        string
		rule        Rule
		size        int64
		contentType string
		wantType    string
		wantExt     string
		wantErr     bool
	}{
		{"mp4", video, 50 << 20, "video/mp4", "video/mp4", ".mp4", false},
		{"mp4_with_params", video, 50 << 20, "video/mp4; codecs=avc1", "", "", true},
		{"mp4_spaced_params", video, 50 << 20, "video/mp4 ; foo=bar", "", "", true},
		{"mp4_uppercase", video, 50 << 20, "VIDEO/MP4", "", "", true},
		{"mp4_mixed_case", video, 50 << 20, "Video/Mp4", "", "", true},
		{"mp4_trailing_space", video, 50 << 20, "video/mp4 ", "", "", true},
		{"exactly_at_ceiling", video, DefaultMaxVideoSize, "video/mp4", "video/mp4", ".mp4", false},
		{"over_ceiling", video, DefaultMaxVideoSize + 1, "video/mp4", "", "", true},
		{"avi", video, 1024, "video/avi", "", "", true},
		{"empty_type", video, 1024, "", "", "", true},
		{"malformed_type", video, 1024, "video/mp4;;=", "", "", true},
		{"png_as_video", video, 1024, "image/png", "", "", true},
		{"png_uppercase_thumbnail", thumb, 1024, "IMAGE/PNG", "", "", true},
		{"png_thumbnail", thumb, 1024, "image/png", "image/png", ".png", false},
		{"jpeg_thumbnail", thumb, 1024, "image/jpeg", "image/jpeg", ".jpeg", false},
		{"gif_thumbnail", thumb, 1024, "image/gif", "", "", true},
		{"oversized_thumbnail", thumb, DefaultMaxThumbnailSize + 1, "image/png", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mediaType, ext, err := tc.rule.Check(tc.size, tc.contentType)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q %q", mediaType, ext)
				}
				if KindOf(err) != KindClientInput {
					t.Fatalf("kind = %v, want %v", KindOf(err), KindClientInput)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if mediaType != tc.wantType || ext != tc.wantExt {
				t.Fatalf("got (%q, %q) want (%q, %q)", mediaType, ext, tc.wantType, tc.wantExt)
			}
		})
	}
}

func TestRuleCheck_tooLargeIsWrapped(t *testing.T) {
	_, _, err := VideoRule(100).Check(101, "video/mp4")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge in chain", err)
	}
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1 << 30, "1GB"},
		{10 << 20, "10MB"},
		{1500, "1500 bytes"},
	}
	for _, tc := range cases {
		if got := humanSize(tc.n); got != tc.want {
			t.Fatalf("humanSize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
