package filecheck

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{
	Music:    20 << 20,
	Video:    500 << 20,
	Photo:    10 << 20,
	Document: 10 << 20,
}

func reason(t *testing.T, err error) Reason {
	t.Helper()
	var rej *RejectError
	require.True(t, errors.As(err, &rej), "expected *RejectError, got %v", err)
	return rej.Reason
}

func TestValidate_JPEGAcceptedAsJPEGRejectedAsPNG(t *testing.T) {
	c := New(testLimits)
	head := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	assert.NoError(t, c.Validate(Photo, "image/jpeg", head, 1024))

	err := c.Validate(Photo, "image/png", head, 1024)
	require.Error(t, err)
	assert.Equal(t, ReasonSignatureMismatch, reason(t, err))
}

func TestValidate(t *testing.T) {
	c := New(testLimits)
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}
	webp := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	wav := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")
	mp4 := []byte("\x00\x00\x00\x20ftypisom\x00\x00")
	mp3 := []byte("ID3\x04\x00\x00\x00\x00")
	mp3Sync := []byte{0xFF, 0xFB, 0x90, 0x64}
	webm := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}
	pdf := []byte("%PDF-1.7\n")

	tests := []struct {
		name   string
		cat    Category
		mime   string
		head   []byte
		size   int64
		reason Reason
	}{
		{"png ok", Photo, "image/png", png, 100, ""},
		{"webp ok", Photo, "image/webp", webp, 100, ""},
		{"mime params ignored", Photo, "IMAGE/PNG; charset=binary", png, 100, ""},
		{"wav ok", Music, "audio/wav", wav, 100, ""},
		{"mp3 id3 ok", Music, "audio/mpeg", mp3, 100, ""},
		{"mp3 frame sync ok", Music, "audio/mpeg", mp3Sync, 100, ""},
		{"m4a ok", Music, "audio/mp4", mp4, 100, ""},
		{"mp4 ok", Video, "video/mp4", mp4, 100, ""},
		{"webm ok", Video, "video/webm", webm, 100, ""},
		{"pdf ok", Document, "application/pdf", pdf, 100, ""},

		{"photo mime in music slot", Music, "image/png", png, 100, ReasonUnsupportedType},
		{"unknown mime", Photo, "image/svg+xml", []byte("<svg"), 100, ReasonUnsupportedType},
		{"empty mime", Photo, "", png, 100, ReasonUnsupportedType},
		{"too large", Photo, "image/png", png, 10<<20 + 1, ReasonTooLarge},
		{"exactly at limit", Photo, "image/png", png, 10 << 20, ""},
		{"empty size", Photo, "image/png", png, 0, ReasonEmpty},
		{"empty head", Photo, "image/png", nil, 100, ReasonEmpty},
		{"riff but wave declared webp", Photo, "image/webp", wav, 100, ReasonSignatureMismatch},
		{"short head", Document, "application/pdf", []byte("%PD"), 100, ReasonSignatureMismatch},
		{"html posing as mp4", Video, "video/mp4", []byte("<html><body>"), 100, ReasonSignatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.cat, tt.mime, tt.head, tt.size)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.reason, reason(t, err))
		})
	}
}

func TestValidate_MissingLimitRejects(t *testing.T) {
	c := New(Limits{})
	err := c.Validate(Photo, "image/png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, 1)
	require.Error(t, err)
	assert.Equal(t, ReasonTooLarge, reason(t, err))
}

func TestRejectError_Message(t *testing.T) {
	err := &RejectError{Reason: ReasonTooLarge, Category: Photo, Size: 11, Limit: 10}
	assert.Contains(t, err.Error(), "file too large")

	err = &RejectError{Reason: ReasonUnsupportedType, Category: Music, MIME: "text/plain"}
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Music ")
	assert.True(t, ok)
	assert.Equal(t, Music, c)

	_, ok = ParseCategory("archive")
	assert.False(t, ok)

	assert.Len(t, Categories(), 4)
	assert.Contains(t, AllowedTypes(Document), "application/pdf")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "song.mp3", 100, "song.mp3"},
		{"spaces dropped", "my song.mp3", 100, "mysong.mp3"},
		{"traversal", "../../etc/passwd", 100, "etc_passwd"},
		{"windows path", `C:\Users\me\clip.mov`, 100, "C_Users_me_clip.mov"},
		{"fullwidth normalized", "ＡＢＣ.png", 100, "ABC.png"},
		{"non latin only", "音源.mp3", 100, "file.mp3"},
		{"empty", "", 100, "file"},
		{"hidden file", ".env", 100, "file.env"},
		{"collapse underscores", "a___b//c.pdf", 100, "a_b_c.pdf"},
		{"default max", "x.pdf", 0, "x.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in, tt.max))
		})
	}
}

func TestSanitizeFilename_NoSeparators(t *testing.T) {
	for _, in := range []string{"../../etc/passwd", "..\\..\\boot.ini", "/abs/path/x.jpg", "a/../../b"} {
		got := SanitizeFilename(in, 100)
		assert.NotContains(t, got, "/", "input %q", in)
		assert.NotContains(t, got, "\\", "input %q", in)
		assert.False(t, strings.HasPrefix(got, "."), "input %q gave %q", in, got)
	}
}

func TestSanitizeFilename_TruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("a", 250) + ".mp4"

	got := SanitizeFilename(long, 100)

	assert.Len(t, got, 100)
	assert.True(t, strings.HasSuffix(got, ".mp4"), "got %q", got)
}
