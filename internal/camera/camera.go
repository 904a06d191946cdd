// Package camera acquires single still frames from a network camera
// over RTSP. A Source owns one transport connection: Connect, read one
// frame, Release. It is not safe for concurrent use; callers construct
// one Source per operation. Retry policy belongs to the caller.
package camera

import (
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

type Source struct {
	url      string
	username string
	password string
	cap      *gocv.VideoCapture
	log      zerolog.Logger
}

// NewSource addresses a camera endpoint, optionally with credentials
// embedded in the connection URL.
func NewSource(url, username, password string, log zerolog.Logger) *Source {
	return &Source{
		url:      url,
		username: username,
		password: password,
		log:      log,
	}
}

// Connect opens the RTSP transport. It never panics or returns an
// error value: transport failures are logged and reported as false.
func (s *Source) Connect() bool {
	rtspURL := fmt.Sprintf("rtsp://%s", s.url)
	if s.username != "" && s.password != "" {
		rtspURL = fmt.Sprintf("rtsp://%s:%s@%s", s.username, s.password, s.url)
	}

	cap, err := gocv.OpenVideoCapture(rtspURL)
	if err != nil {
		s.log.Error().Err(err).Str("camera", s.url).Msg("failed to connect to camera")
		return false
	}
	if !cap.IsOpened() {
		cap.Close()
		s.log.Error().Str("camera", s.url).Msg("camera stream did not open")
		return false
	}

	s.cap = cap
	return true
}

// Frame reads and decodes exactly one frame, returned as JPEG bytes.
// Returns false when the connection is closed or the read fails.
func (s *Source) Frame() ([]byte, bool) {
	if s.cap == nil || !s.cap.IsOpened() {
		return nil, false
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := s.cap.Read(&img); !ok || img.Empty() {
		s.log.Error().Str("camera", s.url).Msg("failed to read frame from camera")
		return nil, false
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		s.log.Error().Err(err).Str("camera", s.url).Msg("failed to encode frame")
		return nil, false
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, true
}

// Release frees the connection. Idempotent; safe to call when the
// source never connected.
func (s *Source) Release() {
	if s.cap != nil {
		s.cap.Close()
		s.cap = nil
	}
}
