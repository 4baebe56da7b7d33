package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	yt "github.com/kkdai/youtube/v2"

	"quizly-backend/internal/models"
)

// ResolveVideoURL extracts a video id from the common YouTube URL
// shapes and rebuilds the canonical watch URL from it. Unrecognized
// hosts and missing ids fail hard; no partial identity is returned.
func ResolveVideoURL(raw string) (models.VideoIdentity, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return models.VideoIdentity{}, &ValidationError{Message: "Could not extract a YouTube video ID from the given URL."}
	}

	var videoID string
	switch strings.ToLower(parsed.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		videoID = parsed.Query().Get("v")
	case "youtu.be", "www.youtu.be":
		videoID = strings.TrimPrefix(parsed.Path, "/")
		if i := strings.Index(videoID, "/"); i >= 0 {
			videoID = videoID[:i]
		}
	}

	if videoID == "" {
		return models.VideoIdentity{}, &ValidationError{Message: "Could not extract a YouTube video ID from the given URL."}
	}

	return models.VideoIdentity{
		VideoID:      videoID,
		CanonicalURL: CanonicalVideoURL(videoID),
	}, nil
}

// CanonicalVideoURL builds the single normalized URL form stored for a
// video.
func CanonicalVideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// YouTubeService downloads the best available audio-only stream for a
// video into local storage.
type YouTubeService struct {
	client      *yt.Client
	storagePath string
}

func NewYouTubeService(storagePath string) *YouTubeService {
	return &YouTubeService{
		client:      &yt.Client{},
		storagePath: storagePath,
	}
}

const maxAudioBytes = 100 * 1024 * 1024 // 100MB safety cap

// DownloadAudio fetches the highest-bitrate audio stream for the video
// and writes it to a run-scoped path. The runID in the filename keeps
// concurrent requests for the same video from racing on one file. The
// caller owns the returned file and is responsible for removing it.
func (s *YouTubeService) DownloadAudio(ctx context.Context, identity models.VideoIdentity, runID uuid.UUID) (string, string, error) {
	video, err := s.client.GetVideoContext(ctx, identity.CanonicalURL)
	if err != nil {
		return "", "", &DependencyError{Message: fmt.Sprintf("failed to fetch YouTube video metadata: %v", err)}
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", "", &DependencyError{Message: "no audio formats available"}
	}

	best := formats[0]
	for _, f := range formats {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	mimeType := strings.TrimSpace(strings.Split(best.MimeType, ";")[0])
	if mimeType == "" {
		mimeType = "audio/mp4"
	}

	stream, _, err := s.client.GetStreamContext(ctx, video, &best)
	if err != nil {
		return "", "", &DependencyError{Message: fmt.Sprintf("failed to open audio stream: %v", err)}
	}
	defer stream.Close()

	dir := filepath.Join(s.storagePath, "audio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", identity.VideoID, runID, extensionForMime(mimeType)))
	file, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to create audio file: %w", err)
	}

	limited := io.LimitReader(stream, maxAudioBytes+1)
	written, err := io.Copy(file, limited)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > maxAudioBytes {
		err = fmt.Errorf("audio stream exceeds %d MB limit", maxAudioBytes/(1024*1024))
	}
	if err != nil {
		os.Remove(path)
		return "", "", &DependencyError{Message: fmt.Sprintf("failed to download audio stream: %v", err)}
	}

	return path, mimeType, nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg":
		return "mp3"
	default:
		return "m4a"
	}
}
