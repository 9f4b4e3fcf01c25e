package chat

// AudioExt maps a recording MIME type to a file extension for stored blobs.
// Unknown types get a neutral extension rather than an error; the bytes are
// stored either way.
func AudioExt(contentType string) string {
	switch contentType {
	case "audio/webm":
		return ".webm"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	default:
		return ".bin"
	}
}
