package chat

import (
	"strings"

	"social-chat/internal/models"
)

const (
	previewMediaLimit = 80
	previewTextLimit  = 100
)

// PreviewText builds the condensed text shown in conversation lists and
// notifications. Media-only messages show a label, mixed messages show the
// label plus a short excerpt, plain text is just truncated.
func PreviewText(content string, kind models.MessageKind) string {
	content = strings.TrimSpace(content)
	label := mediaLabel(kind)
	switch {
	case content == "":
		return label
	case label != "":
		return label + " " + truncate(content, previewMediaLimit)
	default:
		return truncate(content, previewTextLimit)
	}
}

func mediaLabel(kind models.MessageKind) string {
	switch kind {
	case models.KindImage:
		return "Image"
	case models.KindVideo:
		return "Video"
	default:
		return ""
	}
}

func truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit-3]) + "..."
}
