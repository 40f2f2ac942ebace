package usecase

// extensionFor возвращает расширение файла для формата декодера.
func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "png", "gif", "bmp", "tiff", "webp":
		return format
	default:
		return "bin"
	}
}

