package stockwatch

// Converter renders notification HTML as Markdown for channels that also
// carry a plain-text version, such as email.
type Converter interface {
	// Convert transforms HTML content into Markdown.
	Convert(html string) (string, error)
}
