package domain

// Answer is the synthesized response to a question, with its translated
// variant. Translated equals Answer when no translation was requested.
type Answer struct {
	Question   string
	Answer     string
	Translated string
}
