package testfixtures

// Compare checks that actual holds the same documents as expected once the
// ignored fields are removed from both sides.
//
// Sizes are compared first and a difference yields a *SizeMismatchError.
// Then every expected document, in order, must be equal to at least one actual
// document, otherwise a *DocumentNotFoundError names it. Matching does not
// consume actual documents, so repeated expected documents may all match the
// same actual one.
func Compare(expected, actual Collection, ignored []string) error {
	if len(expected) != len(actual) {
		return &SizeMismatchError{Expected: len(expected), Actual: len(actual)}
	}

	wanted := expected.Without(ignored...)
	got := actual.Without(ignored...)
	for _, doc := range wanted {
		if !got.Contains(doc) {
			return &DocumentNotFoundError{Document: doc}
		}
	}

	return nil
}
