package fiscal

// ValidateCheckQuery checks a built payload for locally-detectable defects.
// It runs strictly before any network call and needs no token or transport
// state. Scanning stops at the first line with an unresolved VAT.
func ValidateCheckQuery(query *CheckQuery) []ValidationError {
	var errs []ValidationError

	if query.Receipt == nil {
		return errs
	}

	client := query.Receipt.Client
	if client.Email == "" && client.Phone == "" {
		errs = append(errs, ValidationError{
			Code:    ErrCodeMissingContact,
			Message: "check client must carry an email or a phone",
		})
	}

	for _, item := range query.Receipt.Items {
		if item.VAT.Type == nil {
			errs = append(errs, ValidationError{
				Code:    ErrCodeMissingTax,
				Message: "check line has no resolvable VAT type",
			})
			break
		}
	}

	return errs
}
