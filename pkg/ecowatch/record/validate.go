package record

// fieldSpec pairs a required field with the kind it must have
type fieldSpec struct {
	name string
	kind Kind
}

var requiredFields = []fieldSpec{
	{FieldTimestamp, KindString},
	{FieldSensorType, KindString},
	{FieldRoom, KindString},
	{FieldTemperature, KindNumber},
	{FieldHumidity, KindNumber},
	{FieldCO2Level, KindNumber},
}

// RequiredFields returns the names of the fields every reading must carry, in check order
func RequiredFields() []string {
	names := make([]string, len(requiredFields))
	for i, f := range requiredFields {
		names[i] = f.name
	}
	return names
}

// Validate checks that raw carries every required field with the right
// primitive kind. Value ranges are not checked; a negative humidity passes.
// The first failure is returned as a *ValidationError.
func Validate(raw RawReading) error {
	for _, f := range requiredFields {
		v, ok := raw.Field(f.name)
		if !ok {
			return &ValidationError{Field: f.name, Reason: "is missing"}
		}
		if v.Kind() != f.kind {
			return &ValidationError{
				Field:  f.name,
				Reason: "must be a " + f.kind.String() + ", got " + v.Kind().String(),
			}
		}
	}
	return nil
}
