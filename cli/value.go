package cli

import (
	"fmt"
	"time"
)

// engineTypeValue is a custom flag value for the type of the engine.
type engineTypeValue string

func (v *engineTypeValue) Set(s string) error {
	switch s {
	case engineTypeMem, engineTypePg:
		*v = engineTypeValue(s)
		return nil
	default:
		return fmt.Errorf("invalid engine %s, expected %s or %s", s, engineTypeMem, engineTypePg)
	}
}

func (v engineTypeValue) String() string {
	return string(v)
}

func (v engineTypeValue) Type() string {
	return "engine"
}

type timeValue time.Time

func (v *timeValue) Set(s string) error {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}

	*v = timeValue(t)
	return nil
}

func (v timeValue) String() string {
	if time.Time(v).IsZero() {
		return ""
	}
	return time.Time(v).Format(time.RFC3339)
}

func (v timeValue) Type() string {
	return "time"
}
