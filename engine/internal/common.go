package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// RootCause returns the innermost error of a chain, which was built by wrapping.
func RootCause(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

func evaluateTimer(timer *model.TimerEvent, start time.Time) (time.Time, error) {
	if timer.TimeCycle != "" {
		return gronx.NextTickAfter(timer.TimeCycle, start, false)
	} else if timer.TimeDuration != "" {
		timeDuration, err := engine.NewISO8601Duration(timer.TimeDuration)
		if err != nil {
			return time.Time{}, err
		}
		return timeDuration.Calculate(start), nil
	} else {
		return time.Time{}, errors.New("must specify a time cycle or time duration")
	}
}

func elementPointer(bpmnModel *model.Model, bpmnElement *model.Element) string {
	var ids []string

	curr := bpmnElement
	for curr != nil {
		ids = append(ids, curr.Id)
		if curr.ParentId == "" {
			break
		}
		curr = bpmnModel.ElementById(curr.ParentId)
	}

	ids = append(ids, "") // for leading slash

	slices.Reverse(ids)

	return strings.Join(ids, "/")
}

// newId returns a time ordered UUID, so that ordering by ID reflects the order of creation.
func newId() string {
	return uuid.Must(uuid.NewV7()).String()
}

func marshalValue(value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalValue(value string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func timeOrNil(v pgtype.Timestamp) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch b {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("value %v is not boolean", v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
}
