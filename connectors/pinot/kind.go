package pinot

import "fmt"

// SplitKind selects the remote execution strategy of a Split.
type SplitKind uint8

const (
	// SplitKindUnknown is the zero value and never valid on a constructed split.
	SplitKindUnknown SplitKind = iota

	// SplitKindBroker pushes the whole query down to a broker which fans it
	// out and aggregates the results.
	SplitKindBroker

	// SplitKindSegment scans a set of segments directly on the server that
	// owns them.
	SplitKindSegment
)

func (k SplitKind) String() string {
	switch k {
	case SplitKindBroker:
		return "BROKER"
	case SplitKindSegment:
		return "SEGMENT"
	default:
		return fmt.Sprintf("SplitKind(%d)", uint8(k))
	}
}

func (k SplitKind) MarshalText() ([]byte, error) {
	switch k {
	case SplitKindBroker, SplitKindSegment:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal unknown split kind %d", uint8(k))
	}
}

func (k *SplitKind) UnmarshalText(text []byte) error {
	kind, err := ParseSplitKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseSplitKind parses "BROKER" or "SEGMENT".
func ParseSplitKind(s string) (SplitKind, error) {
	switch s {
	case "BROKER":
		return SplitKindBroker, nil
	case "SEGMENT":
		return SplitKindSegment, nil
	default:
		return SplitKindUnknown, fmt.Errorf("unknown split kind %q", s)
	}
}
