package registry

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/overlayd/internal/classname"
)

// Default visibility class names.
const (
	DefaultShowClass   = "show"
	DefaultHiddenClass = "hidden"
)

// ClassKey is the background parameter that carries the visibility class.
const ClassKey = "class"

// Project returns the visibility class for a registry: the show class when
// it holds at least one session, the hidden class otherwise, followed by the
// caller supplied background class.
func Project(nonEmpty bool, showClass, hiddenClass, backgroundClass string) string {
	state := hiddenClass
	if nonEmpty {
		state = showClass
	}
	return classname.New(state, backgroundClass).String()
}

// classNameOrDefault returns name, or fallback when name is blank.
func classNameOrDefault(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// backgroundClassOf extracts the host supplied class from background parameters.
func backgroundClassOf(params map[string]any) string {
	switch v := params[ClassKey].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
