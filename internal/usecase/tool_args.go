package usecase

import (
	"errors"
	"fmt"
	"slices"

	"jarvis/internal/domain"
)

var errUnknownTool = errors.New("unknown tool")

// toolArgs is the parsed argument set of one tool call.
type toolArgs interface {
	toolName() string
}

type setThemeArgs struct {
	Color domain.ThemeColor
}

type diagnosticsArgs struct {
	Mode string
}

type lockArgs struct {
	Reason string
}

type unlockArgs struct {
	Code string
}

func (setThemeArgs) toolName() string    { return ToolSetSystemTheme }
func (diagnosticsArgs) toolName() string { return ToolRunSystemDiagnostics }
func (lockArgs) toolName() string        { return ToolLockSystem }
func (unlockArgs) toolName() string      { return ToolUnlockSystem }

// parseToolArgs validates raw arguments against the declared surface and
// returns the typed arguments for the named tool. Undeclared keys are ignored.
func parseToolArgs(name string, raw map[string]any) (toolArgs, error) {
	tool, ok := findTool(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownTool, name)
	}

	values := make(map[string]string, len(tool.Params))
	for _, param := range tool.Params {
		value, present, err := stringArg(raw, param.Name)
		if err != nil {
			return nil, err
		}
		if !present {
			if param.Required {
				return nil, fmt.Errorf("missing required argument %q", param.Name)
			}
			continue
		}
		if len(param.Enum) > 0 && !slices.Contains(param.Enum, value) {
			return nil, fmt.Errorf("argument %q must be one of %v, got %q", param.Name, param.Enum, value)
		}
		values[param.Name] = value
	}

	switch name {
	case ToolSetSystemTheme:
		return setThemeArgs{Color: domain.ThemeColor(values["color"])}, nil
	case ToolRunSystemDiagnostics:
		mode := values["mode"]
		if mode == "" {
			mode = DiagnosticsFull
		}
		return diagnosticsArgs{Mode: mode}, nil
	case ToolLockSystem:
		return lockArgs{Reason: values["reason"]}, nil
	case ToolUnlockSystem:
		return unlockArgs{Code: values["code"]}, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownTool, name)
}

func stringArg(raw map[string]any, key string) (string, bool, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return "", false, nil
	}
	text, ok := value.(string)
	if !ok {
		return "", false, fmt.Errorf("argument %q must be a string, got %T", key, value)
	}
	return text, true, nil
}
