package usecase

import "jarvis/internal/domain"

const (
	ToolSetSystemTheme       = "setSystemTheme"
	ToolRunSystemDiagnostics = "runSystemDiagnostics"
	ToolLockSystem           = "lockSystem"
	ToolUnlockSystem         = "unlockSystem"

	DiagnosticsFull  = "full"
	DiagnosticsQuick = "quick"
)

// ToolSurface lists the interface controls the remote peer may invoke.
func ToolSurface() []domain.ToolDeclaration {
	themes := make([]string, 0, len(domain.ThemeColors))
	for _, color := range domain.ThemeColors {
		themes = append(themes, string(color))
	}

	return []domain.ToolDeclaration{
		{
			Name:        ToolSetSystemTheme,
			Description: "Changes the color theme of the interface.",
			Params: []domain.ToolParam{
				{Name: "color", Description: "Theme color.", Enum: themes, Required: true},
			},
		},
		{
			Name:        ToolRunSystemDiagnostics,
			Description: "Runs a visual system diagnostic sequence.",
			Params: []domain.ToolParam{
				{Name: "mode", Description: "Diagnostic depth.", Enum: []string{DiagnosticsFull, DiagnosticsQuick}},
			},
		},
		{
			Name:        ToolLockSystem,
			Description: "Engages security lockdown.",
			Params: []domain.ToolParam{
				{Name: "reason", Description: "Why the system is being locked."},
			},
		},
		{
			Name:        ToolUnlockSystem,
			Description: "Disengages security lockdown.",
			Params: []domain.ToolParam{
				{Name: "code", Description: "Authorization code."},
			},
		},
	}
}

func findTool(name string) (domain.ToolDeclaration, bool) {
	for _, tool := range ToolSurface() {
		if tool.Name == name {
			return tool, true
		}
	}
	return domain.ToolDeclaration{}, false
}
