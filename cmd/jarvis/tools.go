package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"jarvis/internal/domain"
	"jarvis/internal/usecase"
)

type toolParamView struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Required    bool     `json:"required"`
}

type toolView struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Params      []toolParamView `json:"params"`
}

func toolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "Print the tools declared to the model as JSON",
		Action: func(c *cli.Context) error {
			data, err := json.MarshalIndent(toolViews(usecase.ToolSurface()), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, string(data))
			return err
		},
	}
}

func toolViews(tools []domain.ToolDeclaration) []toolView {
	views := make([]toolView, 0, len(tools))
	for _, tool := range tools {
		view := toolView{Name: tool.Name, Description: tool.Description, Params: []toolParamView{}}
		for _, param := range tool.Params {
			view.Params = append(view.Params, toolParamView{
				Name:        param.Name,
				Description: param.Description,
				Enum:        param.Enum,
				Required:    param.Required,
			})
		}
		views = append(views, view)
	}
	return views
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			data, err := json.Marshal(map[string]string{"version": version, "commit": commit})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, string(data))
			return err
		},
	}
}
