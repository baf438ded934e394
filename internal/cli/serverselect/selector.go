// Package serverselect decides which marketplace API a command talks to
package serverselect

import (
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/pilipi-dev/pilipi/internal/cli/config"
	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
)

// Source records how a server was chosen
type Source string

const (
	SourceEnv      Source = "env"
	SourceFlag     Source = "flag"
	SourceSelected Source = "selected"
	SourceOnly     Source = "only"
	SourcePrompt   Source = "prompt"
)

// Choice is a resolved server
type Choice struct {
	Server *config.Server
	Source Source
	// State is what this device remembers about the server
	State userconfig.ServerState
}

// PromptFunc asks the user to pick one of the project's servers
type PromptFunc func(project *config.Config, state *userconfig.UserConfig) (*config.Server, error)

// Resolve picks the server for alias, or with no alias: the selected server,
// the only server, or whatever the user picks. The last two become the
// selection.
func Resolve(project *config.Config, alias string) (*Choice, error) {
	return resolve(project, alias, Prompt)
}

func resolve(project *config.Config, alias string, prompt PromptFunc) (*Choice, error) {
	state, err := userconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	choose := func(server *config.Server, src Source) *Choice {
		return &Choice{Server: server, Source: src, State: state.Server(server.Key())}
	}

	if alias != "" {
		server, err := project.GetServerByAlias(alias)
		if err != nil {
			return nil, err
		}
		return choose(server, SourceFlag), nil
	}

	if state.SelectedServerURL != "" {
		if server, err := project.GetServerByURL(state.SelectedServerURL); err == nil {
			return choose(server, SourceSelected), nil
		}
		// The selection points at a server removed from pilipi.json
	}

	var src Source
	var server *config.Server
	switch len(project.Servers) {
	case 0:
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	case 1:
		server, src = &project.Servers[0], SourceOnly
	default:
		server, err = prompt(project, state)
		if err != nil {
			return nil, err
		}
		src = SourcePrompt
	}

	if err := userconfig.SetSelectedServer(server.Key()); err != nil {
		return nil, fmt.Errorf("failed to save selected server: %w", err)
	}
	return choose(server, src), nil
}

// Lookup finds a project server by URL (trailing slash ignored) or alias
func Lookup(project *config.Config, urlOrAlias string) (*config.Server, error) {
	if server, err := project.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	if server, err := project.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("server with URL or alias '%s' not found in %s", urlOrAlias, config.ConfigFileName)
}

// serverItem is one line of the selection prompt
type serverItem struct {
	Alias    string
	URL      string
	Username string
	Selected bool
}

// Prompt shows an interactive server list, marking the current selection
// and the account last used on each server
func Prompt(project *config.Config, state *userconfig.UserConfig) (*config.Server, error) {
	if len(project.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	}

	items := make([]serverItem, len(project.Servers))
	cursor := 0
	for i := range project.Servers {
		s := &project.Servers[i]
		items[i] = serverItem{
			Alias:    s.Alias,
			URL:      s.URL,
			Username: state.Server(s.Key()).LastUsername,
			Selected: s.Key() == state.SelectedServerURL,
		}
		if items[i].Selected {
			cursor = i
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   `> {{ .Alias | cyan }} {{ .URL | faint }}{{ if .Username }} ({{ .Username }}){{ end }}`,
		Inactive: `  {{ .Alias }} {{ .URL | faint }}{{ if .Username }} ({{ .Username }}){{ end }}`,
		Selected: `{{ .Alias | green }} {{ .URL }}`,
	}

	sel := promptui.Select{
		Label:     "Select a marketplace server",
		Items:     items,
		Templates: templates,
		Size:      10,
		CursorPos: cursor,
	}

	index, _, err := sel.Run()
	if err != nil {
		return nil, fmt.Errorf("server selection cancelled: %w", err)
	}
	return &project.Servers[index], nil
}
