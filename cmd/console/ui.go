package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/patchworkisles/engine/internal/engine"
	"github.com/patchworkisles/engine/internal/save"
	"github.com/patchworkisles/engine/pkg/world"
)

type phase int

const (
	phaseName phase = iota
	phaseStart
	phasePlaying
	phaseOver
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	lockedStyle = lipgloss.NewStyle().Faint(true)
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	endStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
)

var titler = cases.Title(language.English)

// ConsoleUI is the BubbleTea model that runs the play loop against an
// in-process engine.
type ConsoleUI struct {
	eng         *engine.Engine
	phase       phase
	starts      []world.Start
	pendingName string
	nameIn      textinput.Model
	body        viewport.Model
	messages    []string
	note        string
	width       int
	height      int
	ready       bool
	err         error
}

func newConsoleUI(eng *engine.Engine) *ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = "Traveler"
	ti.CharLimit = 40
	ti.Focus()
	return &ConsoleUI{
		eng:    eng,
		phase:  phaseName,
		nameIn: ti,
		starts: eng.AvailableStarts(),
	}
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return textinput.Blink
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width, ui.height = msg.Width, msg.Height
		if !ui.ready {
			ui.body = viewport.New(msg.Width, msg.Height-6)
			ui.ready = true
		} else {
			ui.body.Width = msg.Width
			ui.body.Height = msg.Height - 6
		}
		ui.refresh()
		return ui, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return ui, tea.Quit
		}
		switch ui.phase {
		case phaseName:
			return ui.updateName(msg)
		case phaseStart:
			return ui.updateStart(msg)
		case phasePlaying:
			return ui.updatePlaying(msg)
		case phaseOver:
			if msg.String() == "q" || msg.String() == "enter" {
				return ui, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	ui.body, cmd = ui.body.Update(msg)
	return ui, cmd
}

func (ui *ConsoleUI) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		name := strings.TrimSpace(ui.nameIn.Value())
		if name == "" {
			name = "Traveler"
		}
		ui.nameIn.Blur()
		if len(ui.starts) == 0 {
			ui.err = fmt.Errorf("world has no available starts")
			ui.phase = phaseOver
			return ui, nil
		}
		ui.pendingName = name
		ui.phase = phaseStart
		return ui, nil
	}
	var cmd tea.Cmd
	ui.nameIn, cmd = ui.nameIn.Update(msg)
	return ui, cmd
}

func (ui *ConsoleUI) updateStart(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n, err := strconv.Atoi(msg.String())
	if err != nil || n < 1 || n > len(ui.starts) {
		return ui, nil
	}
	start := ui.starts[n-1]
	messages, beginErr := ui.eng.Begin(start.StartID(), ui.pendingName)
	ui.messages = messages
	if beginErr != nil {
		ui.err = beginErr
		ui.phase = phaseOver
		ui.refresh()
		return ui, nil
	}
	ui.afterTransition()
	return ui, nil
}

func (ui *ConsoleUI) updatePlaying(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return ui, tea.Quit
	case "ctrl+s":
		if path, err := ui.eng.QuickSave(); err != nil {
			ui.note = fmt.Sprintf("Save failed: %v", err)
		} else {
			ui.note = fmt.Sprintf("Saved to %s", path)
		}
		ui.refresh()
		return ui, nil
	case "ctrl+l":
		if err := ui.eng.LoadSlot(save.QuickSlot); err != nil {
			ui.note = fmt.Sprintf("Load failed: %v", err)
		} else {
			ui.note = "Quick save loaded."
			ui.messages = nil
		}
		ui.afterTransition()
		return ui, nil
	}

	if n, err := strconv.Atoi(key); err == nil {
		available, _, choicesErr := ui.eng.Choices()
		if choicesErr != nil {
			ui.err = choicesErr
			ui.phase = phaseOver
			ui.refresh()
			return ui, nil
		}
		if n < 1 || n > len(available) {
			return ui, nil
		}
		messages, chooseErr := ui.eng.Choose(available[n-1].Index)
		ui.messages = messages
		ui.note = ""
		if chooseErr != nil {
			ui.err = chooseErr
			ui.phase = phaseOver
			ui.refresh()
			return ui, nil
		}
		ui.afterTransition()
		return ui, nil
	}

	var cmd tea.Cmd
	ui.body, cmd = ui.body.Update(msg)
	return ui, cmd
}

// afterTransition moves the UI phase to match the engine's status and
// redraws.
func (ui *ConsoleUI) afterTransition() {
	switch ui.eng.Status() {
	case engine.Ended, engine.Perished:
		ui.phase = phaseOver
	default:
		ui.phase = phasePlaying
	}
	ui.refresh()
}

// refresh rebuilds the viewport content for the current phase.
func (ui *ConsoleUI) refresh() {
	if !ui.ready {
		return
	}
	width := ui.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	switch ui.phase {
	case phasePlaying, phaseOver:
		node, err := ui.eng.CurrentNode()
		if err == nil {
			title := node.Title
			if title == "" {
				title = ui.eng.World().Title
			}
			b.WriteString(titleStyle.Render(title) + "\n\n")
			b.WriteString(wordwrap.String(node.Text, width) + "\n")
		}
		for _, m := range ui.messages {
			b.WriteString(noteStyle.Render(m) + "\n")
		}
		if ui.phase == phaseOver {
			if ui.err != nil {
				b.WriteString("\n" + endStyle.Render(fmt.Sprintf("Session error: %v", ui.err)) + "\n")
			} else if ending := ui.eng.Ending(); ending != "" {
				verb := "Ending reached"
				if ui.eng.Status() == engine.Perished {
					verb = "You have perished. Ending"
				}
				b.WriteString("\n" + endStyle.Render(fmt.Sprintf("*** %s: %q ***", verb, ending)) + "\n")
			}
			b.WriteString(noteStyle.Render("\nPress q to quit.") + "\n")
		} else {
			available, locked, choicesErr := ui.eng.Choices()
			if choicesErr != nil {
				ui.err = choicesErr
				ui.phase = phaseOver
				ui.refresh()
				return
			}
			b.WriteString("\n")
			for i, ch := range available {
				marker := ""
				if ch.Visited {
					marker = " (visited)"
				}
				b.WriteString(fmt.Sprintf("  %d. %s%s\n", i+1, ch.Text, noteStyle.Render(marker)))
			}
			for _, ch := range locked {
				b.WriteString(lockedStyle.Render(fmt.Sprintf("  x. %s [%s]", ch.Text, ch.Requirement)) + "\n")
			}
		}
	}
	ui.body.SetContent(b.String())
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return "Loading..."
	}
	switch ui.phase {
	case phaseName:
		return fmt.Sprintf("\n  %s\n\n  Name your character:\n\n  %s\n",
			titleStyle.Render(ui.eng.World().Title), ui.nameIn.View())
	case phaseStart:
		var b strings.Builder
		b.WriteString("\n  " + titleStyle.Render("Choose your origin:") + "\n\n")
		for i, s := range ui.starts {
			title := s.Title
			if title == "" {
				title = s.StartID()
			}
			b.WriteString(fmt.Sprintf("  %d. %s", i+1, title))
			if len(s.Tags) > 0 {
				b.WriteString(noteStyle.Render(fmt.Sprintf("  [%s]", strings.Join(s.Tags, ", "))))
			}
			b.WriteString("\n")
		}
		return b.String()
	default:
		return ui.body.View() + "\n" + ui.statusLine()
	}
}

func (ui *ConsoleUI) statusLine() string {
	p := ui.eng.Player()
	if p == nil {
		return ""
	}
	area := titler.String(ui.eng.Session().ActiveArea)
	status := fmt.Sprintf("HP:%d | %s | Tags: %s | Inv: %d items",
		p.HP, area, strings.Join(p.Tags, ", "), len(p.Inventory))
	line := statusStyle.Render(status)
	if ui.note != "" {
		line += "\n" + noteStyle.Render(ui.note)
	}
	return line + "\n" + noteStyle.Render("1-9 choose | ctrl+s quick save | ctrl+l quick load | q quit")
}
