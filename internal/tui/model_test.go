package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSender struct {
	answer string
	err    error
	got    []string
}

func (f *fakeSender) Send(_ context.Context, text string) (string, error) {
	f.got = append(f.got, text)
	return f.answer, f.err
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func pressEnter(m Model) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestSendRoundTrip(t *testing.T) {
	sender := &fakeSender{answer: "El pH óptimo es 10.5"}
	m := sized(New(sender, "Agente", time.Second))

	m = typeText(m, "¿pH óptimo?")
	m, cmd := pressEnter(m)
	if cmd == nil {
		t.Fatal("enter should dispatch the message")
	}
	if !m.waiting || m.input.Value() != "" {
		t.Errorf("waiting=%v input=%q", m.waiting, m.input.Value())
	}

	next, _ := m.Update(cmd())
	m = next.(Model)

	if len(sender.got) != 1 || sender.got[0] != "¿pH óptimo?" {
		t.Errorf("sent = %v", sender.got)
	}
	want := []string{"Tú: ¿pH óptimo?", "Asistente: El pH óptimo es 10.5"}
	got := m.Transcript()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("transcript = %v", got)
	}
	if m.waiting {
		t.Error("still waiting after reply")
	}
}

func TestEmptyInputIsIgnored(t *testing.T) {
	m := sized(New(&fakeSender{}, "Agente", time.Second))
	m = typeText(m, "   ")
	m, cmd := pressEnter(m)
	if cmd != nil || len(m.Transcript()) != 0 {
		t.Error("blank input must not be sent")
	}
}

func TestNoSecondSendWhileWaiting(t *testing.T) {
	m := sized(New(&fakeSender{}, "Agente", time.Second))
	m = typeText(m, "uno")
	m, _ = pressEnter(m)
	m = typeText(m, "dos")
	_, cmd := pressEnter(m)
	if cmd != nil {
		t.Error("a second message was dispatched while waiting")
	}
}

func TestSendErrorShowsStatus(t *testing.T) {
	m := sized(New(&fakeSender{err: errors.New("server error 502")}, "Agente", time.Second))
	m = typeText(m, "hola")
	m, cmd := pressEnter(m)
	next, _ := m.Update(cmd())
	m = next.(Model)

	if m.status != "Error: server error 502" {
		t.Errorf("status = %q", m.status)
	}
	if len(m.Transcript()) != 1 {
		t.Errorf("transcript = %v", m.Transcript())
	}
}

func TestQuitKeys(t *testing.T) {
	m := New(&fakeSender{}, "Agente", time.Second)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not produce QuitMsg")
	}
}
