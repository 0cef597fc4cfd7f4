// Package loginui is the terminal flow for authorizing an installed app:
// it shows the authorization URL, waits for Reddit's redirect either from
// a loopback listener or pasted by the user, and reports the stored login.
package loginui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesprial/go-reddift/pkg/result"
	"github.com/jamesprial/go-reddift/pkg/types"
)

// Authorizer is the part of the client the login flow drives.
type Authorizer interface {
	AuthCodeURL() string
	ReceiveRedirectAsync(ctx context.Context, redirectURL string) <-chan result.Result[*types.OAuthToken]
	Username() string
}

type phase int

const (
	phaseWaiting phase = iota
	phaseExchanging
	phaseDone
	phaseFailed
)

type redirectMsg string

type tokenMsg result.Result[*types.OAuthToken]

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4500"))
	urlStyle     = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("#8BE9FD"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B"))
	dangerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))
)

// Options configures the login model.
type Options struct {
	Context context.Context
	Auth    Authorizer
	// Redirects delivers redirect URLs caught by a loopback listener. When
	// nil the user pastes the redirect instead.
	Redirects <-chan string
	// Hint tells the user where to find the redirect to paste.
	Hint string
}

// Model is the Bubble Tea model for one authorization attempt.
type Model struct {
	ctx       context.Context
	auth      Authorizer
	redirects <-chan string
	authURL   string
	hint      string

	phase   phase
	spinner spinner.Model
	input   textinput.Model

	user string
	err  error
}

// New creates the model and starts an authorization.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	in := textinput.New()
	in.Placeholder = "paste the URL Reddit redirected you to"
	in.Width = 80
	if opts.Redirects == nil {
		in.Focus()
	}

	return Model{
		ctx:       ctx,
		auth:      opts.Auth,
		redirects: opts.Redirects,
		authURL:   opts.Auth.AuthCodeURL(),
		hint:      opts.Hint,
		spinner:   sp,
		input:     in,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.redirects != nil {
		cmds = append(cmds, waitRedirectCmd(m.redirects))
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.err = context.Canceled
			m.phase = phaseFailed
			return m, tea.Quit
		case tea.KeyEnter:
			if m.phase == phaseWaiting && m.redirects == nil {
				if pasted := strings.TrimSpace(m.input.Value()); pasted != "" {
					return m.exchange(pasted)
				}
			}
			return m, nil
		}

	case redirectMsg:
		if m.phase != phaseWaiting {
			return m, nil
		}
		return m.exchange(string(msg))

	case tokenMsg:
		res := result.Result[*types.OAuthToken](msg)
		if err := res.Err(); err != nil {
			m.err = err
			m.phase = phaseFailed
		} else {
			m.user = m.auth.Username()
			m.phase = phaseDone
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.phase == phaseWaiting && m.redirects == nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) exchange(redirectURL string) (tea.Model, tea.Cmd) {
	m.phase = phaseExchanging
	m.input.Blur()
	return m, awaitTokenCmd(m.auth.ReceiveRedirectAsync(m.ctx, redirectURL))
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("reddift login"))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseWaiting:
		b.WriteString("Open this URL to authorize the app:\n\n")
		b.WriteString(urlStyle.Render(m.authURL))
		b.WriteString("\n\n")
		if m.redirects != nil {
			fmt.Fprintf(&b, "%s Waiting for Reddit to redirect back...\n", m.spinner.View())
		} else {
			if m.hint != "" {
				b.WriteString(mutedStyle.Render(m.hint))
				b.WriteString("\n")
			}
			b.WriteString(m.input.View())
			b.WriteString("\n")
		}
	case phaseExchanging:
		fmt.Fprintf(&b, "%s Exchanging authorization code...\n", m.spinner.View())
	case phaseDone:
		name := m.user
		if name == "" {
			name = "(unknown user)"
		}
		b.WriteString(successStyle.Render("Logged in as " + name))
		b.WriteString("\n")
	case phaseFailed:
		b.WriteString(dangerStyle.Render("Login failed: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

// User returns the account that logged in, once the flow has finished.
func (m Model) User() string { return m.user }

// Err returns why the flow failed, if it did.
func (m Model) Err() error { return m.err }

func waitRedirectCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return redirectMsg(u)
	}
}

func awaitTokenCmd(ch <-chan result.Result[*types.OAuthToken]) tea.Cmd {
	return func() tea.Msg {
		return tokenMsg(<-ch)
	}
}

// Run shows the login flow and returns the logged-in user.
func Run(ctx context.Context, opts Options) (string, error) {
	opts.Context = ctx
	final, err := tea.NewProgram(New(opts), tea.WithContext(ctx)).Run()
	if err != nil {
		return "", err
	}
	m := final.(Model)
	if m.err != nil {
		return "", m.err
	}
	if m.phase != phaseDone {
		return "", errors.New("login did not complete")
	}
	return m.user, nil
}
