package cli

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/session"
	"github.com/matzehuels/rostermap/pkg/transition"
	"github.com/matzehuels/rostermap/pkg/weight"
)

const (
	playFPS       = 60
	scrubStep     = 0.1
	settleEpsilon = 1e-3
	barWidth      = 40
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
	movingStyle   = lipgloss.NewStyle().Foreground(colorYellow)
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/playFPS, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// playModel scrubs one session through the narrative. Progress follows a
// critically damped spring towards the target, so jumps and scrubs ease in
// and out.
type playModel struct {
	sess    *session.Session
	metrics []string

	spring    harmonica.Spring
	pos       float64
	vel       float64
	target    float64
	animating bool

	// played is the step of the running transition, or -1 for none.
	played int
	dir    transition.Direction
	frame  transition.Frame
	err    error
}

func newPlayModel(sess *session.Session) playModel {
	frame, _ := sess.Progress(1)
	return playModel{
		sess:    sess,
		metrics: weight.MetricNames(),
		spring:  harmonica.NewSpring(harmonica.FPS(playFPS), 6.0, 1.0),
		pos:     1,
		target:  1,
		played:  -1,
		frame:   frame,
	}
}

func (m playModel) Init() tea.Cmd {
	return nil
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "n":
			next := m.sess.State().Step() + 1
			return m.start(next, transition.Down, func() (*transition.Plan, error) {
				return m.sess.PlayStep(next, transition.Down)
			})
		case "left", "p":
			cur := m.sess.State().Step()
			if cur < 0 {
				m.err = fmt.Errorf("already at the initial layout")
				return m, nil
			}
			return m.start(cur, transition.Up, func() (*transition.Plan, error) {
				return m.sess.PlayStep(cur, transition.Up)
			})
		case "m":
			metric := m.nextMetric()
			return m.start(-1, transition.Down, func() (*transition.Plan, error) {
				return m.sess.SetMetric(metric)
			})
		case ",":
			return m.scrub(-scrubStep)
		case ".":
			return m.scrub(scrubStep)
		}
	case tickMsg:
		return m.step()
	}
	return m, nil
}

// start plans a transition and animates it from 0 to 1.
func (m playModel) start(played int, dir transition.Direction, plan func() (*transition.Plan, error)) (tea.Model, tea.Cmd) {
	if _, err := plan(); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.played, m.dir = played, dir
	m.pos, m.vel, m.target = 0, 0, 1
	m.frame, _ = m.sess.Progress(0)
	return m.animate()
}

// scrub moves the target of the running transition by delta.
func (m playModel) scrub(delta float64) (tea.Model, tea.Cmd) {
	m.target = math.Max(0, math.Min(1, m.target+delta))
	return m.animate()
}

func (m playModel) animate() (tea.Model, tea.Cmd) {
	if m.animating {
		return m, nil
	}
	m.animating = true
	return m, tick()
}

// step advances the spring by one frame.
func (m playModel) step() (tea.Model, tea.Cmd) {
	if !m.animating {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < settleEpsilon && math.Abs(m.vel) < settleEpsilon {
		m.pos, m.vel, m.animating = m.target, 0, false
	}
	m.frame, _ = m.sess.Progress(m.progress())
	if !m.animating {
		return m, nil
	}
	return m, tick()
}

// progress is the spring position clamped to the plan's domain; the spring
// may overshoot slightly.
func (m playModel) progress() float64 {
	return math.Max(0, math.Min(1, m.pos))
}

func (m playModel) nextMetric() string {
	i := slices.Index(m.metrics, m.sess.State().Metric())
	return m.metrics[(i+1)%len(m.metrics)]
}

func (m playModel) View() string {
	var b strings.Builder
	ds := m.sess.Dataset()

	b.WriteString(m.title(ds))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("metric %s · step %d of %d",
		m.sess.State().Metric(), m.sess.State().Step()+1, len(ds.Steps))))
	b.WriteString("\n\n")
	b.WriteString(progressBar(m.progress(), barWidth))
	b.WriteString(StyleNumber.Render(fmt.Sprintf(" %3.0f%%", m.progress()*100)))
	b.WriteString("\n\n")
	b.WriteString(territoryTable(ds, m.frame))
	b.WriteString("\n")

	if moving := travelling(ds, m.frame); len(moving) > 0 {
		b.WriteString(movingStyle.Render("→ " + strings.Join(moving, ", ")))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styleIconError.Render(iconError + " " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("→/n next  ←/p back  ,/. scrub  m metric  q quit"))
	return b.String()
}

func (m playModel) title(ds *dataset.Dataset) string {
	if m.played < 0 {
		if m.sess.State().Step() < 0 {
			return StyleTitle.Render("Initial layout")
		}
		step, _ := ds.Step(m.sess.State().Step())
		return StyleTitle.Render(step.Date)
	}
	step, _ := ds.Step(m.played)
	date, text := pipeline.StepTitle(step)
	arrow := "▼"
	if m.dir == transition.Up {
		arrow = "▲"
	}
	return StyleTitle.Render(arrow+" "+date) + " " + StyleValue.Render(text)
}

func progressBar(t float64, width int) string {
	full := int(math.Round(t * float64(width)))
	return barFullStyle.Render(strings.Repeat("█", full)) +
		barEmptyStyle.Render(strings.Repeat("░", width-full))
}

// territoryTable counts the members drawn in each territory of frame.
func territoryTable(ds *dataset.Dataset, frame transition.Frame) string {
	counts := make(map[string]int)
	for _, d := range frame.Drawables {
		counts[d.TerritoryID]++
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Team", "Name", "Members").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader.Padding(0, 1)
			}
			if col == 2 {
				return StyleNumber.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, tr := range ds.Territories {
		if ds.IsReserved(tr.ID) {
			continue
		}
		t.Row(tr.ID, tr.Name, fmt.Sprint(counts[tr.ID]))
	}
	return t.Render()
}

// travelling names the members that change territory in frame.
func travelling(ds *dataset.Dataset, frame transition.Frame) []string {
	names := make(map[string]string, len(ds.Members))
	for _, mem := range ds.Members {
		names[mem.ID] = mem.Name
	}
	var out []string
	for _, d := range frame.Drawables {
		switch d.Role {
		case transition.RoleMoving, transition.RoleEntering, transition.RoleExiting:
			name := names[d.MemberID]
			if name == "" {
				name = d.MemberID
			}
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
